package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const recomputeJobTimeout = 30 * time.Minute

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

// handleRecomputeStatus re-derives every stored status. With ?wait=true it
// runs inline and returns the result; otherwise it starts a background job
// and answers 202 with a poll URL. Only one job runs at a time.
func (s *Server) handleRecomputeStatus(c echo.Context) error {
	if wait, _ := strconv.ParseBool(c.QueryParam("wait")); wait {
		res, err := s.Funding.RecomputeStatuses(c.Request().Context())
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, res)
	}

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]any{
			"error":  "A recompute job is already running",
			"job_id": job.ID,
		})
	}

	// Detached from the request so the job outlives the 202 response.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), recomputeJobTimeout,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		defer jobCancel()
		res, err := s.Funding.RecomputeStatuses(jobCtx)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			s.log.Error("recompute job failed", zap.String("job_id", jobID), zap.Error(err))
			return
		}
		job.Status = "completed"
		job.Result = res
		s.log.Info("recompute job completed", zap.String("job_id", jobID), zap.Int("updated", res.Updated))
	}()

	return c.JSON(http.StatusAccepted, map[string]any{
		"message": "Recompute job started",
		"job_id":  jobID,
		"poll":    "/admin/jobs/" + jobID,
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]any{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}
