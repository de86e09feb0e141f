package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ujpm/GGH-website-sub000/internal/client"
	"github.com/ujpm/GGH-website-sub000/internal/logging"
	"github.com/ujpm/GGH-website-sub000/internal/models"
)

// trigger starts a server-side status recompute as an admin and waits for it.
func main() {
	apiURL := flag.String("api", "http://localhost:8081", "API base URL")
	poll := flag.Duration("poll", time.Second, "job poll interval")
	wait := flag.Duration("wait", 5*time.Minute, "give up after")
	flag.Parse()

	logger := logging.Must(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	defer logger.Sync()
	log := logger.Sugar()

	ctx, cancel := context.WithTimeout(context.Background(), *wait)
	defer cancel()

	api := client.New(*apiURL, nil)
	if token := strings.TrimSpace(os.Getenv("ADMIN_TOKEN")); token != "" {
		api.SetToken(token)
	} else {
		email := strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))
		password := os.Getenv("ADMIN_PASSWORD")
		if email == "" || password == "" {
			log.Fatal("set ADMIN_TOKEN, or ADMIN_EMAIL and ADMIN_PASSWORD")
		}
		if _, err := api.Login(ctx, email, password); err != nil {
			log.Fatalf("login: %v", err)
		}
	}
	jobID, err := api.StartRecompute(ctx)
	if err != nil {
		log.Fatalf("start recompute: %v", err)
	}
	log.Infof("recompute job %s started", jobID)

	ticker := time.NewTicker(*poll)
	defer ticker.Stop()
	for {
		job, err := api.RecomputeJob(ctx, jobID)
		if err != nil {
			log.Fatalf("job status: %v", err)
		}
		if job.Done() {
			printJob(job)
			if job.Status != "completed" {
				os.Exit(1)
			}
			return
		}
		select {
		case <-ctx.Done():
			log.Fatalf("job %s still %s: %v", jobID, job.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

func printJob(job *client.RecomputeJob) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Job", "Status", "Scanned", "Updated", "Open", "Closing soon", "Closed", "Duration"})
	row := table.Row{job.ID, job.Status, "", "", "", "", "", job.Duration}
	if r := job.Result; r != nil {
		row = table.Row{job.ID, job.Status, r.Scanned, r.Updated,
			r.StatusCounts[models.StatusOpen], r.StatusCounts[models.StatusClosingSoon], r.StatusCounts[models.StatusClosed],
			job.Duration}
	}
	t.AppendRow(row)
	if job.Error != "" {
		t.SetCaption("error: %s", job.Error)
	}
	t.Render()
}
