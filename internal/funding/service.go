package funding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ujpm/GGH-website-sub000/internal/models"
	"github.com/ujpm/GGH-website-sub000/internal/status"
)

type Options struct {
	// SeedOnEmpty persists one demo call when an unfiltered listing finds an
	// empty store. Meant for demo deployments only.
	SeedOnEmpty bool
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Service implements the listing engine and the admin mutations on top of a
// Repository. Authorization is enforced by the HTTP layer before any method
// that mutates is reached.
type Service struct {
	repo        Repository
	log         *zap.Logger
	now         func() time.Time
	seedOnEmpty bool
}

func NewService(repo Repository, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:        repo,
		log:         logger,
		now:         func() time.Time { return now().UTC() },
		seedOnEmpty: opts.SeedOnEmpty,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*models.FundingCall, error) {
	call, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.wrapNotFound(id, err)
	}
	return call, nil
}

// Validate reports whether in would be accepted by Create, without writing.
func Validate(in models.CreateInput) error {
	call := fromCreateInput(in)
	normalizeCall(&call)
	return validateCall(&call)
}

// Create validates and persists a new call. Status is derived from the
// deadline right before the insert.
func (s *Service) Create(ctx context.Context, in models.CreateInput) (*models.FundingCall, error) {
	call := fromCreateInput(in)
	normalizeCall(&call)
	if err := validateCall(&call); err != nil {
		return nil, err
	}

	now := s.now()
	call.ID = uuid.New().String()
	call.CreatedAt = now
	call.UpdatedAt = now
	call.PublishedAt = now
	call.Version = 1
	call.Status = status.Derive(call.Deadline, now)

	if err := s.repo.Insert(ctx, &call); err != nil {
		return nil, fmt.Errorf("insert funding call: %w", err)
	}
	s.log.Info("funding call created",
		zap.String("id", call.ID),
		zap.String("type", string(call.Type)),
		zap.String("status", string(call.Status)))
	return &call, nil
}

// Update merges a partial input onto the stored call. Status is recomputed on
// every update, whether or not the deadline changed.
func (s *Service) Update(ctx context.Context, id string, in models.UpdateInput) (*models.FundingCall, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.wrapNotFound(id, err)
	}

	expected := 0
	if in.Version != nil {
		expected = *in.Version
		if expected != existing.Version {
			return nil, &ConflictError{ID: id, Expected: expected, Actual: existing.Version}
		}
	}

	call := applyUpdate(*existing, in)
	normalizeCall(&call)
	if err := validateCall(&call); err != nil {
		return nil, err
	}

	now := s.now()
	call.ID = existing.ID
	call.CreatedAt = existing.CreatedAt
	call.PublishedAt = existing.PublishedAt
	call.UpdatedAt = now
	call.Version = existing.Version + 1
	call.Status = status.Derive(call.Deadline, now)

	if err := s.repo.Replace(ctx, &call, expected); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, &NotFoundError{ID: id}
		case errors.Is(err, ErrVersionConflict):
			conflict := &ConflictError{ID: id, Expected: expected, Actual: -1}
			if current, gerr := s.repo.Get(ctx, id); gerr == nil {
				conflict.Actual = current.Version
			}
			return nil, conflict
		}
		return nil, fmt.Errorf("update funding call: %w", err)
	}
	s.log.Info("funding call updated",
		zap.String("id", call.ID),
		zap.Int("version", call.Version),
		zap.String("status", string(call.Status)))
	return &call, nil
}

// Delete hard-deletes a call.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.wrapNotFound(id, err)
	}
	s.log.Info("funding call deleted", zap.String("id", id))
	return nil
}

type Stats struct {
	Total       int `json:"total"`
	Open        int `json:"open"`
	ClosingSoon int `json:"closingSoon"`
	Closed      int `json:"closed"`
}

// Stats counts calls by persisted status. The counts are independent reads
// and may straddle a concurrent write.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error

	if st.Total, err = s.repo.Count(ctx, Filter{}); err != nil {
		return st, fmt.Errorf("count total: %w", err)
	}
	counts := map[models.Status]*int{
		models.StatusOpen:        &st.Open,
		models.StatusClosingSoon: &st.ClosingSoon,
		models.StatusClosed:      &st.Closed,
	}
	for _, sv := range models.Statuses {
		n, err := s.repo.Count(ctx, Filter{Status: &sv})
		if err != nil {
			return st, fmt.Errorf("count %s: %w", sv, err)
		}
		*counts[sv] = n
	}
	return st, nil
}

type RecomputeResult struct {
	Scanned      int                   `json:"scanned"`
	Updated      int                   `json:"updated"`
	StatusCounts map[models.Status]int `json:"status_counts"`
}

const recomputeBatch = 500

// RecomputeStatuses re-derives the status of every stored call and persists
// only the ones that drifted because of elapsed time.
func (s *Service) RecomputeStatuses(ctx context.Context) (RecomputeResult, error) {
	res := RecomputeResult{StatusCounts: map[models.Status]int{}}
	now := s.now()
	order := Sort{Field: SortCreatedAt}

	for skip := 0; ; skip += recomputeBatch {
		batch, err := s.repo.Find(ctx, Filter{}, order, skip, recomputeBatch)
		if err != nil {
			return res, fmt.Errorf("recompute status query failed: %w", err)
		}
		for i := range batch {
			call := &batch[i]
			res.Scanned++
			if status.Apply(call, now) {
				if err := s.repo.UpdateStatus(ctx, call.ID, call.Status); err != nil {
					if errors.Is(err, ErrNotFound) {
						continue
					}
					return res, fmt.Errorf("recompute status update failed: %w", err)
				}
				res.Updated++
			}
			res.StatusCounts[call.Status]++
		}
		if len(batch) < recomputeBatch {
			break
		}
	}

	s.log.Info("status recompute finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("updated", res.Updated))
	return res, nil
}

func (s *Service) wrapNotFound(id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return err
}

func fromCreateInput(in models.CreateInput) models.FundingCall {
	return models.FundingCall{
		Title:        in.Title,
		Organization: in.Organization,
		Description:  in.Description,
		Type:         in.Type,
		Deadline:     in.Deadline,
		FundingInfo:  in.FundingInfo,
		Eligibility: models.Eligibility{
			Criteria:     copyStrings(in.Eligibility.Criteria),
			Restrictions: copyStrings(in.Eligibility.Restrictions),
		},
		Requirements:   copyStrings(in.Requirements),
		Tags:           copyStrings(in.Tags),
		Featured:       in.Featured,
		ApplicationURL: in.ApplicationURL,
	}
}

func applyUpdate(call models.FundingCall, in models.UpdateInput) models.FundingCall {
	if in.Title != nil {
		call.Title = *in.Title
	}
	if in.Organization != nil {
		call.Organization = *in.Organization
	}
	if in.Description != nil {
		call.Description = *in.Description
	}
	if in.Type != nil {
		call.Type = *in.Type
	}
	if in.Deadline != nil {
		call.Deadline = *in.Deadline
	}
	if in.FundingInfo != nil {
		call.FundingInfo = *in.FundingInfo
	}
	if in.Eligibility != nil {
		call.Eligibility = models.Eligibility{
			Criteria:     copyStrings(in.Eligibility.Criteria),
			Restrictions: copyStrings(in.Eligibility.Restrictions),
		}
	} else {
		call.Eligibility.Criteria = copyStrings(call.Eligibility.Criteria)
		call.Eligibility.Restrictions = copyStrings(call.Eligibility.Restrictions)
	}
	if in.Requirements != nil {
		call.Requirements = copyStrings(*in.Requirements)
	} else {
		call.Requirements = copyStrings(call.Requirements)
	}
	if in.Tags != nil {
		call.Tags = copyStrings(*in.Tags)
	}
	if in.Featured != nil {
		call.Featured = *in.Featured
	}
	if in.ApplicationURL != nil {
		call.ApplicationURL = *in.ApplicationURL
	}
	return call
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
