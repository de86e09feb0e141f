package funding

import (
	"context"

	"github.com/ujpm/GGH-website-sub000/internal/models"
)

// Sortable fields, keyed by their wire names.
const (
	SortDeadline     = "deadline"
	SortCreatedAt    = "createdAt"
	SortUpdatedAt    = "updatedAt"
	SortPublishedAt  = "publishedAt"
	SortTitle        = "title"
	SortOrganization = "organization"
	SortType         = "type"
	SortStatus       = "status"
	SortFeatured     = "featured"
)

// SortFields is the whitelist accepted by the listing API.
var SortFields = []string{
	SortDeadline, SortCreatedAt, SortUpdatedAt, SortPublishedAt,
	SortTitle, SortOrganization, SortType, SortStatus, SortFeatured,
}

func validSortField(f string) bool {
	for _, s := range SortFields {
		if s == f {
			return true
		}
	}
	return false
}

// Filter is a conjunction of optional predicates. A nil pointer or empty
// Search leaves that dimension unconstrained.
type Filter struct {
	Type     *models.CallType
	Status   *models.Status
	Featured *bool
	Search   string
}

// IsZero reports whether the filter matches every document.
func (f Filter) IsZero() bool {
	return f.Type == nil && f.Status == nil && f.Featured == nil && f.Search == ""
}

// Sort orders results by a single whitelisted field. Implementations break
// ties by insertion order so pages stay stable across requests.
type Sort struct {
	Field string
	Desc  bool
}

// Repository is the record store for funding calls.
//
// Get, Replace, Delete and UpdateStatus return ErrNotFound for unknown ids.
// Replace with expectedVersion > 0 only succeeds when the stored version
// matches, otherwise it returns ErrVersionConflict.
type Repository interface {
	Insert(ctx context.Context, call *models.FundingCall) error
	Get(ctx context.Context, id string) (*models.FundingCall, error)
	Replace(ctx context.Context, call *models.FundingCall, expectedVersion int) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, filter Filter) (int, error)
	Find(ctx context.Context, filter Filter, sort Sort, skip, limit int) ([]models.FundingCall, error)
	UpdateStatus(ctx context.Context, id string, status models.Status) error
}
