// Package memstore keeps funding calls and users in process memory. It backs
// STORE_DRIVER=memory and doubles as the repository in tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/models"
)

// FundingStore holds calls in insertion order. Returned values are copies.
type FundingStore struct {
	mu    sync.RWMutex
	calls []models.FundingCall
}

func NewFundingStore() *FundingStore {
	return &FundingStore{}
}

var _ funding.Repository = (*FundingStore)(nil)

func (s *FundingStore) Insert(_ context.Context, call *models.FundingCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(call.ID) >= 0 {
		return ErrDuplicateID
	}
	s.calls = append(s.calls, clone(*call))
	return nil
}

func (s *FundingStore) Get(_ context.Context, id string) (*models.FundingCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil, funding.ErrNotFound
	}
	c := clone(s.calls[i])
	return &c, nil
}

func (s *FundingStore) Replace(_ context.Context, call *models.FundingCall, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(call.ID)
	if i < 0 {
		return funding.ErrNotFound
	}
	if expectedVersion > 0 && s.calls[i].Version != expectedVersion {
		return funding.ErrVersionConflict
	}
	s.calls[i] = clone(*call)
	return nil
}

func (s *FundingStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return funding.ErrNotFound
	}
	s.calls = append(s.calls[:i], s.calls[i+1:]...)
	return nil
}

func (s *FundingStore) UpdateStatus(_ context.Context, id string, st models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return funding.ErrNotFound
	}
	s.calls[i].Status = st
	return nil
}

func (s *FundingStore) Count(_ context.Context, f funding.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	terms := searchTerms(f.Search)
	n := 0
	for i := range s.calls {
		if matches(&s.calls[i], f, terms) {
			n++
		}
	}
	return n, nil
}

func (s *FundingStore) Find(_ context.Context, f funding.Filter, order funding.Sort, skip, limit int) ([]models.FundingCall, error) {
	s.mu.RLock()
	terms := searchTerms(f.Search)
	var out []models.FundingCall
	for i := range s.calls {
		if matches(&s.calls[i], f, terms) {
			out = append(out, clone(s.calls[i]))
		}
	}
	s.mu.RUnlock()

	// SliceStable keeps insertion order among equal keys.
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(&out[i], &out[j], order.Field)
		if order.Desc {
			return c > 0
		}
		return c < 0
	})

	if skip < 0 {
		skip = 0
	}
	if skip >= len(out) {
		return []models.FundingCall{}, nil
	}
	out = out[skip:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Len reports how many calls are stored.
func (s *FundingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calls)
}

func (s *FundingStore) indexOf(id string) int {
	for i := range s.calls {
		if s.calls[i].ID == id {
			return i
		}
	}
	return -1
}

func matches(c *models.FundingCall, f funding.Filter, terms []string) bool {
	if f.Type != nil && c.Type != *f.Type {
		return false
	}
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.Featured != nil && c.Featured != *f.Featured {
		return false
	}
	if len(terms) == 0 {
		return true
	}
	doc := searchDocument(c)
	for _, t := range terms {
		if !strings.Contains(doc, t) {
			return false
		}
	}
	return true
}

func searchTerms(q string) []string {
	return strings.Fields(strings.ToLower(q))
}

// searchDocument joins the searchable fields into one lower-cased string.
func searchDocument(c *models.FundingCall) string {
	parts := []string{c.Title, c.DescriptionText, c.Organization}
	parts = append(parts, c.Eligibility.Criteria...)
	parts = append(parts, c.Tags...)
	return strings.ToLower(strings.Join(parts, "\n"))
}

func compare(a, b *models.FundingCall, field string) int {
	switch field {
	case funding.SortCreatedAt:
		return compareTime(a.CreatedAt, b.CreatedAt)
	case funding.SortUpdatedAt:
		return compareTime(a.UpdatedAt, b.UpdatedAt)
	case funding.SortPublishedAt:
		return compareTime(a.PublishedAt, b.PublishedAt)
	case funding.SortTitle:
		return strings.Compare(a.Title, b.Title)
	case funding.SortOrganization:
		return strings.Compare(a.Organization, b.Organization)
	case funding.SortType:
		return strings.Compare(string(a.Type), string(b.Type))
	case funding.SortStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case funding.SortFeatured:
		switch {
		case a.Featured == b.Featured:
			return 0
		case !a.Featured:
			return -1
		default:
			return 1
		}
	default:
		return compareTime(a.Deadline, b.Deadline)
	}
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func clone(c models.FundingCall) models.FundingCall {
	c.Eligibility.Criteria = copyStrings(c.Eligibility.Criteria)
	c.Eligibility.Restrictions = copyStrings(c.Eligibility.Restrictions)
	c.Requirements = copyStrings(c.Requirements)
	c.Tags = copyStrings(c.Tags)
	return c
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
