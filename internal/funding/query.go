package funding

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ujpm/GGH-website-sub000/internal/models"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListParams is the listing request as received from the API.
type ListParams struct {
	Type      string
	Status    string
	Featured  *bool
	Search    string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Limit int `json:"limit"`
}

type ListResult struct {
	Calls      []models.FundingCall `json:"calls"`
	Pagination Pagination           `json:"pagination"`
}

// ParseListParams reads listing parameters from a query string. Malformed
// page/limit values fall back to defaults; a malformed featured flag is a
// validation error.
func ParseListParams(q url.Values) (ListParams, error) {
	p := ListParams{
		Type:      strings.TrimSpace(q.Get("type")),
		Status:    strings.TrimSpace(q.Get("status")),
		Search:    strings.TrimSpace(q.Get("search")),
		SortBy:    strings.TrimSpace(q.Get("sortBy")),
		SortOrder: strings.TrimSpace(q.Get("sortOrder")),
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil {
		p.Page = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		p.Limit = n
	}
	if raw := strings.TrimSpace(q.Get("featured")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return p, &ValidationError{Fields: map[string]string{"featured": "must be true or false"}}
		}
		p.Featured = &v
	}
	return p, nil
}

func (p ListParams) normalized() ListParams {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if !validSortField(p.SortBy) {
		p.SortBy = SortDeadline
	}
	if !strings.EqualFold(p.SortOrder, "desc") {
		p.SortOrder = "asc"
	} else {
		p.SortOrder = "desc"
	}
	return p
}

func (p ListParams) filter() (Filter, error) {
	var f Filter
	errs := fieldErrors{}

	if p.Type != "" {
		t := models.CallType(strings.ToLower(p.Type))
		if !t.Valid() {
			errs.add("type", "must be one of "+joinTypes())
		} else {
			f.Type = &t
		}
	}
	if p.Status != "" {
		st := models.Status(strings.ToLower(p.Status))
		if !st.Valid() {
			errs.add("status", "must be one of "+joinStatuses())
		} else {
			f.Status = &st
		}
	}
	f.Featured = p.Featured
	f.Search = p.Search
	return f, errs.err()
}

// List resolves a filtered, sorted page of calls. Total is counted before
// pagination and pages = ceil(total/limit).
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	p := params.normalized()
	filter, err := p.filter()
	if err != nil {
		return nil, err
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	if total == 0 && s.seedOnEmpty && filter.IsZero() {
		if _, err := s.seedPlaceholder(ctx); err != nil {
			return nil, err
		}
		if total, err = s.repo.Count(ctx, filter); err != nil {
			return nil, fmt.Errorf("count failed: %w", err)
		}
	}

	res := &ListResult{
		Calls: []models.FundingCall{},
		Pagination: Pagination{
			Total: total,
			Page:  p.Page,
			Pages: (total + p.Limit - 1) / p.Limit,
			Limit: p.Limit,
		},
	}
	// Past the last page there is nothing to fetch, and (page-1)*limit could
	// overflow for absurd page numbers.
	if p.Page > res.Pagination.Pages {
		return res, nil
	}

	order := Sort{Field: p.SortBy, Desc: p.SortOrder == "desc"}
	calls, err := s.repo.Find(ctx, filter, order, (p.Page-1)*p.Limit, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if calls != nil {
		res.Calls = calls
	}
	return res, nil
}

// seedPlaceholder persists the first demo call through the regular create
// path so the placeholder obeys every write invariant.
func (s *Service) seedPlaceholder(ctx context.Context) (*models.FundingCall, error) {
	seed, err := DemoSeed()
	if err != nil {
		return nil, err
	}
	inputs := seed.Inputs(s.now())
	if len(inputs) == 0 {
		return nil, fmt.Errorf("demo seed is empty")
	}
	call, err := s.Create(ctx, inputs[0])
	if err != nil {
		return nil, fmt.Errorf("seed placeholder: %w", err)
	}
	s.log.Warn("store was empty; persisted demo placeholder", zap.String("id", call.ID))
	return call, nil
}
