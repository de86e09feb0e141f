package funding_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/memstore"
	"github.com/ujpm/GGH-website-sub000/internal/models"
)

var testNow = time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)

func newTestService(opts funding.Options) (*funding.Service, *memstore.FundingStore, *time.Time) {
	store := memstore.NewFundingStore()
	now := testNow
	opts.Now = func() time.Time { return now }
	return funding.NewService(store, nil, opts), store, &now
}

func validInput(title string, deadline time.Time) models.CreateInput {
	return models.CreateInput{
		Title:          title,
		Organization:   "Open Futures Foundation",
		Description:    "<p>Support for community projects.</p>",
		Type:           models.TypeGrant,
		Deadline:       deadline,
		FundingInfo:    models.FundingInfo{Amount: "$5,000"},
		Eligibility:    models.Eligibility{Criteria: []string{"Registered nonprofit"}},
		ApplicationURL: "https://example.org/apply",
	}
}

func TestCreateDerivesStatus(t *testing.T) {
	tests := []struct {
		name     string
		deadline time.Time
		want     models.Status
	}{
		{"far future", testNow.Add(30 * 24 * time.Hour), models.StatusOpen},
		{"within a week", testNow.Add(3 * 24 * time.Hour), models.StatusClosingSoon},
		{"past", testNow.Add(-time.Hour), models.StatusClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(funding.Options{})
			call, err := svc.Create(context.Background(), validInput("Call", tt.deadline))
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if call.Status != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, call.Status)
			}
			if call.Version != 1 || call.ID == "" {
				t.Fatalf("expected id and version 1, got %q/%d", call.ID, call.Version)
			}
		})
	}
}

func TestCreateNormalizesInput(t *testing.T) {
	svc, _, _ := newTestService(funding.Options{})
	in := validInput("  Seed   Grant ", testNow.Add(30*24*time.Hour))
	in.Description = `<p onclick="x()">Hello <script>alert(1)</script><b>world</b></p>`
	in.FundingInfo = models.FundingInfo{Amount: " $$ 10,000 ", Currency: "eur"}
	in.Tags = []string{"STEM", " stem ", "", "Women"}
	in.Type = "Grant"

	call, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if call.Title != "Seed Grant" {
		t.Fatalf("expected collapsed title, got %q", call.Title)
	}
	if call.FundingInfo.Amount != "10,000" {
		t.Fatalf("expected stripped amount, got %q", call.FundingInfo.Amount)
	}
	if call.FundingInfo.Currency != "EUR" {
		t.Fatalf("expected EUR, got %q", call.FundingInfo.Currency)
	}
	if call.Description != "<p>Hello <b>world</b></p>" {
		t.Fatalf("unexpected sanitized description %q", call.Description)
	}
	if call.Summary != "Hello world" {
		t.Fatalf("unexpected summary %q", call.Summary)
	}
	if len(call.Tags) != 2 || call.Tags[0] != "STEM" || call.Tags[1] != "Women" {
		t.Fatalf("unexpected tags %v", call.Tags)
	}
	if call.Type != models.TypeGrant {
		t.Fatalf("expected lower-cased type, got %s", call.Type)
	}
}

func TestCreateDefaultsCurrency(t *testing.T) {
	svc, _, _ := newTestService(funding.Options{})
	call, err := svc.Create(context.Background(), validInput("Call", testNow.Add(48*time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if call.FundingInfo.Currency != funding.DefaultCurrency {
		t.Fatalf("expected %s, got %s", funding.DefaultCurrency, call.FundingInfo.Currency)
	}
}

func TestCreateReportsEveryInvalidField(t *testing.T) {
	svc, store, _ := newTestService(funding.Options{})
	in := models.CreateInput{
		Type:           "loan",
		ApplicationURL: "ftp://example.org",
		Requirements:   []string{"CV", "  "},
	}
	_, err := svc.Create(context.Background(), in)

	var ve *funding.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{
		"title", "organization", "description", "type", "deadline",
		"applicationUrl", "eligibility.criteria", "requirements[1]",
	} {
		if _, ok := ve.Fields[field]; !ok {
			t.Errorf("expected %s in %v", field, ve.Fields)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("nothing should be stored, have %d", store.Len())
	}
}

func TestUpdateRecomputesStatusWithoutDeadlineChange(t *testing.T) {
	svc, store, now := newTestService(funding.Options{})
	ctx := context.Background()

	call, err := svc.Create(ctx, validInput("Call", testNow.Add(10*24*time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if call.Status != models.StatusOpen {
		t.Fatalf("expected open, got %s", call.Status)
	}

	// Five days later the deadline is inside the closing window; a title-only
	// edit still refreshes the status.
	*now = now.Add(5 * 24 * time.Hour)
	title := "Renamed"
	updated, err := svc.Update(ctx, call.ID, models.UpdateInput{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != models.StatusClosingSoon {
		t.Fatalf("expected closing_soon, got %s", updated.Status)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}
	if !updated.CreatedAt.Equal(call.CreatedAt) || !updated.UpdatedAt.After(call.UpdatedAt) {
		t.Fatalf("timestamps not maintained: %+v", updated)
	}

	stored, _ := store.Get(ctx, call.ID)
	if stored.Title != "Renamed" || stored.Status != models.StatusClosingSoon {
		t.Fatalf("stored copy not updated: %+v", stored)
	}
}

func TestUpdateAmountIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(funding.Options{})
	ctx := context.Background()
	call, err := svc.Create(ctx, validInput("Call", testNow.Add(30*24*time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	first := call.FundingInfo.Amount

	title := "Again"
	updated, err := svc.Update(ctx, call.ID, models.UpdateInput{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FundingInfo.Amount != first {
		t.Fatalf("amount changed on re-normalization: %q -> %q", first, updated.FundingInfo.Amount)
	}
}

func TestUpdateValidatesMergedRecord(t *testing.T) {
	svc, _, _ := newTestService(funding.Options{})
	ctx := context.Background()
	call, err := svc.Create(ctx, validInput("Call", testNow.Add(30*24*time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	empty := ""
	_, err = svc.Update(ctx, call.ID, models.UpdateInput{Title: &empty})
	var ve *funding.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := ve.Fields["title"]; !ok || len(ve.Fields) != 1 {
		t.Fatalf("expected only title to fail, got %v", ve.Fields)
	}
}

func TestUpdateIgnoresCallerStatus(t *testing.T) {
	// UpdateInput has no status field; a JSON body carrying one decodes
	// without it, so the derived value always wins.
	svc, _, _ := newTestService(funding.Options{})
	ctx := context.Background()
	call, err := svc.Create(ctx, validInput("Call", testNow.Add(-24*time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	featured := true
	updated, err := svc.Update(ctx, call.ID, models.UpdateInput{Featured: &featured})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != models.StatusClosed {
		t.Fatalf("expected closed, got %s", updated.Status)
	}
}

func TestUpdateVersionConflict(t *testing.T) {
	svc, _, _ := newTestService(funding.Options{})
	ctx := context.Background()
	call, err := svc.Create(ctx, validInput("Call", testNow.Add(30*24*time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	v1 := 1
	a := "First editor"
	if _, err := svc.Update(ctx, call.ID, models.UpdateInput{Title: &a, Version: &v1}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	b := "Second editor"
	_, err = svc.Update(ctx, call.ID, models.UpdateInput{Title: &b, Version: &v1})
	var ce *funding.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.Expected != 1 || ce.Actual != 2 {
		t.Fatalf("unexpected conflict %+v", ce)
	}
	if !errors.Is(err, funding.ErrVersionConflict) {
		t.Fatal("conflict should unwrap to ErrVersionConflict")
	}

	// Without a version the write goes through.
	if _, err := svc.Update(ctx, call.ID, models.UpdateInput{Title: &b}); err != nil {
		t.Fatalf("unversioned update: %v", err)
	}
}

func TestNotFound(t *testing.T) {
	svc, _, _ := newTestService(funding.Options{})
	ctx := context.Background()
	title := "x"

	checks := map[string]error{
		"get":    func() error { _, err := svc.Get(ctx, "missing"); return err }(),
		"update": func() error { _, err := svc.Update(ctx, "missing", models.UpdateInput{Title: &title}); return err }(),
		"delete": svc.Delete(ctx, "missing"),
	}
	for op, err := range checks {
		var nf *funding.NotFoundError
		if !errors.As(err, &nf) || nf.ID != "missing" {
			t.Errorf("%s: expected NotFoundError, got %v", op, err)
		}
		if !errors.Is(err, funding.ErrNotFound) {
			t.Errorf("%s: expected to unwrap to ErrNotFound", op)
		}
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	svc, store, _ := newTestService(funding.Options{})
	ctx := context.Background()
	call, err := svc.Create(ctx, validInput("Call", testNow.Add(30*24*time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, call.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, have %d", store.Len())
	}
	if _, err := svc.Get(ctx, call.ID); !errors.Is(err, funding.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestStats(t *testing.T) {
	svc, _, _ := newTestService(funding.Options{})
	ctx := context.Background()
	deadlines := []time.Duration{
		30 * 24 * time.Hour, 20 * 24 * time.Hour, // open
		2 * 24 * time.Hour,                         // closing soon
		-time.Hour, -48 * time.Hour, -96 * time.Hour, // closed
	}
	for i, d := range deadlines {
		if _, err := svc.Create(ctx, validInput(fmt.Sprintf("Call %d", i), testNow.Add(d))); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := funding.Stats{Total: 6, Open: 2, ClosingSoon: 1, Closed: 3}
	if st != want {
		t.Fatalf("expected %+v, got %+v", want, st)
	}
}

func TestRecomputeStatuses(t *testing.T) {
	svc, store, now := newTestService(funding.Options{})
	ctx := context.Background()

	soon, err := svc.Create(ctx, validInput("Soon", testNow.Add(3*24*time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	later, err := svc.Create(ctx, validInput("Later", testNow.Add(10*24*time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, validInput("Far", testNow.Add(90*24*time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}

	*now = now.Add(4 * 24 * time.Hour)
	res, err := svc.RecomputeStatuses(ctx)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if res.Scanned != 3 || res.Updated != 2 {
		t.Fatalf("expected 3 scanned / 2 updated, got %+v", res)
	}
	if res.StatusCounts[models.StatusClosed] != 1 ||
		res.StatusCounts[models.StatusClosingSoon] != 1 ||
		res.StatusCounts[models.StatusOpen] != 1 {
		t.Fatalf("unexpected counts %v", res.StatusCounts)
	}

	got, _ := store.Get(ctx, soon.ID)
	if got.Status != models.StatusClosed {
		t.Fatalf("expected closed, got %s", got.Status)
	}
	got, _ = store.Get(ctx, later.ID)
	if got.Status != models.StatusClosingSoon {
		t.Fatalf("expected closing_soon, got %s", got.Status)
	}
	if got.Version != later.Version {
		t.Fatalf("recompute must not bump version: %d -> %d", later.Version, got.Version)
	}

	// Running again changes nothing.
	res, err = svc.RecomputeStatuses(ctx)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if res.Updated != 0 {
		t.Fatalf("expected no updates on second run, got %d", res.Updated)
	}
}
