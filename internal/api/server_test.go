package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ujpm/GGH-website-sub000/internal/auth"
	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/memstore"
	"github.com/ujpm/GGH-website-sub000/internal/models"
)

var testNow = time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)

type fixture struct {
	srv        *Server
	store      *memstore.FundingStore
	adminToken string
	userToken  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return testNow }

	store := memstore.NewFundingStore()
	calls := funding.NewService(store, nil, funding.Options{Now: clock})
	authSvc, err := auth.NewService(memstore.NewUserStore(), auth.Config{Secret: "test", Now: clock}, nil)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	if err := authSvc.EnsureAdminAccount(ctx, auth.AdminAccount{Email: "admin@example.org", Password: "admin-pass"}); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	admin, err := authSvc.Login(ctx, auth.LoginRequest{Email: "admin@example.org", Password: "admin-pass"})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	user, err := authSvc.Register(ctx, auth.RegisterRequest{Email: "user@example.org", Password: "user-pass"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	return &fixture{
		srv:        NewServer(calls, authSvc, Options{}),
		store:      store,
		adminToken: admin.Token,
		userToken:  user.Token,
	}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.srv.Echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

const createBody = `{
	"title": "Clean Water Grant",
	"organization": "Global Good Hub",
	"description": "<p>Funding for water projects</p>",
	"type": "grant",
	"deadline": "2026-02-15T12:00:00Z",
	"status": "open",
	"fundingInfo": {"amount": "$10,000"},
	"eligibility": {"criteria": ["NGO"]},
	"applicationUrl": "https://example.org/apply"
}`

func TestCreateRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"bad token", "garbage", http.StatusUnauthorized},
		{"user role", f.userToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/funding-calls", tt.token, createBody)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if _, ok := decode[map[string]any](t, rec)["error"]; !ok {
				t.Fatalf("expected error body, got %s", rec.Body.String())
			}
			if f.store.Len() != 0 {
				t.Fatalf("record created despite rejection: %d", f.store.Len())
			}
		})
	}
}

func TestAuthRejectionDoesNotLeakExistence(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/funding-calls", f.adminToken, createBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	id := decode[models.FundingCall](t, rec).ID

	existing := f.do(t, http.MethodDelete, "/funding-calls/"+id, f.userToken, "")
	missing := f.do(t, http.MethodDelete, "/funding-calls/does-not-exist", f.userToken, "")
	if existing.Code != missing.Code || existing.Body.String() != missing.Body.String() {
		t.Fatalf("responses differ: %d %s vs %d %s", existing.Code, existing.Body, missing.Code, missing.Body)
	}
	if f.store.Len() != 1 {
		t.Fatal("record deleted by non-admin")
	}
}

func TestCreateIgnoresCallerStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/funding-calls", f.adminToken, createBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	call := decode[models.FundingCall](t, rec)
	if call.Status != models.StatusClosingSoon {
		t.Fatalf("expected derived closing_soon, got %s", call.Status)
	}
	if call.FundingInfo.Amount != "10,000" || call.FundingInfo.Currency != "USD" {
		t.Fatalf("unexpected funding info %+v", call.FundingInfo)
	}
	if rec.Header().Get("ETag") != `"1"` {
		t.Fatalf("expected ETag \"1\", got %q", rec.Header().Get("ETag"))
	}
}

func TestCreateValidationDetails(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/funding-calls", f.adminToken, `{"type":"loan"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode[struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}](t, rec)
	for _, field := range []string{"title", "organization", "type", "deadline", "applicationUrl"} {
		if _, ok := body.Details[field]; !ok {
			t.Errorf("missing detail for %s: %v", field, body.Details)
		}
	}

	rec = f.do(t, http.MethodPost, "/funding-calls", f.adminToken, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestMalformedBodyNamesField(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/funding-calls", f.adminToken, createBody)
	id := decode[models.FundingCall](t, rec).ID

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		field  string
	}{
		{"create deadline", http.MethodPost, "/funding-calls", `{"title":"X","deadline":"next week"}`, "deadline"},
		{"create deadline number", http.MethodPost, "/funding-calls", `{"title":"X","deadline":42}`, "deadline"},
		{"create title type", http.MethodPost, "/funding-calls", `{"title":7}`, "title"},
		{"update deadline", http.MethodPut, "/funding-calls/" + id, `{"deadline":"soon"}`, "deadline"},
		{"update featured type", http.MethodPut, "/funding-calls/" + id, `{"featured":"yes"}`, "featured"},
		{"syntax", http.MethodPost, "/funding-calls", `{not json`, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, f.adminToken, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			body := decode[struct {
				Error   string            `json:"error"`
				Details map[string]string `json:"details"`
			}](t, rec)
			if body.Error != "validation failed" {
				t.Fatalf("unexpected error %q", body.Error)
			}
			if body.Details[tt.field] == "" {
				t.Fatalf("expected detail for %s, got %v", tt.field, body.Details)
			}
		})
	}
}

func TestUpdateAndDeleteLifecycle(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/funding-calls", f.adminToken, createBody)
	id := decode[models.FundingCall](t, rec).ID

	rec = f.do(t, http.MethodPut, "/funding-calls/"+id, f.adminToken, `{"title":"Renamed","version":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	updated := decode[models.FundingCall](t, rec)
	if updated.Title != "Renamed" || updated.Version != 2 {
		t.Fatalf("unexpected update result %+v", updated)
	}

	rec = f.do(t, http.MethodPut, "/funding-calls/"+id, f.adminToken, `{"title":"Stale","version":1}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if v := decode[map[string]any](t, rec)["currentVersion"]; v != float64(2) {
		t.Fatalf("expected currentVersion 2, got %v", v)
	}

	req := httptest.NewRequest(http.MethodPut, "/funding-calls/"+id, strings.NewReader(`{"featured":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.adminToken)
	req.Header.Set("If-Match", `"1"`)
	rec = httptest.NewRecorder()
	f.srv.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected If-Match conflict, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/funding-calls/missing", f.adminToken, `{"title":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/funding-calls/"+id, f.adminToken, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/funding-calls/"+id, "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestListEndpoint(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		if rec := f.do(t, http.MethodPost, "/funding-calls", f.adminToken, createBody); rec.Code != http.StatusCreated {
			t.Fatalf("create: %d", rec.Code)
		}
	}

	rec := f.do(t, http.MethodGet, "/funding-calls?type=grant&limit=2&page=2", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	res := decode[funding.ListResult](t, rec)
	if len(res.Calls) != 1 || res.Pagination.Total != 3 || res.Pagination.Pages != 2 || res.Pagination.Limit != 2 {
		t.Fatalf("unexpected result %+v", res.Pagination)
	}

	rec = f.do(t, http.MethodGet, "/api/funding-calls?type=scholarship", "", "")
	if !strings.Contains(rec.Body.String(), `"calls":[]`) {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/funding-calls?status=pending", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/funding-calls", f.adminToken, createBody)

	rec := f.do(t, http.MethodGet, "/funding-stats", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: %d", rec.Code)
	}
	st := decode[funding.Stats](t, rec)
	if st.Total != 1 || st.ClosingSoon != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestRecomputeEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/funding-calls", f.adminToken, createBody)

	rec := f.do(t, http.MethodPost, "/admin/recompute-status?wait=true", f.userToken, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/admin/recompute-status?wait=true", f.adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("recompute: %d %s", rec.Code, rec.Body.String())
	}
	res := decode[funding.RecomputeResult](t, rec)
	if res.Scanned != 1 || res.Updated != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAuthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/register", "", `{"email":"new@example.org","password":"long-enough","name":"New"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("response leaks password data: %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/auth/register", "", `{"email":"new@example.org","password":"long-enough"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"new@example.org","password":"wrong-one"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/auth/login", "", `{"email":"new@example.org","password":"long-enough"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d", rec.Code)
	}
	if decode[auth.AuthResponse](t, rec).Token == "" {
		t.Fatal("expected token")
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func TestIfMatchVersion(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{`"3"`, 3, true},
		{`W/"4"`, 4, true},
		{"5", 5, true},
		{"", 0, false},
		{`"abc"`, 0, false},
		{`"0"`, 0, false},
	}
	for _, tt := range tests {
		got, ok := ifMatchVersion(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ifMatchVersion(%q): expected %d/%v, got %d/%v", tt.in, tt.want, tt.ok, got, ok)
		}
	}
}
