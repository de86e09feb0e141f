package linkcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckReportsStatusAndTitle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><title>  Apply   now </title></head><body></body></html>"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewChecker()
	c.DomainDelay = 0
	c.RequestTimeout = 5 * time.Second

	results := c.Check(context.Background(), []Target{
		{ID: "1", URL: ts.URL + "/ok"},
		{ID: "2", URL: ts.URL + "/gone"},
		{ID: "3", URL: "mailto:grants@example.org"},
		{ID: "4", URL: ""},
	})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	tests := []struct {
		id     string
		ok     bool
		status int
	}{
		{"1", true, http.StatusOK},
		{"2", false, http.StatusGone},
		{"3", false, 0},
		{"4", false, 0},
	}
	for i, tt := range tests {
		r := results[i]
		if r.ID != tt.id {
			t.Fatalf("result %d out of order: %s", i, r.ID)
		}
		if r.OK() != tt.ok || r.StatusCode != tt.status {
			t.Errorf("%s: expected ok=%v status=%d, got ok=%v status=%d err=%q", tt.id, tt.ok, tt.status, r.OK(), r.StatusCode, r.Err)
		}
	}
	if results[0].PageTitle != "Apply now" {
		t.Errorf("expected collapsed page title, got %q", results[0].PageTitle)
	}
}

func TestCheckCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewChecker().Check(ctx, []Target{{ID: "1", URL: ts.URL}})
	if results[0].OK() {
		t.Fatalf("expected cancelled check to fail, got %+v", results[0])
	}
}
