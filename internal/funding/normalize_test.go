package funding

import (
	"strings"
	"testing"
	"time"

	"github.com/ujpm/GGH-website-sub000/internal/models"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$5,000", "5,000"},
		{"  €  1 200 ", "1 200"},
		{"$$£10k", "10k"},
		{"₦250,000", "250,000"},
		{"5000", "5000"},
		{"Up to $5,000", "Up to $5,000"},
		{"", ""},
	}
	for _, tt := range tests {
		got := NormalizeAmount(tt.in)
		if got != tt.want {
			t.Fatalf("NormalizeAmount(%q): expected %q, got %q", tt.in, tt.want, got)
		}
		if again := NormalizeAmount(got); again != got {
			t.Fatalf("NormalizeAmount not idempotent for %q: %q -> %q", tt.in, got, again)
		}
	}
}

func TestTruncateTextIsRuneSafe(t *testing.T) {
	s := strings.Repeat("é", 300)
	got := truncateText(s, summaryMaxLen)
	if n := len([]rune(got)); n != summaryMaxLen {
		t.Fatalf("expected %d runes, got %d", summaryMaxLen, n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis, got %q", got[len(got)-6:])
	}
	if short := truncateText("short", summaryMaxLen); short != "short" {
		t.Fatalf("expected unchanged, got %q", short)
	}
}

func TestNormalizeCallKeepsBlankRequirementsForValidation(t *testing.T) {
	call := models.FundingCall{
		Title:        "x",
		Requirements: []string{" CV ", "   "},
		Eligibility:  models.Eligibility{Criteria: []string{" a ", ""}},
		Deadline:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("WAT", 3600)),
	}
	normalizeCall(&call)

	if len(call.Requirements) != 2 || call.Requirements[0] != "CV" || call.Requirements[1] != "" {
		t.Fatalf("unexpected requirements %q", call.Requirements)
	}
	if len(call.Eligibility.Criteria) != 1 || call.Eligibility.Criteria[0] != "a" {
		t.Fatalf("unexpected criteria %q", call.Eligibility.Criteria)
	}
	if call.Deadline.Location() != time.UTC || call.Deadline.Hour() != 8 {
		t.Fatalf("expected deadline converted to UTC, got %s", call.Deadline)
	}
	if call.Tags == nil {
		t.Fatal("tags should be an empty slice, not nil")
	}
}

func TestSeedInputsResolveRelativeDeadlines(t *testing.T) {
	now := time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)
	seed, err := DemoSeed()
	if err != nil {
		t.Fatalf("demo seed: %v", err)
	}
	inputs := seed.Inputs(now)
	if len(inputs) == 0 {
		t.Fatal("demo seed is empty")
	}
	for _, in := range inputs {
		if !in.Deadline.After(now) {
			t.Fatalf("%s: expected a future deadline, got %s", in.Title, in.Deadline)
		}
		if err := Validate(in); err != nil {
			t.Fatalf("%s: demo entry does not validate: %v", in.Title, err)
		}
	}
}
