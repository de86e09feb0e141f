// Package status derives the lifecycle stage of a funding call from its
// deadline. It is the single source of truth used by server writes, the batch
// recompute job and the client-side reconciler.
package status

import (
	"time"

	"github.com/ujpm/GGH-website-sub000/internal/models"
)

// ClosingSoonWindow is the number of days before the deadline during which a
// call is reported as closing soon.
const ClosingSoonWindow = 7

const day = 24 * time.Hour

// DaysUntil returns ceil((deadline - now) / 24h).
func DaysUntil(deadline, now time.Time) int {
	diff := deadline.Sub(now)
	days := diff / day
	if diff%day > 0 {
		days++
	}
	return int(days)
}

// Derive maps a deadline to a status relative to now. A deadline equal to now
// is closed; a deadline exactly seven days out is still closing soon.
func Derive(deadline, now time.Time) models.Status {
	days := DaysUntil(deadline, now)
	switch {
	case days <= 0:
		return models.StatusClosed
	case days <= ClosingSoonWindow:
		return models.StatusClosingSoon
	default:
		return models.StatusOpen
	}
}

// Apply recomputes call.Status in place and reports whether it changed.
func Apply(call *models.FundingCall, now time.Time) bool {
	next := Derive(call.Deadline, now)
	if call.Status == next {
		return false
	}
	call.Status = next
	return true
}
