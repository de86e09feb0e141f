package client

import (
	"sync"
	"time"

	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/models"
	"github.com/ujpm/GGH-website-sub000/internal/status"
)

// Cache holds the last successful listing in server order. It is the only
// place the local copy is mutated.
type Cache struct {
	mu         sync.RWMutex
	calls      []models.FundingCall
	pagination funding.Pagination
	fetchedAt  time.Time
}

func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps in a fresh listing.
func (c *Cache) Replace(res *funding.ListResult, fetchedAt time.Time) {
	calls := make([]models.FundingCall, len(res.Calls))
	copy(calls, res.Calls)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = calls
	c.pagination = res.Pagination
	c.fetchedAt = fetchedAt
}

// Snapshot returns a copy of the cached calls in their original order.
func (c *Cache) Snapshot() []models.FundingCall {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.FundingCall, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *Cache) Pagination() funding.Pagination {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pagination
}

func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// Reconcile re-derives the status of every cached call against now and
// returns how many changed. Order, membership and every other field are
// left alone, and nothing is fetched or written back to the server.
func (c *Cache) Reconcile(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := 0
	for i := range c.calls {
		if status.Apply(&c.calls[i], now) {
			changed++
		}
	}
	return changed
}
