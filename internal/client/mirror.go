package client

import (
	"context"
	"sync"
	"time"

	"github.com/ujpm/GGH-website-sub000/internal/funding"
)

// Lister is the listing call Mirror depends on.
type Lister interface {
	ListCalls(ctx context.Context, p funding.ListParams) (*funding.ListResult, error)
}

// Mirror fetches listings into a Cache. A new Refresh cancels the one still
// in flight, so only the latest filter selection can populate the cache.
type Mirror struct {
	api   Lister
	cache *Cache
	now   func() time.Time

	mu       sync.Mutex
	seq      uint64
	inflight context.CancelFunc
}

func NewMirror(api Lister, cache *Cache, now func() time.Time) *Mirror {
	if now == nil {
		now = time.Now
	}
	return &Mirror{api: api, cache: cache, now: now}
}

func (m *Mirror) Cache() *Cache { return m.cache }

// Refresh loads params into the cache. On error, including cancellation by a
// newer Refresh, the cache keeps its previous contents.
func (m *Mirror) Refresh(ctx context.Context, params funding.ListParams) (*funding.ListResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if m.inflight != nil {
		m.inflight()
	}
	m.seq++
	mySeq := m.seq
	m.inflight = cancel
	m.mu.Unlock()

	res, err := m.api.ListCalls(ctx, params)

	m.mu.Lock()
	defer m.mu.Unlock()
	if mySeq == m.seq {
		m.inflight = nil
	}
	if err != nil {
		return nil, err
	}
	if mySeq != m.seq {
		// Superseded after the response arrived.
		return nil, context.Canceled
	}
	m.cache.Replace(res, m.now())
	return res, nil
}
