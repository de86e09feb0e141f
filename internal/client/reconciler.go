package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultReconcileInterval = time.Hour

var ErrReconcilerRunning = errors.New("reconciler already running")

type ReconcilerOptions struct {
	Interval time.Duration
	Now      func() time.Time
	// OnChange is called after a pass that changed at least one status.
	OnChange func(changed int)
	Logger   *zap.Logger
}

// Reconciler periodically re-derives cached statuses so a long-lived view
// drifts from open to closing_soon to closed without refetching.
type Reconciler struct {
	cache    *Cache
	interval time.Duration
	now      func() time.Time
	onChange func(int)
	log      *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64 // bumped per Start; a loop only clears its own cancel
	wg     sync.WaitGroup
}

func NewReconciler(cache *Cache, opts ReconcilerOptions) *Reconciler {
	r := &Reconciler{
		cache:    cache,
		interval: opts.Interval,
		now:      opts.Now,
		onChange: opts.OnChange,
		log:      opts.Logger,
	}
	if r.interval <= 0 {
		r.interval = DefaultReconcileInterval
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// Start launches the loop. It stops when ctx is done or Stop is called, after
// which Start may be called again.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return ErrReconcilerRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.gen++

	r.wg.Add(1)
	go r.run(ctx, r.gen)
	r.log.Info("status reconciler started", zap.Duration("interval", r.interval))
	return nil
}

// Stop cancels the loop and waits for it to exit. Calling Stop on a stopped
// reconciler is a no-op.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
	r.log.Info("status reconciler stopped")
}

// RunOnce performs a single pass and returns the number of changed entries.
func (r *Reconciler) RunOnce() int {
	changed := r.cache.Reconcile(r.now())
	if changed > 0 {
		r.log.Debug("reconciled cached statuses", zap.Int("changed", changed))
		if r.onChange != nil {
			r.onChange(changed)
		}
	}
	return changed
}

func (r *Reconciler) run(ctx context.Context, gen uint64) {
	defer r.wg.Done()
	defer r.release(gen)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce()
		}
	}
}

// release forgets the cancel func of loop gen unless Stop or a newer Start
// already replaced it.
func (r *Reconciler) release(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen == gen && r.cancel != nil {
		r.cancel()
		r.cancel = nil
		r.log.Info("status reconciler stopped", zap.String("reason", "context done"))
	}
}
