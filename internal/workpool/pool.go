// Package workpool bounds the number of domain fetches running at once.
package workpool

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool limits concurrent analyzer calls using a weighted semaphore.
// One Pool is shared by every batch in the process so the bound caps
// outbound fetches globally, not per batch.
type Pool struct {
	sem    *semaphore.Weighted
	limit  int
	active atomic.Int64
}

// New creates a Pool that allows at most limit concurrent jobs.
func New(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit)), limit: limit}
}

// Run acquires a slot, runs fn, and releases the slot.
// Blocks while all slots are busy. Returns ctx.Err() if the context
// is cancelled while waiting, in which case fn is not called.
// If the pool is nil, fn is executed directly.
func (p *Pool) Run(ctx context.Context, fn func()) error {
	if p == nil || p.sem == nil {
		fn()
		return nil
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.sem.Release(1)
	}()
	fn()
	return nil
}

// Limit returns the maximum number of concurrent jobs.
func (p *Pool) Limit() int { return p.limit }

// Active returns the number of jobs currently holding a slot.
func (p *Pool) Active() int { return int(p.active.Load()) }
