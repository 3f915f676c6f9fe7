// Package taskpool bounds the number of tasks an agent server executes at
// once.
package taskpool

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/Strob0t/docmesh/internal/domain"
)

// Pool limits concurrent task executions using a weighted semaphore.
type Pool struct {
	sem     *semaphore.Weighted
	limit   int
	running atomic.Int64
	waiting atomic.Int64
}

// New creates a Pool that allows at most limit concurrent executions.
func New(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit)), limit: limit}
}

// Run acquires a slot, runs fn, and releases the slot. It blocks while all
// slots are busy; if ctx ends first the error wraps domain.ErrTimeout.
// A nil pool runs fn directly.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if p == nil || p.sem == nil {
		return fn()
	}
	p.waiting.Add(1)
	err := p.sem.Acquire(ctx, 1)
	p.waiting.Add(-1)
	if err != nil {
		return fmt.Errorf("%w: waiting for an execution slot: %w", domain.ErrTimeout, err)
	}
	defer p.sem.Release(1)

	p.running.Add(1)
	defer p.running.Add(-1)
	return fn()
}

// Limit returns the configured concurrency.
func (p *Pool) Limit() int { return p.limit }

// Running returns the number of executions holding a slot.
func (p *Pool) Running() int { return int(p.running.Load()) }

// Waiting returns the number of callers blocked on a slot.
func (p *Pool) Waiting() int { return int(p.waiting.Load()) }
