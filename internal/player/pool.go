package player

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is the number of concurrent extraction jobs.
const DefaultWorkers = 2

// ErrPoolClosed is returned when work is submitted after shutdown.
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool bounds how many blocking extraction jobs run at once.
type Pool struct {
	size   int64
	sem    *semaphore.Weighted
	closed atomic.Bool

	active    atomic.Int64
	completed atomic.Int64
}

// NewPool creates a pool of size workers.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultWorkers
	}
	return &Pool{size: int64(size), sem: semaphore.NewWeighted(int64(size))}
}

// Run executes fn once a worker slot is free.
func (p *Pool) Run(ctx context.Context, fn func(context.Context) error) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for extraction worker: %w", err)
	}
	defer p.sem.Release(1)

	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)
	}()
	return fn(ctx)
}

// Active returns the number of running jobs.
func (p *Pool) Active() int64 { return p.active.Load() }

// Completed returns the number of finished jobs.
func (p *Pool) Completed() int64 { return p.completed.Load() }

// Name implements lifecycle.Component.
func (p *Pool) Name() string { return "extraction-pool" }

// Shutdown rejects new work and waits for running jobs to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.closed.Store(true)
	if err := p.sem.Acquire(ctx, p.size); err != nil {
		return fmt.Errorf("waiting for extraction jobs: %w", err)
	}
	p.sem.Release(p.size)
	return nil
}

// ForceStop rejects new work without waiting.
func (p *Pool) ForceStop() {
	p.closed.Store(true)
}
