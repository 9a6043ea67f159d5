package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrBusy means every slot is taken and the wait queue is full, or the wait
// for a slot expired.
var ErrBusy = errors.New("all summarizer slots are busy")

// Pool caps how many jobs run at once. Callers that find it full wait in a
// bounded queue for up to waitTimeout.
type Pool struct {
	sem         *semaphore.Weighted
	size        int64
	maxQueue    int64
	waitTimeout time.Duration

	running atomic.Int64
	waiting atomic.Int64
}

// New returns a pool with size slots and room for maxQueue waiters.
// A zero waitTimeout lets waiters block until their context ends.
func New(size, maxQueue int, waitTimeout time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	if maxQueue < 0 {
		maxQueue = 0
	}
	return &Pool{
		sem:         semaphore.NewWeighted(int64(size)),
		size:        int64(size),
		maxQueue:    int64(maxQueue),
		waitTimeout: waitTimeout,
	}
}

// Do runs fn once a slot is free. It returns ErrBusy without calling fn when
// no slot frees up in time, and ctx.Err() when ctx ends while waiting.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	p.running.Add(1)
	defer func() {
		p.running.Add(-1)
		p.sem.Release(1)
	}()

	return fn(ctx)
}

func (p *Pool) acquire(ctx context.Context) error {
	if p.sem.TryAcquire(1) {
		return nil
	}

	if p.waiting.Add(1) > p.maxQueue {
		p.waiting.Add(-1)
		return ErrBusy
	}
	defer p.waiting.Add(-1)

	waitCtx := ctx
	if p.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.waitTimeout)
		defer cancel()
	}

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ErrBusy
	}
	return nil
}

// Stats is a point-in-time view of the pool, used for logging.
type Stats struct {
	Size    int
	Running int
	Waiting int
}

func (p *Pool) Stats() Stats {
	return Stats{
		Size:    int(p.size),
		Running: int(p.running.Load()),
		Waiting: int(p.waiting.Load()),
	}
}
