// Package concurrency implements the two ways independent work runs
// outside the interpreter's normal single-threaded pull loop: the `go`
// primitive, which spawns an audio graph thread sharing a captured
// workspace reference, and a bounded pool for batching offline render
// jobs. Both are built on golang.org/x/sync's errgroup/semaphore rather
// than a hand-rolled channel-and-WaitGroup pool, since every job here
// is a bounded, awaited unit of work rather than a long-lived queue of
// heterogeneous jobs.
package concurrency

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Metrics tracks a pool or spawner's lifetime activity: how many jobs
// it admitted, and how many of those finished versus failed.
type Metrics struct {
	Spawned   int64
	Completed int64
	Failed    int64
}

func (m *Metrics) snapshot() Metrics {
	return Metrics{
		Spawned:   atomic.LoadInt64(&m.Spawned),
		Completed: atomic.LoadInt64(&m.Completed),
		Failed:    atomic.LoadInt64(&m.Failed),
	}
}

// Pool bounds how many render jobs run at once, backed by a weighted
// semaphore rather than a fixed goroutine count. Every job submitted
// through Run reserves exactly one slot.
type Pool struct {
	sem     *semaphore.Weighted
	metrics Metrics
}

// NewPool builds a pool that admits at most capacity concurrent units
// of weight 1 each.
func NewPool(capacity int64) *Pool {
	return &Pool{sem: semaphore.NewWeighted(capacity)}
}

// Metrics returns a point-in-time snapshot.
func (p *Pool) Metrics() Metrics { return p.metrics.snapshot() }

// Run submits jobs for bounded concurrent execution and waits for all
// of them, short-circuiting on the first error.
func (p *Pool) Run(ctx context.Context, jobs []func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		if err := p.sem.Acquire(gctx, 1); err != nil {
			if werr := g.Wait(); werr != nil {
				return werr
			}
			return err
		}
		atomic.AddInt64(&p.metrics.Spawned, 1)
		g.Go(func() error {
			defer p.sem.Release(1)
			if err := job(gctx); err != nil {
				atomic.AddInt64(&p.metrics.Failed, 1)
				return err
			}
			atomic.AddInt64(&p.metrics.Completed, 1)
			return nil
		})
	}
	return g.Wait()
}

// Spawner owns the goroutine bookkeeping behind the `go` primitive:
// every spawned thread shares whatever workspace/state the caller
// captured, runs to completion or error independently, and is tracked
// so the host can wait for every outstanding thread to settle before
// tearing a session down (e.g. at REPL exit).
type Spawner struct {
	g       *errgroup.Group
	metrics Metrics
}

func NewSpawner() *Spawner {
	g := &errgroup.Group{}
	return &Spawner{g: g}
}

// Go launches fn on its own goroutine, tracked for Wait.
func (s *Spawner) Go(fn func() error) {
	atomic.AddInt64(&s.metrics.Spawned, 1)
	s.g.Go(func() error {
		if err := fn(); err != nil {
			atomic.AddInt64(&s.metrics.Failed, 1)
			return err
		}
		atomic.AddInt64(&s.metrics.Completed, 1)
		return nil
	})
}

// Wait blocks until every spawned thread has returned, propagating the
// first error seen (if any).
func (s *Spawner) Wait() error { return s.g.Wait() }

func (s *Spawner) Metrics() Metrics { return s.metrics.snapshot() }
