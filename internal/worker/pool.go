package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// PoolConfig bounds per-item parallelism.
type PoolConfig struct {
	// Concurrency is the maximum number of items in flight. Values < 1 mean 1.
	Concurrency int
	// RatePerSecond caps item starts per second across the pool. 0 disables limiting.
	RatePerSecond float64
	// Burst is the limiter bucket size. Values < 1 mean 1.
	Burst int
}

// DefaultPoolConfig runs items one at a time without rate limiting.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Concurrency: 1, Burst: 1}
}

// Pool runs independent items with bounded concurrency.
type Pool struct {
	concurrency int
	limiter     *rate.Limiter
}

// NewPool creates a pool from cfg.
func NewPool(cfg PoolConfig) *Pool {
	p := &Pool{concurrency: max(cfg.Concurrency, 1)}
	if cfg.RatePerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(cfg.Burst, 1))
	}
	return p
}

// Concurrency reports the configured parallelism.
func (p *Pool) Concurrency() int {
	return p.concurrency
}

type indexed[R any] struct {
	i int
	v R
}

// Run calls fn for each index in [0, n). Per-item failures must be carried inside R;
// Run itself only fails when ctx is done. Results are handed to sink from a single
// goroutine in completion order, so sink needs no locking. Items already finished
// when ctx is cancelled are still delivered.
func Run[R any](ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) R, sink func(i int, r R)) error {
	results := make(chan indexed[R], p.concurrency)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range results {
			sink(r.i, r.v)
		}
	}()

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	var launchErr error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			launchErr = err
			break
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				launchErr = err
				break
			}
		}
		g.Go(func() error {
			results <- indexed[R]{i: i, v: fn(ctx, i)}
			return nil
		})
	}

	_ = g.Wait()
	close(results)
	<-done
	return launchErr
}
