package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Config holds configuration for a Pool.
type Config struct {
	Workers   int        // Maximum calls in flight; 0 or less means 1
	RateLimit rate.Limit // Calls started per second; 0 means unlimited
	Burst     int        // Calls allowed to start back to back; defaults to Workers
}

// Pool runs independent calls with bounded concurrency and an optional start
// rate. The zero value is not usable; use NewPool.
type Pool struct {
	workers int
	limiter *rate.Limiter
}

// NewPool creates a new pool.
func NewPool(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = workers
	}

	return &Pool{
		workers: workers,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int {
	return p.workers
}

// Run calls fn once for every index in [0, n). It stops starting new calls
// when ctx is done and returns ctx's error in that case; calls already
// started run to completion.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := 0; i < n; i++ {
		if err := p.limiter.Wait(ctx); err != nil {
			_ = g.Wait()
			return ctx.Err()
		}
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			fn(gctx, i)
			return nil
		})
	}

	_ = g.Wait()
	return ctx.Err()
}

// Map applies fn to every input through the pool and returns the outputs in
// input order. Inputs skipped because ctx ended keep their zero value.
func Map[In, Out any](ctx context.Context, p *Pool, in []In, fn func(ctx context.Context, v In) Out) ([]Out, error) {
	out := make([]Out, len(in))
	err := p.Run(ctx, len(in), func(ctx context.Context, i int) {
		out[i] = fn(ctx, in[i])
	})
	return out, err
}
