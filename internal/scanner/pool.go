package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Pool runs evaluation units on a bounded number of goroutines. Submit is
// fire-and-forget: it returns once the unit is admitted, which only waits
// when every worker is busy.
type Pool struct {
	eg       errgroup.Group
	size     int
	inflight atomic.Int64
	logger   *slog.Logger
}

// NewPool creates a pool of size workers. size <= 0 uses runtime.NumCPU().
func NewPool(size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		size:   size,
		logger: logger.With(slog.String("component", "worker_pool")),
	}
	p.eg.SetLimit(size)
	return p
}

// Size returns the worker count.
func (p *Pool) Size() int { return p.size }

// InFlight returns the number of admitted units that have not finished.
func (p *Pool) InFlight() int64 { return p.inflight.Load() }

// Submit admits task. A panic inside task is logged and does not take the
// process down.
func (p *Pool) Submit(task func()) {
	p.inflight.Add(1)
	p.eg.Go(func() error {
		defer p.inflight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("evaluation unit panicked", slog.String("panic", fmt.Sprint(r)))
			}
		}()
		task()
		return nil
	})
}

// Drain waits until every admitted unit finished or ctx is done. Callers
// must stop submitting before draining.
func (p *Pool) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = p.eg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool: drain with %d units in flight: %w", p.inflight.Load(), ctx.Err())
	}
}
