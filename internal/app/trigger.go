package app

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// scanTrigger starts cycles on request from the HTTP API. Cycles run under
// the application context, not the request's, and join the mode's group so
// shutdown waits for them before the pool is drained.
type scanTrigger struct {
	ctx   context.Context
	app   *App
	deps  *Dependencies
	group *errgroup.Group
	busy  atomic.Bool
}

func newScanTrigger(ctx context.Context, a *App, deps *Dependencies, g *errgroup.Group) *scanTrigger {
	return &scanTrigger{ctx: ctx, app: a, deps: deps, group: g}
}

// TriggerScan implements handler.ScanTrigger.
func (t *scanTrigger) TriggerScan() error {
	if t.deps.Engine.Running() || !t.busy.CompareAndSwap(false, true) {
		return domain.ErrScanInProgress
	}
	t.group.Go(func() error {
		defer t.busy.Store(false)
		t.app.runCycle(t.ctx, t.deps)
		return nil
	})
	return nil
}
