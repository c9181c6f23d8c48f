package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/notify"
	"github.com/alanyoungcy/triarb/internal/server"
	"github.com/alanyoungcy/triarb/internal/server/handler"
)

// OnceMode runs a single cycle. The caller drains the pool afterwards.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")
	_, err := deps.Engine.Scan(ctx)
	if err != nil {
		a.notifyCycleFailure(ctx, deps, err)
		return fmt.Errorf("once mode: %w", err)
	}
	return nil
}

// ScanMode runs a cycle immediately and then every scanner.interval. The HTTP
// server runs alongside when enabled.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Scanner.Interval.Duration
	a.logger.InfoContext(ctx, "starting scan mode", slog.Duration("interval", interval))

	g, ctx := errgroup.WithContext(ctx)
	a.startBackground(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	g.Go(func() error {
		a.runCycle(ctx, deps)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				a.runCycle(ctx, deps)
			}
		}
	})

	return g.Wait()
}

// ServerMode serves the control API; cycles run only when triggered.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startBackground(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// runCycle runs one guarded cycle. When a lock manager is wired, the cycle is
// skipped if another instance holds the factory's scan lock.
func (a *App) runCycle(ctx context.Context, deps *Dependencies) {
	if deps.LockManager != nil {
		unlock, err := deps.LockManager.Acquire(ctx, deps.LockKey, a.cfg.Redis.ScanLockTTL.Duration)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			a.logger.InfoContext(ctx, "scan lock held elsewhere, skipping cycle", slog.String("lock", deps.LockKey))
			return
		case err != nil:
			a.logger.WarnContext(ctx, "scan lock unavailable, skipping cycle", slog.String("error", err.Error()))
			return
		}
		defer unlock()
	}

	_, err := deps.Engine.Scan(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrScanInProgress):
		a.logger.InfoContext(ctx, "previous cycle still dispatching, skipping")
	case ctx.Err() != nil:
	default:
		a.notifyCycleFailure(ctx, deps, err)
	}
}

func (a *App) notifyCycleFailure(ctx context.Context, deps *Dependencies, cause error) {
	if deps.Notifier == nil {
		return
	}
	if err := deps.Notifier.Notify(ctx, notify.EventCycleFailed, "Scan cycle failed", cause.Error()); err != nil {
		a.logger.WarnContext(ctx, "cycle failure notification failed", slog.String("error", err.Error()))
	}
}

func (a *App) startBackground(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	for _, run := range deps.Background {
		g.Go(func() error { return run(ctx) })
	}
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	h := server.Handlers{
		Health:        handler.NewHealthHandler(),
		Status:        handler.NewStatusHandler(a.cfg.Mode, deps.Engine),
		Scan:          handler.NewScanHandler(newScanTrigger(ctx, a, deps, g), a.logger),
		Opportunities: handler.NewOpportunityHandler(deps.Opportunities, a.logger),
	}
	if deps.Metrics != nil {
		h.Metrics = deps.Metrics.Handler()
	}
	srv := server.NewServer(server.Config{
		Port:       a.cfg.Server.Port,
		APIKey:     a.cfg.Server.APIKey,
		RatePerSec: a.cfg.Server.RatePerSec,
		RateBurst:  a.cfg.Server.RateBurst,
	}, h, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// drain waits up to scanner.drain_timeout for in-flight evaluation units.
func (a *App) drain(ctx context.Context, deps *Dependencies) {
	timeout := a.cfg.Scanner.DrainTimeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := deps.Engine.Drain(drainCtx); err != nil {
		a.logger.Warn("drain incomplete", slog.String("error", err.Error()))
		return
	}
	a.logger.Info("evaluation units drained")
}
