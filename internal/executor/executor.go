// Package executor holds the execution boundary. Real submission is out of
// scope; the coordinator here records and announces approved opportunities.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/notify"
)

// Notifier is the subset of notify.Notifier the coordinator uses.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// DryRunCoordinator implements domain.ExecutionCoordinator without touching
// the chain. Every call succeeds. Notifications for the same triple are
// throttled by a cooldown so a fast-tracked key does not page every cycle.
type DryRunCoordinator struct {
	notifier Notifier
	dedup    *Dedup
	logger   *slog.Logger

	executed atomic.Int64

	cleanupInterval time.Duration
}

// NewDryRunCoordinator creates a coordinator. notifier may be nil.
func NewDryRunCoordinator(notifier Notifier, cooldown time.Duration, logger *slog.Logger) *DryRunCoordinator {
	if cooldown <= 0 {
		cooldown = 10 * time.Minute
	}
	return &DryRunCoordinator{
		notifier:        notifier,
		dedup:           NewDedup(cooldown),
		logger:          logger.With(slog.String("component", "executor")),
		cleanupInterval: time.Minute,
	}
}

// Execute logs the would-be trade and notifies operators.
func (c *DryRunCoordinator) Execute(ctx context.Context, triple domain.TokenTriple, amount decimal.Decimal, correlationID string) bool {
	n := c.executed.Add(1)
	c.logger.Info("dry-run execution",
		slog.String("correlation_id", correlationID),
		slog.String("path", triple.String()),
		slog.String("amount", amount.String()),
		slog.Int64("total", n),
	)

	if c.notifier == nil || c.dedup.IsDuplicate(triple.Key()) {
		return true
	}
	msg := fmt.Sprintf("path %s\namount %s\ncorrelation %s", triple.String(), amount.String(), correlationID)
	if err := c.notifier.Notify(ctx, notify.EventOpportunityExecuted, "Triangular opportunity", msg); err != nil {
		c.logger.Warn("execution notification failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
	return true
}

// Executed returns the number of Execute calls so far.
func (c *DryRunCoordinator) Executed() int64 { return c.executed.Load() }

// Run prunes the notification cooldown table until ctx is cancelled.
func (c *DryRunCoordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.dedup.Cleanup()
		}
	}
}

var _ domain.ExecutionCoordinator = (*DryRunCoordinator)(nil)
