package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/notify"
)

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (f *fakeNotifier) Notify(_ context.Context, event, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

var triple = domain.TokenTriple{A: "0xA", B: "0xB", C: "0xC"}

func TestDryRunCoordinator_ExecuteAlwaysSucceeds(t *testing.T) {
	n := &fakeNotifier{err: errors.New("webhook down")}
	c := NewDryRunCoordinator(n, time.Minute, slog.New(slog.DiscardHandler))

	assert.True(t, c.Execute(context.Background(), triple, decimal.NewFromInt(1000), "cid-1"))
	assert.Equal(t, int64(1), c.Executed())
	assert.Equal(t, []string{notify.EventOpportunityExecuted}, n.events)
}

func TestDryRunCoordinator_NotificationCooldown(t *testing.T) {
	n := &fakeNotifier{}
	c := NewDryRunCoordinator(n, time.Minute, slog.New(slog.DiscardHandler))
	other := domain.TokenTriple{A: "0xA", B: "0xC", C: "0xB"}

	for i := 0; i < 3; i++ {
		c.Execute(context.Background(), triple, decimal.NewFromInt(1), "cid")
	}
	c.Execute(context.Background(), other, decimal.NewFromInt(1), "cid")

	assert.Equal(t, int64(4), c.Executed())
	assert.Len(t, n.events, 2)
}

func TestDryRunCoordinator_NilNotifier(t *testing.T) {
	c := NewDryRunCoordinator(nil, 0, slog.New(slog.DiscardHandler))
	assert.True(t, c.Execute(context.Background(), triple, decimal.NewFromInt(1), "cid"))
}

func TestDedup_WindowAndCleanup(t *testing.T) {
	d := NewDedup(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	d.now = func() time.Time { return now }

	assert.False(t, d.IsDuplicate("k"))
	assert.True(t, d.IsDuplicate("k"))

	now = now.Add(time.Minute)
	assert.False(t, d.IsDuplicate("k"), "window elapsed")

	d.IsDuplicate("old")
	now = now.Add(2 * time.Minute)
	d.Cleanup()
	assert.Zero(t, d.Len())
}
