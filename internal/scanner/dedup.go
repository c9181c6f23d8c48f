package scanner

import (
	"fmt"
	"sync"

	"github.com/alanyoungcy/triarb/internal/domain"
)

type keyState uint8

const (
	stateSkipped keyState = iota + 1
	stateHighProfit
)

// DedupSets holds the skipped and high-profit triple keys. A key absent from
// both is unknown. Keys are never removed for the lifetime of the value, and
// a key can never be in both sets. Safe for concurrent use.
//
// Callers check then act without holding the lock across the two steps, so two
// workers may evaluate the same key concurrently. Both inserts are idempotent,
// which makes such duplicates harmless.
type DedupSets struct {
	mu    sync.RWMutex
	state map[string]keyState
}

// NewDedupSets returns empty sets.
func NewDedupSets() *DedupSets {
	return &DedupSets{state: make(map[string]keyState)}
}

func (d *DedupSets) get(key string) keyState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state[key]
}

// IsSkipped reports whether key is permanently excluded.
func (d *DedupSets) IsSkipped(key string) bool { return d.get(key) == stateSkipped }

// IsHighProfit reports whether key was previously confirmed profitable.
func (d *DedupSets) IsHighProfit(key string) bool { return d.get(key) == stateHighProfit }

// MarkSkipped adds key to the skipped set. Adding a key already there is a
// no-op. A key already in the high-profit set is left untouched and
// domain.ErrConflictingState is returned.
func (d *DedupSets) MarkSkipped(key string) error {
	return d.mark(key, stateSkipped)
}

// MarkHighProfit adds key to the high-profit set, with the same rules as
// MarkSkipped.
func (d *DedupSets) MarkHighProfit(key string) error {
	return d.mark(key, stateHighProfit)
}

func (d *DedupSets) mark(key string, s keyState) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch cur := d.state[key]; cur {
	case 0:
		d.state[key] = s
		return nil
	case s:
		return nil
	default:
		return fmt.Errorf("dedup: mark %s: %w", key, domain.ErrConflictingState)
	}
}

// Sizes returns the number of keys in each set.
func (d *DedupSets) Sizes() (skipped, highProfit int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.state {
		switch s {
		case stateSkipped:
			skipped++
		case stateHighProfit:
			highProfit++
		}
	}
	return skipped, highProfit
}
