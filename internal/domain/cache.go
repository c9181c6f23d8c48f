package domain

import (
	"context"
	"time"
)

// PairCache memoizes pair discovery per factory address.
type PairCache interface {
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]TokenPair, error)) ([]TokenPair, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// OpportunityPublisher fans accepted opportunities out to listeners.
type OpportunityPublisher interface {
	PublishOpportunity(ctx context.Context, opp Opportunity) error
}
