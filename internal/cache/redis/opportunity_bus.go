package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/triarb/internal/domain"
)

const (
	// OpportunityChannel carries accepted opportunities over Pub/Sub.
	OpportunityChannel = "triarb:opportunities"
	// OpportunityStream keeps a bounded durable history of them.
	OpportunityStream = "triarb:opportunities:stream"

	defaultStreamMaxLen int64 = 10000
)

// OpportunityBus implements domain.OpportunityPublisher using Redis Pub/Sub
// for live listeners and a capped stream for late readers.
type OpportunityBus struct {
	rdb    *redis.Client
	maxLen int64
}

// NewOpportunityBus creates a bus backed by the given Client. maxLen <= 0
// uses the default stream cap.
func NewOpportunityBus(c *Client, maxLen int64) *OpportunityBus {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &OpportunityBus{rdb: c.Underlying(), maxLen: maxLen}
}

// PublishOpportunity publishes opp and appends it to the stream in one
// pipeline round trip.
func (b *OpportunityBus) PublishOpportunity(ctx context.Context, opp domain.Opportunity) error {
	payload, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("redis: marshal opportunity %s: %w", opp.Key, err)
	}

	pipe := b.rdb.Pipeline()
	pipe.Publish(ctx, OpportunityChannel, payload)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: OpportunityStream,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish opportunity %s: %w", opp.Key, err)
	}
	return nil
}

// Recent returns up to count of the most recently published opportunities,
// newest first.
func (b *OpportunityBus) Recent(ctx context.Context, count int64) ([]domain.Opportunity, error) {
	msgs, err := b.rdb.XRevRangeN(ctx, OpportunityStream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read opportunities: %w", err)
	}
	out := make([]domain.Opportunity, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values["payload"].(string)
		if !ok {
			continue
		}
		var opp domain.Opportunity
		if err := json.Unmarshal([]byte(raw), &opp); err != nil {
			continue
		}
		out = append(out, opp)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.OpportunityPublisher = (*OpportunityBus)(nil)
