package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// PairCache implements domain.PairCache with JSON values under a TTL so
// several scanner instances share one discovery result.
//
// Key schema:
//
//	triarb:{key} - JSON array of token pairs, SET EX ttl
type PairCache struct {
	rdb    *redis.Client
	group  singleflight.Group
	logger *slog.Logger
}

// NewPairCache creates a PairCache backed by the given Client.
func NewPairCache(c *Client, logger *slog.Logger) *PairCache {
	return &PairCache{
		rdb:    c.Underlying(),
		logger: logger.With(slog.String("component", "redis_pair_cache")),
	}
}

func pairKey(key string) string { return "triarb:" + key }

// Get returns the cached pairs or domain.ErrNotFound.
func (pc *PairCache) Get(ctx context.Context, key string) ([]domain.TokenPair, error) {
	data, err := pc.rdb.Get(ctx, pairKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get pairs %s: %w", key, err)
	}
	var pairs []domain.TokenPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("redis: unmarshal pairs %s: %w", key, err)
	}
	return pairs, nil
}

// Set stores pairs under key for ttl.
func (pc *PairCache) Set(ctx context.Context, key string, pairs []domain.TokenPair, ttl time.Duration) error {
	data, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("redis: marshal pairs %s: %w", key, err)
	}
	if err := pc.rdb.Set(ctx, pairKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set pairs %s: %w", key, err)
	}
	return nil
}

// GetOrCompute serves pairs from Redis, computing and storing them on a miss.
// A Redis outage degrades to computing on every call rather than failing.
func (pc *PairCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]domain.TokenPair, error)) ([]domain.TokenPair, error) {
	pairs, err := pc.Get(ctx, key)
	if err == nil && len(pairs) > 0 {
		return pairs, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		pc.logger.Warn("pair cache read failed, fetching", slog.String("key", key), slog.String("error", err.Error()))
	}

	res, err, _ := pc.group.Do(key, func() (any, error) {
		pairs, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := pc.Set(ctx, key, pairs, ttl); err != nil {
			pc.logger.Warn("pair cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return pairs, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.TokenPair), nil
}

// Invalidate drops the cached pairs for key.
func (pc *PairCache) Invalidate(ctx context.Context, key string) error {
	if err := pc.rdb.Del(ctx, pairKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate pairs %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PairCache = (*PairCache)(nil)
