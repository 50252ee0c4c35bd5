// Package cache keeps a short-lived copy of each address's merged timeline in Redis
// so read requests do not hit Postgres between reconciliation passes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/brojonat/txfeed/service/metrics"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "txfeed:activities"

// ActivityCache is a read-through cache of sorted activity timelines.
type ActivityCache struct {
	rdb     redis.Cmdable
	ttl     time.Duration
	network string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an ActivityCache. Keys are scoped by network so one Redis can
// serve several deployments.
func New(rdb redis.Cmdable, network string, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *ActivityCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityCache{rdb: rdb, ttl: ttl, network: network, metrics: m, logger: logger}
}

// NewClient parses a redis:// URL into a client.
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (c *ActivityCache) key(address string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, c.network, address)
}

// Get returns the cached timeline for address. ok is false on a miss.
func (c *ActivityCache) Get(ctx context.Context, address string) (list []activity.Activity, ok bool, err error) {
	raw, err := c.rdb.Get(ctx, c.key(address)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.metrics.RecordCacheLookup("miss")
		return nil, false, nil
	case err != nil:
		c.metrics.RecordCacheLookup("error")
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	if err := json.Unmarshal(raw, &list); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.metrics.RecordCacheLookup("error")
		c.logger.WarnContext(ctx, "discarding undecodable cache entry", "address", address, "error", err)
		_ = c.rdb.Del(ctx, c.key(address)).Err()
		return nil, false, nil
	}
	c.metrics.RecordCacheLookup("hit")
	return list, true, nil
}

// Set stores the timeline for address with the configured TTL.
func (c *ActivityCache) Set(ctx context.Context, address string, list []activity.Activity) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal activities: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(address), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate drops the cached timeline for address.
func (c *ActivityCache) Invalidate(ctx context.Context, address string) error {
	if err := c.rdb.Del(ctx, c.key(address)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
