// Package cache is a thin Redis layer over rendered metrics documents.
// The dashboard polls aggressively; a short TTL absorbs the repeat reads
// without ever serving data older than one sync interval.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emberline/commerce-pulse/internal/config"
	"github.com/emberline/commerce-pulse/internal/pkg/logger"
)

const keyPrefix = "metrics"

// Cache stores rendered responses keyed by date range. A nil *Cache is
// valid and behaves as a permanent miss, so callers never branch on
// whether Redis is configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis per the config. It returns nil (no cache) when
// caching is disabled or the URL is unset.
func New(cfg config.RedisConfig) (*Cache, error) {
	if !cfg.Enabled || cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &Cache{client: redis.NewClient(opts), ttl: cfg.TTL()}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func rangeKey(start, end string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, start, end)
}

// Get returns the cached document for a date range, or ok=false on a miss.
// Redis failures degrade to a miss.
func (c *Cache) Get(ctx context.Context, start, end string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, rangeKey(start, end)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Warn("cache read failed", "error", err.Error())
		return nil, false
	}
	return data, true
}

// Set stores a rendered document for a date range under the configured TTL.
func (c *Cache) Set(ctx context.Context, start, end string, payload []byte) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, rangeKey(start, end), payload, c.ttl).Err(); err != nil {
		logger.Warn("cache write failed", "error", err.Error())
	}
}

// Invalidate drops every cached range. Called after a sync run lands new
// rows, so the dashboard never waits out a TTL to see fresh numbers.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, keyPrefix+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warn("cache scan failed", "error", err.Error())
		return
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			logger.Warn("cache invalidation failed", "error", err.Error())
		}
	}
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
