package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberline/commerce-pulse/internal/config"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewWithClient(client, 60*time.Second)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestGetMissThenHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "2025-05-01", "2025-05-07")
	assert.False(t, ok)

	c.Set(ctx, "2025-05-01", "2025-05-07", []byte(`{"shopify":{}}`))

	data, ok := c.Get(ctx, "2025-05-01", "2025-05-07")
	require.True(t, ok)
	assert.JSONEq(t, `{"shopify":{}}`, string(data))
}

func TestRangesAreIndependent(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "2025-05-01", "2025-05-07", []byte(`{"week":1}`))

	_, ok := c.Get(ctx, "2025-05-01", "2025-05-31")
	assert.False(t, ok)
}

func TestEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "2025-05-01", "2025-05-07", []byte(`{}`))
	mr.FastForward(61 * time.Second)

	_, ok := c.Get(ctx, "2025-05-01", "2025-05-07")
	assert.False(t, ok)
}

func TestInvalidateDropsAllRanges(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "2025-05-01", "2025-05-07", []byte(`{}`))
	c.Set(ctx, "2025-04-01", "2025-04-30", []byte(`{}`))
	c.Invalidate(ctx)

	_, ok := c.Get(ctx, "2025-05-01", "2025-05-07")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "2025-04-01", "2025-04-30")
	assert.False(t, ok)
}

func TestNilCacheIsAMiss(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	c.Set(ctx, "2025-05-01", "2025-05-07", []byte(`{}`))
	_, ok := c.Get(ctx, "2025-05-01", "2025-05-07")
	assert.False(t, ok)
	c.Invalidate(ctx)
	assert.NoError(t, c.Close())
}

func TestNewDisabledReturnsNil(t *testing.T) {
	c, err := New(config.RedisConfig{Enabled: false, URL: "redis://localhost:6379"})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewRejectsMalformedURL(t *testing.T) {
	_, err := New(config.RedisConfig{Enabled: true, URL: "://nope"})
	require.Error(t, err)
}
