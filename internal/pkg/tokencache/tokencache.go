// Package tokencache provides an expiry-aware cache for short-lived access
// tokens. A cache is created once per process and handed to the platform
// client that needs it, so tests can drive it with a fake clock and a fake
// refresh function instead of real credentials.
package tokencache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Token is an access token with its absolute expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// RefreshFunc obtains a fresh token from the upstream platform.
type RefreshFunc func(ctx context.Context) (Token, error)

// Cache caches a token and transparently refreshes it when it is within the
// safety buffer of expiry. Refresh failures are returned to the caller as
// hard errors: a credential that cannot be refreshed is a configuration
// problem, not a per-day data gap.
type Cache struct {
	mu      sync.Mutex
	refresh RefreshFunc
	buffer  time.Duration
	now     func() time.Time
	current Token
}

// Option configures a Cache.
type Option func(*Cache)

// WithBuffer overrides the refresh safety buffer (default 60s).
func WithBuffer(d time.Duration) Option {
	return func(c *Cache) { c.buffer = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a token cache around the given refresh function.
func New(refresh RefreshFunc, opts ...Option) *Cache {
	c := &Cache{
		refresh: refresh,
		buffer:  60 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a valid token value, refreshing first if the cached token is
// missing or expires within the safety buffer.
func (c *Cache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Value != "" && c.now().Before(c.current.ExpiresAt.Add(-c.buffer)) {
		return c.current.Value, nil
	}

	tok, err := c.refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("refreshing access token: %w", err)
	}
	c.current = tok
	return tok.Value, nil
}

// Invalidate drops the cached token so the next Get refreshes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = Token{}
	c.mu.Unlock()
}
