package snapads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberline/commerce-pulse/internal/config"
	"github.com/emberline/commerce-pulse/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.SnapchatConfig{
		AccessToken:    "snap-token",
		AdAccountID:    "acct-1",
		TimeoutSeconds: 5,
	})
	c.baseURL = srv.URL
	return c
}

func TestDailyMetrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/adaccounts/acct-1/stats", r.URL.Path)
		assert.Equal(t, "Bearer snap-token", r.Header.Get("Authorization"))
		assert.Equal(t, "DAY", r.URL.Query().Get("granularity"))

		// spend in micros: 42.5 currency units
		w.Write([]byte(`{"total_stats":[{"total_stat":{"spend":42500000,"total_purchases_value":127.5}}]}`))
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformSnapchat, m.Platform)
	assert.InDelta(t, 42.5, m.Spend, 1e-9)
	assert.InDelta(t, 3.0, m.ROAS, 1e-9)
}

func TestDailyMetricsZeroSpendGuard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_stats":[{"total_stat":{"spend":0,"total_purchases_value":50}}]}`))
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Zero(t, m.Spend)
	assert.Zero(t, m.ROAS)
}

func TestDailyMetricsUpstreamFailureYieldsZeroRow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, domain.AdDailyMetrics{Date: "2025-05-01", Platform: domain.PlatformSnapchat}, m)
}
