package metaads

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

	c := NewClient(config.MetaConfig{
		AccessToken:    "meta-token",
		AdAccountID:    "act_123",
		TimeoutSeconds: 5,
	})
	c.baseURL = srv.URL
	return c
}

func TestDailyMetrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/act_123/insights", r.URL.Path)
		assert.Equal(t, "meta-token", r.URL.Query().Get("access_token"))
		assert.Equal(t, `{"since":"2025-05-01","until":"2025-05-01"}`, r.URL.Query().Get("time_range"))

		w.Write([]byte(`{"data":[{
			"date_start":"2025-05-01","date_stop":"2025-05-01",
			"spend":"245.67","reach":"45123",
			"purchase_roas":[{"value":"3.42"}]
		}]}`))
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformMeta, m.Platform)
	assert.Equal(t, 245.67, m.Spend)
	assert.Equal(t, 3.42, m.ROAS)
	assert.Equal(t, 45123, m.PaidReach)
}

func TestDailyMetricsWebsiteROASFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{
			"spend":"10.00","reach":"100",
			"website_purchase_roas":[{"value":"1.80"}]
		}]}`))
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, 1.80, m.ROAS)
}

func TestDailyMetricsEmptyData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, domain.AdDailyMetrics{Date: "2025-05-01", Platform: domain.PlatformMeta}, m)
}

func TestDailyMetricsUpstreamFailureYieldsZeroRow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid parameter"}}`, http.StatusBadRequest)
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-05-01", m.Date)
	assert.Zero(t, m.Spend)
	assert.Zero(t, m.ROAS)
}
