package tiktokads

import (
	"context"
	"encoding/json"
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

	c := NewClient(config.TikTokConfig{
		AccessToken:    "tt-token",
		AdvertiserID:   "adv-1",
		TimeoutSeconds: 5,
	})
	c.baseURL = srv.URL
	return c
}

func TestDailyMetrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/report/integrated/get/", r.URL.Path)
		assert.Equal(t, "tt-token", r.Header.Get("Access-Token"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "adv-1", body["advertiser_id"])
		assert.Equal(t, "2025-05-01", body["start_date"])

		w.Write([]byte(`{"code":0,"message":"OK","data":{"list":[{
			"dimensions":{"stat_time_day":"2025-05-01 00:00:00"},
			"metrics":{"spend":"88.40","complete_payment_roas":"2.10"}
		}]}}`))
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformTikTok, m.Platform)
	assert.Equal(t, 88.40, m.Spend)
	assert.Equal(t, 2.10, m.ROAS)
}

func TestDailyMetricsNonZeroCodeYieldsZeroRow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":40105,"message":"Access token is invalid","data":{}}`))
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-05-01", m.Date)
	assert.Zero(t, m.Spend)
}

func TestDailyMetricsEmptyList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"message":"OK","data":{"list":[]}}`))
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, domain.AdDailyMetrics{Date: "2025-05-01", Platform: domain.PlatformTikTok}, m)
}
