package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberline/commerce-pulse/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.InstagramConfig{
		AccessToken:       "ig-token",
		BusinessAccountID: "1789",
		TimeoutSeconds:    5,
	})
	c.baseURL = srv.URL
	return c
}

func TestDailyMetrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ig-token", r.URL.Query().Get("access_token"))

		switch r.URL.Path {
		case "/1789":
			w.Write([]byte(`{"id":"1789","followers_count":15234,"media_count":412}`))
		case "/1789/insights":
			assert.Equal(t, "day", r.URL.Query().Get("period"))
			w.Write([]byte(`{"data":[
				{"name":"reach","period":"day","values":[{"value":4200}]},
				{"name":"impressions","period":"day","values":[{"value":9100}]},
				{"name":"accounts_engaged","period":"day","values":[{"value":310}]}
			]}`))
		default:
			http.NotFound(w, r)
		}
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, 15234, m.Followers)
	assert.Equal(t, 4200, m.Reach)
	assert.Equal(t, 9100, m.Impressions)
	assert.Equal(t, 310, m.AccountsEngaged)
}

func TestDailyMetricsInsightsFailureKeepsFollowerGauge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1789":
			w.Write([]byte(`{"id":"1789","followers_count":15234}`))
		default:
			http.Error(w, "rate limited", http.StatusForbidden)
		}
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, 15234, m.Followers)
	assert.Zero(t, m.Reach)
}

func TestDailyMetricsAccountFailureYieldsZeroRow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-05-01", m.Date)
	assert.Zero(t, m.Followers)
}
