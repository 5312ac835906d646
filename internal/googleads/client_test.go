package googleads

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/emberline/commerce-pulse/internal/config"
	"github.com/emberline/commerce-pulse/internal/domain"
)

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("invalid_grant")
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.GoogleAdsConfig{
		ClientID:       "id",
		ClientSecret:   "secret",
		RefreshToken:   "refresh",
		CustomerID:     "123-456-7890",
		DeveloperToken: "dev-token",
		TimeoutSeconds: 5,
	})
	c.baseURL = srv.URL
	c.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access"})
	return c
}

func TestDailyMetrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers/1234567890/googleAds:searchStream", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		assert.Equal(t, "dev-token", r.Header.Get("developer-token"))

		w.Write([]byte(`[
			{"results":[{"segments":{"date":"2025-05-01"},"metrics":{"costMicros":"12500000","conversionsValue":50.0}}]},
			{"results":[{"segments":{"date":"2025-05-01"},"metrics":{"costMicros":"7500000","conversionsValue":30.0}}]}
		]`))
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformGoogle, m.Platform)
	assert.InDelta(t, 20.0, m.Spend, 1e-9) // micros summed then scaled
	assert.InDelta(t, 4.0, m.ROAS, 1e-9)   // 80 conversion value / 20 spend
}

func TestDailyMetricsNoRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Zero(t, m.Spend)
	assert.Zero(t, m.ROAS)
}

func TestDailyMetricsQueryFailureYieldsZeroRow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "PERMISSION_DENIED", http.StatusForbidden)
	})

	m, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-05-01", m.Date)
	assert.Zero(t, m.Spend)
}

func TestDailyMetricsTokenRefreshFailureIsHardError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected when the token refresh fails")
	})
	c.tokens = failingTokenSource{}

	_, err := c.DailyMetrics(context.Background(), "2025-05-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refreshing access token")
}
