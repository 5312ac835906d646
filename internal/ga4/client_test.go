package ga4

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/emberline/commerce-pulse/internal/config"
	"github.com/emberline/commerce-pulse/internal/pkg/httpretry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &Client{
		baseURL:    srv.URL,
		propertyID: "987",
		httpClient: httpretry.NewRetryClient(nil, 1),
		tokens:     oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ga-access"}),
	}
}

func TestNewClientRejectsMalformedCredentials(t *testing.T) {
	_, err := NewClient(config.GA4Config{
		PropertyID:      "987",
		CredentialsJSON: "not json",
	})
	require.Error(t, err)
}

func TestTrafficForDate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/properties/987:runReport", r.URL.Path)
		assert.Equal(t, "Bearer ga-access", r.Header.Get("Authorization"))
		w.Write([]byte(`{"rows":[{"metricValues":[{"value":"812"},{"value":"640"}]}]}`))
	})

	traffic, err := c.TrafficForDate(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, 812, traffic.Sessions)
	assert.Equal(t, 640, traffic.Visitors)
}

func TestTrafficForDateFailureYieldsZero(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "PERMISSION_DENIED", http.StatusForbidden)
	})

	traffic, err := c.TrafficForDate(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, DailyTraffic{Date: "2025-05-01"}, traffic)
}

func TestTrafficForRangeConvertsDates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rows":[
			{"dimensionValues":[{"value":"20250502"}],"metricValues":[{"value":"900"},{"value":"700"}]},
			{"dimensionValues":[{"value":"20250501"}],"metricValues":[{"value":"812"},{"value":"640"}]}
		]}`))
	})

	rows, err := c.TrafficForRange(context.Background(), "2025-05-01", "2025-05-02")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-05-02", rows[0].Date)
	assert.Equal(t, 900, rows[0].Sessions)
	assert.Equal(t, "2025-05-01", rows[1].Date)
}
