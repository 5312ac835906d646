package klaviyo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberline/commerce-pulse/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.KlaviyoConfig{
		APIKey:         "pk_test",
		Revision:       "2024-10-15",
		TimeoutSeconds: 5,
	})
	c.baseURL = srv.URL
	return c
}

func TestCampaignsFollowsCursor(t *testing.T) {
	var c *Client
	pages := 0
	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Klaviyo-API-Key pk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "2024-10-15", r.Header.Get("revision"))

		pages++
		switch r.URL.Query().Get("page[cursor]") {
		case "":
			fmt.Fprintf(w, `{"data":[{"id":"c1","attributes":{"name":"Spring","status":"Sent","send_time":"2025-05-01T09:00:00Z"}}],
				"links":{"next":"%s/campaigns?page[cursor]=abc"}}`, c.baseURL)
		case "abc":
			w.Write([]byte(`{"data":[{"id":"c2","attributes":{"name":"Summer","status":"Draft"}}],"links":{}}`))
		default:
			t.Fatalf("unexpected cursor %q", r.URL.Query().Get("page[cursor]"))
		}
	})

	campaigns, err := c.Campaigns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	require.Len(t, campaigns, 2)
	assert.Equal(t, "c1", campaigns[0].ID)
}

func TestSubscriberCountStopsAtSafetyBound(t *testing.T) {
	var c *Client
	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Every page is full and advertises another page. The walk must
		// stop at the profile cap rather than loop forever.
		data := `{"id":"p"}`
		for i := 0; i < 99; i++ {
			data += `,{"id":"p"}`
		}
		fmt.Fprintf(w, `{"data":[%s],"links":{"next":"%s/profiles?page[cursor]=more"}}`, data, c.baseURL)
	})

	count, err := c.SubscriberCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, maxProfiles, count)
}

func TestSignupsInRangeGroupsByDay(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("filter"), "greater-than(created,2025-05-01T00:00:00Z)")
		w.Write([]byte(`{"data":[
			{"id":"p1","attributes":{"created":"2025-05-01T08:00:00Z"}},
			{"id":"p2","attributes":{"created":"2025-05-01T19:30:00Z"}},
			{"id":"p3","attributes":{"created":"2025-05-02T02:00:00Z"}}
		],"links":{}}`))
	})

	byDate, err := c.SignupsInRange(context.Background(), "2025-05-01", "2025-05-02")
	require.NoError(t, err)
	assert.Equal(t, 2, byDate["2025-05-01"])
	assert.Equal(t, 1, byDate["2025-05-02"])
}

func TestMetricsForDate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/campaigns":
			w.Write([]byte(`{"data":[
				{"id":"c1","attributes":{"name":"A","status":"Sent","send_time":"2025-05-01T09:00:00Z"}},
				{"id":"c2","attributes":{"name":"B","status":"Sent","send_time":"2025-04-30T09:00:00Z"}},
				{"id":"c3","attributes":{"name":"C","status":"Draft"}}
			],"links":{}}`))
		case "/flows":
			w.Write([]byte(`{"data":[
				{"id":"f1","attributes":{"name":"Welcome","status":"Live","archived":false}},
				{"id":"f2","attributes":{"name":"Old","status":"Live","archived":true}},
				{"id":"f3","attributes":{"name":"Paused","status":"Draft","archived":false}}
			]}`))
		case "/metrics":
			w.Write([]byte(`{"data":[
				{"id":"m1","attributes":{"name":"Received Email"}},
				{"id":"m2","attributes":{"name":"Opened Email"}},
				{"id":"m3","attributes":{"name":"Clicked Email"}},
				{"id":"m4","attributes":{"name":"Bounced Email"}},
				{"id":"m5","attributes":{"name":"Unsubscribed"}}
			]}`))
		case "/metric-aggregates":
			var counts string
			// Distinguish metrics by their resolved IDs in the request body
			buf, _ := io.ReadAll(r.Body)
			switch {
			case strings.Contains(string(buf), `"m1"`):
				counts = "[600,400]"
			case strings.Contains(string(buf), `"m2"`):
				counts = "[250]"
			case strings.Contains(string(buf), `"m3"`):
				counts = "[50]"
			default:
				counts = "[0]"
			}
			fmt.Fprintf(w, `{"data":{"attributes":{"data":[{"measurements":{"count":%s}}]}}}`, counts)
		default:
			http.NotFound(w, r)
		}
	})

	m, err := c.MetricsForDate(context.Background(), "2025-05-01")
	require.NoError(t, err)

	assert.Equal(t, 1, m.CampaignsSent)
	assert.Equal(t, 1, m.ActiveFlows)
	assert.Equal(t, 1000, m.EmailsSent)
	assert.Equal(t, 250, m.EmailsOpened)
	assert.Equal(t, 50, m.EmailsClicked)
	assert.InDelta(t, 25.0, m.OpenRate, 1e-9)
	assert.InDelta(t, 5.0, m.ClickRate, 1e-9)
	assert.Zero(t, m.SubscriberCount) // gauge filled by the orchestrator
}

func TestMetricsForDateZeroSendGuard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/campaigns", "/flows":
			w.Write([]byte(`{"data":[]}`))
		case "/metrics":
			w.Write([]byte(`{"data":[]}`))
		default:
			http.NotFound(w, r)
		}
	})

	m, err := c.MetricsForDate(context.Background(), "2025-05-01")
	require.NoError(t, err)
	assert.Zero(t, m.OpenRate)
	assert.Zero(t, m.ClickRate)
}
