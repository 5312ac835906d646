// Package klaviyo pulls email marketing metrics from the Klaviyo API:
// campaigns, flows, event aggregates and profile signups. List endpoints
// use cursor pagination with defensive upper bounds so a runaway account
// can never wedge a sync pass.
package klaviyo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/emberline/commerce-pulse/internal/config"
	"github.com/emberline/commerce-pulse/internal/domain"
	"github.com/emberline/commerce-pulse/internal/pkg/httpretry"
	"github.com/emberline/commerce-pulse/internal/pkg/logger"
)

const defaultBaseURL = "https://a.klaviyo.com/api"

// Pagination safety bounds.
const (
	maxCampaigns = 100
	maxFlows     = 100
	maxProfiles  = 100000
	maxSignups   = 10000
)

// eventMetrics are the named Klaviyo metrics aggregated per day.
var eventMetrics = []string{"Received Email", "Opened Email", "Clicked Email", "Bounced Email", "Unsubscribed"}

// Client is a Klaviyo API client
type Client struct {
	baseURL    string
	apiKey     string
	revision   string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new Klaviyo API client
func NewClient(cfg config.KlaviyoConfig) *Client {
	return &Client{
		baseURL:  defaultBaseURL,
		apiKey:   cfg.APIKey,
		revision: cfg.Revision,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// doRequest makes an authenticated request against the Klaviyo API.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, payload any) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Klaviyo-API-Key "+c.apiKey)
	req.Header.Set("revision", c.revision)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// nextCursor pulls the page[cursor] parameter out of a links.next URL.
func nextCursor(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return u.Query().Get("page[cursor]")
}

// Campaigns fetches email campaigns, newest send first.
func (c *Client) Campaigns(ctx context.Context) ([]Campaign, error) {
	var campaigns []Campaign
	cursor := ""
	for {
		params := url.Values{}
		params.Set("filter", `equals(messages.channel,"email")`)
		params.Set("sort", "-send_time")
		if cursor != "" {
			params.Set("page[cursor]", cursor)
		}

		body, err := c.doRequest(ctx, http.MethodGet, "/campaigns", params, nil)
		if err != nil {
			return nil, fmt.Errorf("fetching campaigns: %w", err)
		}
		var page campaignsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parsing campaigns: %w", err)
		}
		campaigns = append(campaigns, page.Data...)

		cursor = nextCursor(page.Links.Next)
		if cursor == "" || len(campaigns) >= maxCampaigns {
			return campaigns, nil
		}
	}
}

// Flows fetches automation flows.
func (c *Client) Flows(ctx context.Context) ([]Flow, error) {
	var flows []Flow
	cursor := ""
	for {
		params := url.Values{}
		if cursor != "" {
			params.Set("page[cursor]", cursor)
		}

		body, err := c.doRequest(ctx, http.MethodGet, "/flows", params, nil)
		if err != nil {
			return nil, fmt.Errorf("fetching flows: %w", err)
		}
		var page flowsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parsing flows: %w", err)
		}
		flows = append(flows, page.Data...)

		cursor = nextCursor(page.Links.Next)
		if cursor == "" || len(flows) >= maxFlows {
			return flows, nil
		}
	}
}

// SubscriberCount walks the full profile list and counts it. Slow on large
// accounts; sync passes prefer carrying the last stored gauge forward and
// leave this to explicit backfills.
func (c *Client) SubscriberCount(ctx context.Context) (int, error) {
	total := 0
	cursor := ""
	for {
		params := url.Values{}
		params.Set("page[size]", "100")
		if cursor != "" {
			params.Set("page[cursor]", cursor)
		}

		body, err := c.doRequest(ctx, http.MethodGet, "/profiles", params, nil)
		if err != nil {
			return 0, fmt.Errorf("fetching profiles: %w", err)
		}
		var page profilesResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, fmt.Errorf("parsing profiles: %w", err)
		}
		total += len(page.Data)

		cursor = nextCursor(page.Links.Next)
		if cursor == "" || total >= maxProfiles {
			return total, nil
		}
	}
}

// metricIDByName resolves a named metric to its account-specific ID.
func (c *Client) metricIDByName(ctx context.Context, name string) (string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/metrics", nil, nil)
	if err != nil {
		return "", fmt.Errorf("fetching metrics catalog: %w", err)
	}
	var out metricsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parsing metrics catalog: %w", err)
	}
	for _, m := range out.Data {
		if m.Attributes.Name == name {
			return m.ID, nil
		}
	}
	return "", fmt.Errorf("metric not found: %s", name)
}

// aggregateCount sums the daily counts of one named metric over a range.
func (c *Client) aggregateCount(ctx context.Context, metricName, startDate, endDate string) (int, error) {
	metricID, err := c.metricIDByName(ctx, metricName)
	if err != nil {
		return 0, err
	}

	payload := map[string]any{
		"data": map[string]any{
			"type": "metric-aggregate",
			"attributes": map[string]any{
				"metric_id":    metricID,
				"measurements": []string{"count"},
				"interval":     "day",
				"filter": []string{
					fmt.Sprintf("greater-or-equal(datetime,%sT00:00:00)", startDate),
					fmt.Sprintf("less-than(datetime,%sT23:59:59)", endDate),
				},
				"timezone": "America/New_York",
			},
		},
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/metric-aggregates", nil, payload)
	if err != nil {
		return 0, fmt.Errorf("aggregating %s: %w", metricName, err)
	}
	var out aggregateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("parsing aggregate: %w", err)
	}

	total := 0.0
	if len(out.Data.Attributes.Data) > 0 {
		for _, v := range out.Data.Attributes.Data[0].Measurements["count"] {
			total += v
		}
	}
	return int(total), nil
}

// EventMetrics aggregates email event counts over a date range. A failure
// on one metric zeroes that count and moves on.
func (c *Client) EventMetrics(ctx context.Context, startDate, endDate string) CampaignMetrics {
	counts := make(map[string]int, len(eventMetrics))
	for _, name := range eventMetrics {
		n, err := c.aggregateCount(ctx, name, startDate, endDate)
		if err != nil {
			logger.Warn("klaviyo aggregate unavailable", "metric", name, "error", err.Error())
			n = 0
		}
		counts[name] = n
	}
	return CampaignMetrics{
		Sent:         counts["Received Email"],
		Opened:       counts["Opened Email"],
		Clicked:      counts["Clicked Email"],
		Bounced:      counts["Bounced Email"],
		Unsubscribed: counts["Unsubscribed"],
	}
}

// DailyUniqueSignups counts profiles created on a single date.
func (c *Client) DailyUniqueSignups(ctx context.Context, date string) (int, error) {
	byDate, err := c.SignupsInRange(ctx, date, date)
	if err != nil {
		return 0, err
	}
	return byDate[date], nil
}

// SignupsInRange walks profiles created inside [startDate, endDate] and
// groups them by creation day.
func (c *Client) SignupsInRange(ctx context.Context, startDate, endDate string) (map[string]int, error) {
	byDate := make(map[string]int)
	total := 0
	cursor := ""
	for {
		params := url.Values{}
		params.Set("filter", fmt.Sprintf("greater-than(created,%sT00:00:00Z),less-than(created,%sT23:59:59Z)", startDate, endDate))
		params.Set("page[size]", "100")
		params.Set("fields[profile]", "created")
		if cursor != "" {
			params.Set("page[cursor]", cursor)
		}

		body, err := c.doRequest(ctx, http.MethodGet, "/profiles", params, nil)
		if err != nil {
			return nil, fmt.Errorf("fetching signups: %w", err)
		}
		var page profilesResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parsing signups: %w", err)
		}
		for _, p := range page.Data {
			day := p.Attributes.Created
			if i := strings.IndexByte(day, 'T'); i > 0 {
				day = day[:i]
			}
			byDate[day]++
			total++
		}

		cursor = nextCursor(page.Links.Next)
		if cursor == "" || total >= maxSignups {
			return byDate, nil
		}
	}
}

// MetricsForDate assembles one day of email metrics: campaigns sent that
// day, live flows, event aggregates and recomputed open/click rates.
// SubscriberCount is left zero; the orchestrator fills the gauge from the
// last stored value or a profile walk. Upstream failures on any component
// zero that component and keep going.
func (c *Client) MetricsForDate(ctx context.Context, date string) (domain.KlaviyoDailyMetrics, error) {
	campaigns, err := c.Campaigns(ctx)
	if err != nil {
		logger.Warn("klaviyo campaigns unavailable", "date", date, "error", err.Error())
		campaigns = nil
	}
	flows, err := c.Flows(ctx)
	if err != nil {
		logger.Warn("klaviyo flows unavailable", "date", date, "error", err.Error())
		flows = nil
	}
	events := c.EventMetrics(ctx, date, date)

	sentCampaigns := 0
	for _, cp := range campaigns {
		if cp.Attributes.Status != "Sent" || cp.Attributes.SendTime == "" {
			continue
		}
		if strings.HasPrefix(cp.Attributes.SendTime, date) {
			sentCampaigns++
		}
	}

	activeFlows := 0
	for _, f := range flows {
		if f.Attributes.Status == "Live" && !f.Attributes.Archived {
			activeFlows++
		}
	}

	openRate, clickRate := 0.0, 0.0
	if events.Sent > 0 {
		openRate = float64(events.Opened) / float64(events.Sent) * 100
		clickRate = float64(events.Clicked) / float64(events.Sent) * 100
	}

	return domain.KlaviyoDailyMetrics{
		Date:          date,
		CampaignsSent: sentCampaigns,
		EmailsSent:    events.Sent,
		EmailsOpened:  events.Opened,
		EmailsClicked: events.Clicked,
		OpenRate:      openRate,
		ClickRate:     clickRate,
		ActiveFlows:   activeFlows,
	}, nil
}
