// Package ga4 pulls daily session and visitor counts from the Google
// Analytics Data API, authenticated with a service-account JWT. Used as the
// traffic source when storefront session analytics are unavailable.
package ga4

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/emberline/commerce-pulse/internal/config"
	"github.com/emberline/commerce-pulse/internal/pkg/httpretry"
	"github.com/emberline/commerce-pulse/internal/pkg/logger"
)

const (
	defaultBaseURL = "https://analyticsdata.googleapis.com/v1beta"
	readScope      = "https://www.googleapis.com/auth/analytics.readonly"
)

// DailyTraffic is one day of site traffic.
type DailyTraffic struct {
	Date     string
	Sessions int
	Visitors int
}

// Client is a GA4 Data API client
type Client struct {
	baseURL    string
	propertyID string
	httpClient httpretry.HTTPDoer
	tokens     oauth2.TokenSource
}

// NewClient creates a new GA4 Data API client from service-account
// credentials JSON. A malformed key document is a hard error.
func NewClient(cfg config.GA4Config) (*Client, error) {
	jwtCfg, err := google.JWTConfigFromJSON([]byte(cfg.CredentialsJSON), readScope)
	if err != nil {
		return nil, fmt.Errorf("ga4: parsing service account credentials: %w", err)
	}

	return &Client{
		baseURL:    defaultBaseURL,
		propertyID: cfg.PropertyID,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
		tokens: jwtCfg.TokenSource(context.Background()),
	}, nil
}

type runReportRequest struct {
	DateRanges []dateRange `json:"dateRanges"`
	Dimensions []named     `json:"dimensions,omitempty"`
	Metrics    []named     `json:"metrics"`
	OrderBys   []orderBy   `json:"orderBys,omitempty"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type named struct {
	Name string `json:"name"`
}

type orderBy struct {
	Dimension struct {
		DimensionName string `json:"dimensionName"`
	} `json:"dimension"`
	Desc bool `json:"desc"`
}

type runReportResponse struct {
	Rows []struct {
		DimensionValues []struct {
			Value string `json:"value"`
		} `json:"dimensionValues"`
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
}

// runReport executes one Data API report request.
func (c *Client) runReport(ctx context.Context, reqBody runReportRequest) (*runReportResponse, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding report request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/properties/%s:runReport", c.baseURL, c.propertyID),
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var out runReportResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &out, nil
}

// TrafficForDate fetches sessions and total users for a single date.
// Report failures collapse to zero counts.
func (c *Client) TrafficForDate(ctx context.Context, date string) (DailyTraffic, error) {
	out, err := c.runReport(ctx, runReportRequest{
		DateRanges: []dateRange{{StartDate: date, EndDate: date}},
		Metrics:    []named{{Name: "sessions"}, {Name: "totalUsers"}},
	})
	if err != nil {
		logger.Warn("ga4 report unavailable", "date", date, "error", err.Error())
		return DailyTraffic{Date: date}, nil
	}
	if len(out.Rows) == 0 {
		return DailyTraffic{Date: date}, nil
	}

	row := out.Rows[0]
	t := DailyTraffic{Date: date}
	if len(row.MetricValues) > 0 {
		t.Sessions, _ = strconv.Atoi(row.MetricValues[0].Value)
	}
	if len(row.MetricValues) > 1 {
		t.Visitors, _ = strconv.Atoi(row.MetricValues[1].Value)
	}
	return t, nil
}

// TrafficForRange fetches per-day traffic for an inclusive range, newest
// first. Report failures collapse to an empty result.
func (c *Client) TrafficForRange(ctx context.Context, startDate, endDate string) ([]DailyTraffic, error) {
	req := runReportRequest{
		DateRanges: []dateRange{{StartDate: startDate, EndDate: endDate}},
		Dimensions: []named{{Name: "date"}},
		Metrics:    []named{{Name: "sessions"}, {Name: "totalUsers"}},
	}
	ob := orderBy{Desc: true}
	ob.Dimension.DimensionName = "date"
	req.OrderBys = []orderBy{ob}

	out, err := c.runReport(ctx, req)
	if err != nil {
		logger.Warn("ga4 range report unavailable", "start", startDate, "end", endDate, "error", err.Error())
		return nil, nil
	}

	results := make([]DailyTraffic, 0, len(out.Rows))
	for _, row := range out.Rows {
		if len(row.DimensionValues) == 0 {
			continue
		}
		// GA4 reports dates as YYYYMMDD
		raw := row.DimensionValues[0].Value
		if len(raw) != 8 {
			continue
		}
		t := DailyTraffic{Date: raw[:4] + "-" + raw[4:6] + "-" + raw[6:8]}
		if len(row.MetricValues) > 0 {
			t.Sessions, _ = strconv.Atoi(row.MetricValues[0].Value)
		}
		if len(row.MetricValues) > 1 {
			t.Visitors, _ = strconv.Atoi(row.MetricValues[1].Value)
		}
		results = append(results, t)
	}
	return results, nil
}
