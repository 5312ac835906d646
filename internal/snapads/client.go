// Package snapads pulls daily spend and purchase value from the Snapchat
// Marketing API account stats endpoint. Spend arrives in micros.
package snapads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/emberline/commerce-pulse/internal/config"
	"github.com/emberline/commerce-pulse/internal/domain"
	"github.com/emberline/commerce-pulse/internal/pkg/httpretry"
	"github.com/emberline/commerce-pulse/internal/pkg/logger"
)

const defaultBaseURL = "https://adsapi.snapchat.com/v1"

// Client is a Snapchat Marketing API client
type Client struct {
	baseURL     string
	accessToken string
	adAccountID string
	httpClient  httpretry.HTTPDoer
}

// NewClient creates a new Snapchat Marketing API client
func NewClient(cfg config.SnapchatConfig) *Client {
	return &Client{
		baseURL:     defaultBaseURL,
		accessToken: cfg.AccessToken,
		adAccountID: cfg.AdAccountID,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

type statsResponse struct {
	TotalStats []struct {
		TotalStat struct {
			Spend               float64 `json:"spend"`
			TotalPurchasesValue float64 `json:"total_purchases_value"`
		} `json:"total_stat"`
	} `json:"total_stats"`
}

// doRequest makes an authenticated GET against the Marketing API.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
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
	return body, nil
}

// DailyMetrics fetches one day of account stats. Spend is reported in
// millionths of the account currency; ROAS is purchase value over spend
// with a zero-spend guard. Upstream failures yield a zero-valued row.
func (c *Client) DailyMetrics(ctx context.Context, date string) (domain.AdDailyMetrics, error) {
	zero := domain.AdDailyMetrics{Date: date, Platform: domain.PlatformSnapchat}

	params := url.Values{}
	params.Set("granularity", "DAY")
	params.Set("start_time", date+"T00:00:00.000-00:00")
	params.Set("end_time", date+"T23:59:59.999-00:00")
	params.Set("fields", "spend,total_purchases_value")

	body, err := c.doRequest(ctx, "/adaccounts/"+c.adAccountID+"/stats", params)
	if err != nil {
		logger.Warn("snapchat stats unavailable", "date", date, "error", err.Error())
		return zero, nil
	}

	var out statsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, fmt.Errorf("parsing stats: %w", err)
	}
	if len(out.TotalStats) == 0 {
		return zero, nil
	}

	stat := out.TotalStats[0].TotalStat
	spend := stat.Spend / 1e6
	roas := 0.0
	if spend > 0 {
		roas = stat.TotalPurchasesValue / spend
	}

	return domain.AdDailyMetrics{
		Date:     date,
		Platform: domain.PlatformSnapchat,
		Spend:    spend,
		ROAS:     roas,
	}, nil
}
