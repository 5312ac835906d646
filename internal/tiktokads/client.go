// Package tiktokads pulls daily advertiser spend and payment ROAS from the
// TikTok Business API integrated report.
package tiktokads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/emberline/commerce-pulse/internal/config"
	"github.com/emberline/commerce-pulse/internal/domain"
	"github.com/emberline/commerce-pulse/internal/pkg/httpretry"
	"github.com/emberline/commerce-pulse/internal/pkg/logger"
)

const defaultBaseURL = "https://business-api.tiktok.com/open_api/v1.3"

// Client is a TikTok Business API client
type Client struct {
	baseURL      string
	accessToken  string
	advertiserID string
	httpClient   httpretry.HTTPDoer
}

// NewClient creates a new TikTok Business API client
func NewClient(cfg config.TikTokConfig) *Client {
	return &Client{
		baseURL:      defaultBaseURL,
		accessToken:  cfg.AccessToken,
		advertiserID: cfg.AdvertiserID,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

type reportResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		List []struct {
			Dimensions struct {
				StatTimeDay string `json:"stat_time_day"`
			} `json:"dimensions"`
			Metrics struct {
				Spend               string `json:"spend"`
				CompletePaymentROAS string `json:"complete_payment_roas"`
			} `json:"metrics"`
		} `json:"list"`
	} `json:"data"`
}

// doRequest posts a JSON body to the Business API. TikTok wraps every
// response in an envelope whose code field must be 0 on success.
func (c *Client) doRequest(ctx context.Context, path string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// DailyMetrics fetches one day of advertiser-level report data. Upstream
// failures, including non-zero envelope codes, yield a zero-valued row.
func (c *Client) DailyMetrics(ctx context.Context, date string) (domain.AdDailyMetrics, error) {
	zero := domain.AdDailyMetrics{Date: date, Platform: domain.PlatformTikTok}

	payload := map[string]any{
		"advertiser_id": c.advertiserID,
		"report_type":   "BASIC",
		"dimensions":    []string{"stat_time_day"},
		"data_level":    "AUCTION_ADVERTISER",
		"metrics":       []string{"spend", "complete_payment_roas"},
		"start_date":    date,
		"end_date":      date,
		"page_size":     1,
	}

	var out reportResponse
	if err := c.doRequest(ctx, "/report/integrated/get/", payload, &out); err != nil {
		logger.Warn("tiktok report unavailable", "date", date, "error", err.Error())
		return zero, nil
	}
	if out.Code != 0 {
		logger.Warn("tiktok report rejected", "date", date, "code", strconv.Itoa(out.Code), "message", out.Message)
		return zero, nil
	}
	if len(out.Data.List) == 0 {
		return zero, nil
	}

	metrics := out.Data.List[0].Metrics
	spend, _ := strconv.ParseFloat(metrics.Spend, 64)
	roas, _ := strconv.ParseFloat(metrics.CompletePaymentROAS, 64)

	return domain.AdDailyMetrics{
		Date:     date,
		Platform: domain.PlatformTikTok,
		Spend:    spend,
		ROAS:     roas,
	}, nil
}
