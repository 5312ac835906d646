// Package googleads pulls daily cost and conversion value from the Google
// Ads API via GAQL searchStream, refreshing access tokens with an oauth2
// token source.
package googleads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/emberline/commerce-pulse/internal/config"
	"github.com/emberline/commerce-pulse/internal/domain"
	"github.com/emberline/commerce-pulse/internal/pkg/httpretry"
	"github.com/emberline/commerce-pulse/internal/pkg/logger"
)

const defaultBaseURL = "https://googleads.googleapis.com/v16"

// Client is a Google Ads API client
type Client struct {
	baseURL        string
	customerID     string
	developerToken string
	httpClient     httpretry.HTTPDoer
	tokens         oauth2.TokenSource
}

// NewClient creates a new Google Ads API client. The refresh token is
// exchanged for short-lived access tokens lazily; oauth2.ReuseTokenSource
// caches them until expiry.
func NewClient(cfg config.GoogleAdsConfig) *Client {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
	}
	ts := oc.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})

	return &Client{
		baseURL:        defaultBaseURL,
		customerID:     strings.ReplaceAll(cfg.CustomerID, "-", ""),
		developerToken: cfg.DeveloperToken,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
		tokens: ts,
	}
}

type searchStreamBatch struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Segments struct {
		Date string `json:"date"`
	} `json:"segments"`
	Metrics struct {
		CostMicros       string  `json:"costMicros"`
		ConversionsValue float64 `json:"conversionsValue"`
	} `json:"metrics"`
}

// query runs a GAQL query through searchStream and flattens the result
// batches. Token refresh failures are hard errors.
func (c *Client) query(ctx context.Context, gaql string) ([]searchResult, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}

	payload, err := json.Marshal(map[string]string{"query": gaql})
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/customers/%s/googleAds:searchStream", c.baseURL, c.customerID),
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("developer-token", c.developerToken)
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

	var batches []searchStreamBatch
	if err := json.Unmarshal(body, &batches); err != nil {
		return nil, fmt.Errorf("parsing searchStream response: %w", err)
	}

	var results []searchResult
	for _, b := range batches {
		results = append(results, b.Results...)
	}
	return results, nil
}

// DailyMetrics fetches one day of spend and conversion value. Cost arrives
// in micros; ROAS is conversion value over spend with a zero-spend guard.
// Query failures yield a zero-valued row, token refresh failures do not.
func (c *Client) DailyMetrics(ctx context.Context, date string) (domain.AdDailyMetrics, error) {
	zero := domain.AdDailyMetrics{Date: date, Platform: domain.PlatformGoogle}

	if _, err := c.tokens.Token(); err != nil {
		return zero, fmt.Errorf("google ads: refreshing access token: %w", err)
	}

	gaql := fmt.Sprintf(
		"SELECT segments.date, metrics.cost_micros, metrics.conversions_value FROM customer WHERE segments.date = '%s'",
		date)

	results, err := c.query(ctx, gaql)
	if err != nil {
		logger.Warn("google ads report unavailable", "date", date, "error", err.Error())
		return zero, nil
	}
	if len(results) == 0 {
		return zero, nil
	}

	var spend, conversionValue float64
	for _, r := range results {
		micros, _ := strconv.ParseInt(r.Metrics.CostMicros, 10, 64)
		spend += float64(micros) / 1e6
		conversionValue += r.Metrics.ConversionsValue
	}

	roas := 0.0
	if spend > 0 {
		roas = conversionValue / spend
	}

	return domain.AdDailyMetrics{
		Date:     date,
		Platform: domain.PlatformGoogle,
		Spend:    spend,
		ROAS:     roas,
	}, nil
}
