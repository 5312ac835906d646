// Package instagram pulls organic social metrics from the Instagram Graph
// API: the account follower gauge plus per-day reach, impressions and
// engaged accounts.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/emberline/commerce-pulse/internal/config"
	"github.com/emberline/commerce-pulse/internal/domain"
	"github.com/emberline/commerce-pulse/internal/pkg/httpretry"
	"github.com/emberline/commerce-pulse/internal/pkg/logger"
)

const defaultBaseURL = "https://graph.facebook.com/v19.0"

// Client is an Instagram Graph API client
type Client struct {
	baseURL     string
	accessToken string
	accountID   string
	httpClient  httpretry.HTTPDoer
}

// NewClient creates a new Instagram Graph API client
func NewClient(cfg config.InstagramConfig) *Client {
	return &Client{
		baseURL:     defaultBaseURL,
		accessToken: cfg.AccessToken,
		accountID:   cfg.BusinessAccountID,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

type accountResponse struct {
	ID             string `json:"id"`
	FollowersCount int    `json:"followers_count"`
	MediaCount     int    `json:"media_count"`
}

type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Period string `json:"period"`
		Values []struct {
			Value   int    `json:"value"`
			EndTime string `json:"end_time"`
		} `json:"values"`
	} `json:"data"`
}

// doRequest makes an authenticated GET against the Graph API.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", c.accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

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

// AccountInfo fetches the current follower gauge.
func (c *Client) AccountInfo(ctx context.Context) (followers, mediaCount int, err error) {
	params := url.Values{}
	params.Set("fields", "followers_count,media_count")

	body, err := c.doRequest(ctx, "/"+c.accountID, params)
	if err != nil {
		return 0, 0, fmt.Errorf("fetching account info: %w", err)
	}
	var out accountResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, 0, fmt.Errorf("parsing account info: %w", err)
	}
	return out.FollowersCount, out.MediaCount, nil
}

// DayInsights fetches per-day reach, impressions and accounts engaged for
// one calendar date (UTC).
func (c *Client) DayInsights(ctx context.Context, date string) (reach, impressions, accountsEngaged int, err error) {
	day, err := time.Parse(domain.DateFormat, date)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parsing date %q: %w", date, err)
	}
	since := day.Unix()
	until := day.AddDate(0, 0, 1).Unix()

	params := url.Values{}
	params.Set("metric", "reach,impressions,accounts_engaged")
	params.Set("period", "day")
	params.Set("since", strconv.FormatInt(since, 10))
	params.Set("until", strconv.FormatInt(until, 10))

	body, err := c.doRequest(ctx, "/"+c.accountID+"/insights", params)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("fetching insights: %w", err)
	}
	var out insightsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, 0, 0, fmt.Errorf("parsing insights: %w", err)
	}

	for _, item := range out.Data {
		v := 0
		if len(item.Values) > 0 {
			v = item.Values[0].Value
		}
		switch item.Name {
		case "reach":
			reach = v
		case "impressions":
			impressions = v
		case "accounts_engaged":
			accountsEngaged = v
		}
	}
	return reach, impressions, accountsEngaged, nil
}

// DailyMetrics assembles the social metric row for one date. Upstream
// failures yield a zero-valued row carrying the date.
func (c *Client) DailyMetrics(ctx context.Context, date string) (domain.InstagramDailyMetrics, error) {
	zero := domain.InstagramDailyMetrics{Date: date}

	followers, _, err := c.AccountInfo(ctx)
	if err != nil {
		logger.Warn("instagram account info unavailable", "date", date, "error", err.Error())
		return zero, nil
	}
	reach, impressions, engaged, err := c.DayInsights(ctx, date)
	if err != nil {
		logger.Warn("instagram insights unavailable", "date", date, "error", err.Error())
		return domain.InstagramDailyMetrics{Date: date, Followers: followers}, nil
	}

	return domain.InstagramDailyMetrics{
		Date:            date,
		Followers:       followers,
		Reach:           reach,
		Impressions:     impressions,
		AccountsEngaged: engaged,
	}, nil
}
