// Package shopify pulls storefront metrics from the Shopify Admin API:
// orders and products over REST, session traffic over ShopifyQL.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emberline/commerce-pulse/internal/config"
	"github.com/emberline/commerce-pulse/internal/domain"
	"github.com/emberline/commerce-pulse/internal/ga4"
	"github.com/emberline/commerce-pulse/internal/pkg/httpretry"
	"github.com/emberline/commerce-pulse/internal/pkg/logger"
	"github.com/emberline/commerce-pulse/internal/pkg/tokencache"
)

// assumedConversionRate backs the traffic estimate when session analytics
// are unavailable for a day.
const assumedConversionRate = 0.02

// TokenStore looks up a persisted OAuth token for the store. A stored token
// carries full analytics scope and is preferred over static credentials.
type TokenStore interface {
	TokenFor(ctx context.Context, platform, shop string) (*domain.OAuthToken, error)
}

// TrafficFallback supplies session counts from an external analytics
// property for days where ShopifyQL is not accessible.
type TrafficFallback interface {
	TrafficForDate(ctx context.Context, date string) (ga4.DailyTraffic, error)
}

// Client is a Shopify Admin API client
type Client struct {
	cfg        config.ShopifyConfig
	baseURL    string
	httpClient httpretry.HTTPDoer
	tokens     TokenStore
	grant      *tokencache.Cache
	fallback   TrafficFallback
}

// NewClient creates a new Shopify Admin API client. tokens may be nil when
// no OAuth token persistence is available.
func NewClient(cfg config.ShopifyConfig, tokens TokenStore) *Client {
	c := &Client{
		cfg:     cfg,
		baseURL: "https://" + cfg.StoreDomain,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
		tokens: tokens,
	}
	c.grant = tokencache.New(c.clientCredentialsGrant)
	return c
}

// SetTrafficFallback installs a secondary analytics source consulted when
// ShopifyQL yields no sessions for a day.
func (c *Client) SetTrafficFallback(f TrafficFallback) { c.fallback = f }

// accessToken resolves the API credential in precedence order: persisted
// OAuth token, then static config token, then the client-credentials grant.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.tokens != nil {
		tok, err := c.tokens.TokenFor(ctx, "shopify", c.cfg.StoreDomain)
		if err == nil && tok != nil && tok.AccessToken != "" {
			return tok.AccessToken, nil
		}
	}

	if c.cfg.AccessToken != "" {
		return c.cfg.AccessToken, nil
	}

	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", fmt.Errorf("shopify: no access token and no client credentials configured")
	}
	return c.grant.Get(ctx)
}

// clientCredentialsGrant exchanges the app's client credentials for a
// short-lived Admin API token.
func (c *Client) clientCredentialsGrant(ctx context.Context) (tokencache.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/admin/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return tokencache.Token{}, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tokencache.Token{}, fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tokencache.Token{}, fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return tokencache.Token{}, fmt.Errorf("token grant failed (status %d): %s", resp.StatusCode, string(body))
	}

	var tr accessTokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return tokencache.Token{}, fmt.Errorf("parsing token response: %w", err)
	}
	return tokencache.Token{
		Value:     tr.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// doRequest makes an authenticated request against the versioned Admin API.
func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	fullURL := fmt.Sprintf("%s/admin/api/%s/%s", c.baseURL, c.cfg.APIVersion, path)
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// OrdersForDate fetches every order created on the given calendar date (UTC).
func (c *Client) OrdersForDate(ctx context.Context, date string) ([]Order, error) {
	path := fmt.Sprintf("orders.json?status=any&created_at_min=%sT00:00:00-00:00&created_at_max=%sT23:59:59-00:00&limit=250",
		date, date)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching orders for %s: %w", date, err)
	}
	var out ordersResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing orders: %w", err)
	}
	return out.Orders, nil
}

// Products fetches the product catalog with variant inventory.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "products.json?limit=250", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching products: %w", err)
	}
	var out productsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing products: %w", err)
	}
	return out.Products, nil
}

// TrafficForDate fetches session analytics for a date via ShopifyQL. The
// analytics scope is only granted to OAuth tokens, so failures here are
// expected with static credentials and collapse to zero counts.
func (c *Client) TrafficForDate(ctx context.Context, date string) (Traffic, error) {
	ql := fmt.Sprintf("FROM sessions SHOW total_sessions, total_visitors WHERE session_date = '%s' SINCE %s UNTIL %s",
		date, date, date)
	query := fmt.Sprintf(`query { shopifyqlQuery(query: %q) { tableData { rowData columns { name dataType } } parseErrors { message } } }`, ql)

	body, err := c.doRequest(ctx, http.MethodPost, "graphql.json", graphqlRequest{Query: query})
	if err != nil {
		return Traffic{}, fmt.Errorf("querying session analytics: %w", err)
	}

	var out graphqlResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Traffic{}, fmt.Errorf("parsing analytics response: %w", err)
	}
	if len(out.Errors) > 0 {
		return Traffic{}, fmt.Errorf("analytics query error: %s", out.Errors[0].Message)
	}
	if out.Data == nil || out.Data.ShopifyqlQuery == nil {
		return Traffic{}, nil
	}
	if pe := out.Data.ShopifyqlQuery.ParseErrors; len(pe) > 0 {
		return Traffic{}, fmt.Errorf("analytics query parse error: %s", pe[0].Message)
	}

	td := out.Data.ShopifyqlQuery.TableData
	if td == nil || len(td.RowData) == 0 {
		return Traffic{}, nil
	}

	var t Traffic
	row := td.RowData[0]
	for i, col := range td.Columns {
		if i >= len(row) {
			break
		}
		switch col.Name {
		case "total_sessions":
			t.Sessions = toInt(row[i])
		case "total_visitors":
			t.Visitors = toInt(row[i])
		}
	}
	return t, nil
}

// DailyMetrics assembles the storefront metric row and top-product snapshot
// for one date. Credential problems are hard errors; upstream data failures
// are logged and yield a zero-valued row carrying the date, so a bad day
// upstream never aborts a whole sync pass.
func (c *Client) DailyMetrics(ctx context.Context, date string) (domain.ShopifyDailyMetrics, []domain.TopProduct, error) {
	if _, err := c.accessToken(ctx); err != nil {
		return domain.ShopifyDailyMetrics{}, nil, err
	}

	orders, err := c.OrdersForDate(ctx, date)
	if err != nil {
		logger.Warn("shopify orders unavailable", "date", date, "error", err.Error())
		return domain.ShopifyDailyMetrics{Date: date}, nil, nil
	}

	products, err := c.Products(ctx)
	if err != nil {
		logger.Warn("shopify products unavailable", "date", date, "error", err.Error())
		products = nil
	}

	traffic, err := c.TrafficForDate(ctx, date)
	if err != nil {
		logger.Debug("shopify session analytics unavailable", "date", date, "error", err.Error())
		traffic = Traffic{}
	}
	if traffic.Sessions == 0 && c.fallback != nil {
		if ft, err := c.fallback.TrafficForDate(ctx, date); err == nil && ft.Sessions > 0 {
			traffic = Traffic{Sessions: ft.Sessions, Visitors: ft.Visitors}
		}
	}

	revenue := 0.0
	newCustomerOrders := 0
	for _, o := range orders {
		if v, err := strconv.ParseFloat(o.TotalPrice, 64); err == nil {
			revenue += v
		}
		if isNewCustomerOrder(o) {
			newCustomerOrders++
		}
	}

	sessions := traffic.Sessions
	if sessions == 0 && len(orders) > 0 {
		// No analytics access: estimate sessions from orders at the
		// assumed store conversion rate.
		sessions = int(float64(len(orders))/assumedConversionRate + 0.5)
	}
	conversionRate := 0.0
	if sessions > 0 {
		conversionRate = float64(len(orders)) / float64(sessions) * 100
	}

	m := domain.ShopifyDailyMetrics{
		Date:              date,
		Traffic:           sessions,
		ConversionRate:    conversionRate,
		Orders:            len(orders),
		NewCustomerOrders: newCustomerOrders,
		Revenue:           revenue,
	}
	return m, topProducts(orders, products), nil
}

// isNewCustomerOrder reports whether the order looks like a first purchase:
// either the customer's lifetime order count is 1, or the customer record
// was created the same day as the order.
func isNewCustomerOrder(o Order) bool {
	if o.Customer == nil {
		return false
	}
	if o.Customer.OrdersCount == 1 {
		return true
	}
	if o.Customer.CreatedAt != "" && o.CreatedAt != "" {
		return dayOf(o.CreatedAt) == dayOf(o.Customer.CreatedAt)
	}
	return false
}

// topProducts ranks line-item quantities across the day's orders and
// attaches current inventory, keeping the top 10.
func topProducts(orders []Order, products []Product) []domain.TopProduct {
	type sale struct {
		title    string
		quantity int
	}
	sales := make(map[int64]*sale)
	for _, o := range orders {
		for _, li := range o.LineItems {
			if li.ProductID == 0 {
				continue
			}
			s, ok := sales[li.ProductID]
			if !ok {
				s = &sale{title: li.Title}
				sales[li.ProductID] = s
			}
			s.quantity += li.Quantity
		}
	}
	if len(sales) == 0 {
		return nil
	}

	inventory := make(map[int64]int, len(products))
	for _, p := range products {
		total := 0
		for _, v := range p.Variants {
			total += v.InventoryQuantity
		}
		inventory[p.ID] = total
	}

	out := make([]domain.TopProduct, 0, len(sales))
	for id, s := range sales {
		out = append(out, domain.TopProduct{
			ProductID:          strconv.FormatInt(id, 10),
			ProductTitle:       s.title,
			QuantitySold:       s.quantity,
			InventoryRemaining: inventory[id],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuantitySold != out[j].QuantitySold {
			return out[i].QuantitySold > out[j].QuantitySold
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func dayOf(timestamp string) string {
	if i := strings.IndexByte(timestamp, 'T'); i > 0 {
		return timestamp[:i]
	}
	return timestamp
}

// toInt coerces a ShopifyQL cell, which may arrive as a JSON number or
// numeric string, into an int.
func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return int(f)
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return 0
}
