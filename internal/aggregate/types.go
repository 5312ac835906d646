package aggregate

import "github.com/emberline/commerce-pulse/internal/domain"

// MetricsDocument is the dashboard payload for one date range: per-domain
// totals plus the raw daily rows they were reconciled from. YoY delta
// fields are nil when no prior-year baseline exists, which consumers must
// render as "no comparison", not 0%.
type MetricsDocument struct {
	Shopify     ShopifySummary      `json:"shopify"`
	Ads         AdsSummary          `json:"ads"`
	TopProducts []domain.TopProduct `json:"topProducts"`
	Klaviyo     KlaviyoSummary      `json:"klaviyo"`
	Instagram   InstagramSummary    `json:"instagram"`
}

// ShopifySummary totals the storefront domain over the range.
type ShopifySummary struct {
	Traffic            int                          `json:"traffic"`
	Orders             int                          `json:"orders"`
	NewCustomerOrders  int                          `json:"new_customer_orders"`
	Revenue            float64                      `json:"revenue"`
	ContributionMargin float64                      `json:"contribution_margin"`
	ConversionRate     float64                      `json:"conversion_rate"`
	RevenueYoY         *float64                     `json:"revenue_yoy"`
	OrdersYoY          *float64                     `json:"orders_yoy"`
	Daily              []domain.ShopifyDailyMetrics `json:"daily"`
}

// PlatformSummary is one ad network's totals over the range. ROAS is the
// unweighted average of platform-reported daily values.
type PlatformSummary struct {
	Platform  domain.Platform `json:"platform"`
	Spend     float64         `json:"spend"`
	ROAS      float64         `json:"roas"`
	PaidReach int             `json:"paid_reach"`
}

// AdsSummary totals the paid-acquisition domain over the range.
type AdsSummary struct {
	Platforms          []PlatformSummary       `json:"platforms"`
	TotalSpend         float64                 `json:"totalSpend"`
	TotalReach         int                     `json:"totalReach"`
	BlendedROAS        float64                 `json:"blendedRoas"`
	CostPerNewCustomer float64                 `json:"costPerNewCustomer"`
	Daily              []domain.AdDailyMetrics `json:"daily"`
}

// SignupsSummary totals email signups with their own daily series and YoY.
type SignupsSummary struct {
	Total int           `json:"total"`
	Daily []DailySignup `json:"daily"`
	YoY   *float64      `json:"yoy"`
}

// DailySignup is one day of signups in the document's signup series.
type DailySignup struct {
	Date    string `json:"date"`
	Signups int    `json:"signups"`
}

// KlaviyoSummary totals the email domain. Open and click rates are
// recomputed over the summed sends, not averaged from daily rates.
type KlaviyoSummary struct {
	CampaignsSent   int                          `json:"campaigns_sent"`
	EmailsSent      int                          `json:"emails_sent"`
	EmailsOpened    int                          `json:"emails_opened"`
	EmailsClicked   int                          `json:"emails_clicked"`
	OpenRate        float64                      `json:"open_rate"`
	ClickRate       float64                      `json:"click_rate"`
	ActiveFlows     int                          `json:"active_flows"`
	SubscriberCount int                          `json:"subscriber_count"`
	SubscriberYoY   *float64                     `json:"subscriber_yoy"`
	EmailSignups    SignupsSummary               `json:"email_signups"`
	Daily           []domain.KlaviyoDailyMetrics `json:"daily"`
}

// InstagramSummary totals the organic social domain. Followers is a gauge
// sampled from the latest row in range.
type InstagramSummary struct {
	Followers       int                            `json:"followers"`
	Reach           int                            `json:"reach"`
	Impressions     int                            `json:"impressions"`
	AccountsEngaged int                            `json:"accounts_engaged"`
	Daily           []domain.InstagramDailyMetrics `json:"daily"`
}
