package domain

import "time"

// DateFormat is the canonical calendar-date layout used everywhere a date
// crosses a boundary: API parameters, database DATE columns, status maps.
const DateFormat = "2006-01-02"

// Platform identifies a paid advertising network.
type Platform string

const (
	PlatformMeta     Platform = "meta"
	PlatformGoogle   Platform = "google"
	PlatformTikTok   Platform = "tiktok"
	PlatformSnapchat Platform = "snapchat"
)

// AdPlatforms lists every ad network in sync order.
var AdPlatforms = []Platform{PlatformMeta, PlatformGoogle, PlatformTikTok, PlatformSnapchat}

// Valid reports whether p names a known ad network.
func (p Platform) Valid() bool {
	switch p {
	case PlatformMeta, PlatformGoogle, PlatformTikTok, PlatformSnapchat:
		return true
	}
	return false
}

// ShopifyDailyMetrics is one day of storefront activity.
type ShopifyDailyMetrics struct {
	Date               string    `json:"date" db:"date"`
	Traffic            int       `json:"traffic" db:"traffic"`
	ConversionRate     float64   `json:"conversion_rate" db:"conversion_rate"`
	Orders             int       `json:"orders" db:"orders"`
	NewCustomerOrders  int       `json:"new_customer_orders" db:"new_customer_orders"`
	Revenue            float64   `json:"revenue" db:"revenue"`
	ContributionMargin float64   `json:"contribution_margin" db:"contribution_margin"`
	SyncedAt           time.Time `json:"synced_at,omitempty" db:"synced_at"`
}

// TopProduct is one product's sales snapshot for a single day. Rows for a
// date are replaced wholesale on each sync, never merged.
type TopProduct struct {
	ProductID          string `json:"product_id" db:"product_id"`
	ProductTitle       string `json:"product_title" db:"product_title"`
	QuantitySold       int    `json:"quantity_sold" db:"quantity_sold"`
	InventoryRemaining int    `json:"inventory_remaining" db:"inventory_remaining"`
}

// AdDailyMetrics is one day of spend/performance for a single ad network.
// ROAS is the platform-reported return on ad spend; it is not recomputed
// here except when blending across platforms.
type AdDailyMetrics struct {
	Date      string    `json:"date" db:"date"`
	Platform  Platform  `json:"platform" db:"platform"`
	Spend     float64   `json:"spend" db:"spend"`
	ROAS      float64   `json:"roas" db:"roas"`
	PaidReach int       `json:"paid_reach" db:"paid_reach"`
	SyncedAt  time.Time `json:"synced_at,omitempty" db:"synced_at"`
}

// KlaviyoDailyMetrics is one day of email marketing activity.
// SubscriberCount is a point-in-time gauge, not additive across days.
type KlaviyoDailyMetrics struct {
	Date            string    `json:"date" db:"date"`
	CampaignsSent   int       `json:"campaigns_sent" db:"campaigns_sent"`
	EmailsSent      int       `json:"emails_sent" db:"emails_sent"`
	EmailsOpened    int       `json:"emails_opened" db:"emails_opened"`
	EmailsClicked   int       `json:"emails_clicked" db:"emails_clicked"`
	OpenRate        float64   `json:"open_rate" db:"open_rate"`
	ClickRate       float64   `json:"click_rate" db:"click_rate"`
	ActiveFlows     int       `json:"active_flows" db:"active_flows"`
	SubscriberCount int       `json:"subscriber_count" db:"subscriber_count"`
	SyncedAt        time.Time `json:"synced_at,omitempty" db:"synced_at"`
}

// KlaviyoDailySignups counts new list signups for a single day. Additive.
type KlaviyoDailySignups struct {
	Date          string    `json:"date" db:"date"`
	UniqueSignups int       `json:"unique_signups" db:"unique_signups"`
	SyncedAt      time.Time `json:"synced_at,omitempty" db:"synced_at"`
}

// InstagramDailyMetrics is one day of organic social performance.
// Followers is a gauge; the remaining fields are period sums.
type InstagramDailyMetrics struct {
	Date            string    `json:"date" db:"date"`
	Followers       int       `json:"followers" db:"followers"`
	Reach           int       `json:"reach" db:"reach"`
	Impressions     int       `json:"impressions" db:"impressions"`
	AccountsEngaged int       `json:"accounts_engaged" db:"accounts_engaged"`
	SyncedAt        time.Time `json:"synced_at,omitempty" db:"synced_at"`
}

// OAuthToken is a long-lived platform credential obtained through an OAuth
// handshake and persisted outside the analytics schema proper.
type OAuthToken struct {
	Platform    string    `json:"platform" db:"platform"`
	Shop        string    `json:"shop" db:"shop"`
	AccessToken string    `json:"-" db:"access_token"`
	Scope       string    `json:"scope" db:"scope"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
