package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Shopify   ShopifyConfig   `yaml:"shopify"`
	Meta      MetaConfig      `yaml:"meta"`
	GoogleAds GoogleAdsConfig `yaml:"google_ads"`
	TikTok    TikTokConfig    `yaml:"tiktok"`
	Snapchat  SnapchatConfig  `yaml:"snapchat"`
	Klaviyo   KlaviyoConfig   `yaml:"klaviyo"`
	Instagram InstagramConfig `yaml:"instagram"`
	GA4       GA4Config       `yaml:"ga4"`
	Sync      SyncConfig      `yaml:"sync"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port       int    `yaml:"port"`
	Host       string `yaml:"host"`
	CronSecret string `yaml:"cron_secret"`
	AppURL     string `yaml:"app_url"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds Postgres connection configuration
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// Validate checks that a database URL is present.
func (c DatabaseConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("database: url is required (set DATABASE_URL)")
	}
	return nil
}

// RedisConfig holds the optional metrics-document cache configuration
type RedisConfig struct {
	URL        string `yaml:"url"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	Enabled    bool   `yaml:"enabled"`
}

// TTL returns the configured cache TTL as a duration
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ShopifyConfig holds Shopify Admin API configuration
type ShopifyConfig struct {
	StoreDomain    string `yaml:"store_domain"`
	AccessToken    string `yaml:"access_token"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	APIVersion     string `yaml:"api_version"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c ShopifyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate fails fast when no usable credential path exists.
func (c ShopifyConfig) Validate() error {
	if c.StoreDomain == "" {
		return fmt.Errorf("shopify: store_domain is required")
	}
	if c.AccessToken == "" && (c.ClientID == "" || c.ClientSecret == "") {
		return fmt.Errorf("shopify: set access_token or client_id + client_secret")
	}
	return nil
}

// MetaConfig holds Meta Marketing API configuration
type MetaConfig struct {
	AccessToken    string `yaml:"access_token"`
	AdAccountID    string `yaml:"ad_account_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c MetaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks required Meta credentials.
func (c MetaConfig) Validate() error {
	if c.AccessToken == "" || c.AdAccountID == "" {
		return fmt.Errorf("meta: access_token and ad_account_id are required")
	}
	return nil
}

// GoogleAdsConfig holds Google Ads API configuration
type GoogleAdsConfig struct {
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	RefreshToken   string `yaml:"refresh_token"`
	CustomerID     string `yaml:"customer_id"`
	DeveloperToken string `yaml:"developer_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c GoogleAdsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks required Google Ads credentials.
func (c GoogleAdsConfig) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return fmt.Errorf("google_ads: client_id, client_secret and refresh_token are required")
	}
	if c.CustomerID == "" || c.DeveloperToken == "" {
		return fmt.Errorf("google_ads: customer_id and developer_token are required")
	}
	return nil
}

// TikTokConfig holds TikTok Business API configuration
type TikTokConfig struct {
	AccessToken    string `yaml:"access_token"`
	AdvertiserID   string `yaml:"advertiser_id"`
	ClientKey      string `yaml:"client_key"`
	ClientSecret   string `yaml:"client_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c TikTokConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks required TikTok credentials.
func (c TikTokConfig) Validate() error {
	if c.AccessToken == "" || c.AdvertiserID == "" {
		return fmt.Errorf("tiktok: access_token and advertiser_id are required")
	}
	return nil
}

// SnapchatConfig holds Snapchat Marketing API configuration
type SnapchatConfig struct {
	AccessToken    string `yaml:"access_token"`
	AdAccountID    string `yaml:"ad_account_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SnapchatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks required Snapchat credentials.
func (c SnapchatConfig) Validate() error {
	if c.AccessToken == "" || c.AdAccountID == "" {
		return fmt.Errorf("snapchat: access_token and ad_account_id are required")
	}
	return nil
}

// KlaviyoConfig holds Klaviyo API configuration
type KlaviyoConfig struct {
	APIKey         string `yaml:"api_key"`
	Revision       string `yaml:"revision"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c KlaviyoConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks the Klaviyo API key is present.
func (c KlaviyoConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("klaviyo: api_key is required")
	}
	return nil
}

// InstagramConfig holds Instagram Graph API configuration. The access token
// is shared with Meta when empty.
type InstagramConfig struct {
	AccessToken       string `yaml:"access_token"`
	BusinessAccountID string `yaml:"business_account_id"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c InstagramConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks required Instagram identifiers.
func (c InstagramConfig) Validate() error {
	if c.BusinessAccountID == "" {
		return fmt.Errorf("instagram: business_account_id is required")
	}
	if c.AccessToken == "" {
		return fmt.Errorf("instagram: access_token is required")
	}
	return nil
}

// GA4Config holds Google Analytics 4 Data API configuration. CredentialsJSON
// is the full service-account key document.
type GA4Config struct {
	PropertyID      string `yaml:"property_id"`
	CredentialsJSON string `yaml:"credentials_json"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c GA4Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks the GA4 service account credentials are present.
func (c GA4Config) Validate() error {
	if c.PropertyID == "" {
		return fmt.Errorf("ga4: property_id is required")
	}
	if c.CredentialsJSON == "" {
		return fmt.Errorf("ga4: credentials_json is required")
	}
	return nil
}

// SyncConfig holds orchestrator pacing and scheduling configuration
type SyncConfig struct {
	CronSpec       string `yaml:"cron_spec"`
	CronEnabled    bool   `yaml:"cron_enabled"`
	BatchSize      int    `yaml:"batch_size"`
	RequestDelayMS int    `yaml:"request_delay_ms"`
}

// RequestDelay returns the inter-request pacing delay as a duration
func (c SyncConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMS) * time.Millisecond
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Redis.TTLSeconds == 0 {
		cfg.Redis.TTLSeconds = 60
	}
	if cfg.Shopify.APIVersion == "" {
		cfg.Shopify.APIVersion = "2024-01"
	}
	if cfg.Shopify.TimeoutSeconds == 0 {
		cfg.Shopify.TimeoutSeconds = 30
	}
	if cfg.Meta.TimeoutSeconds == 0 {
		cfg.Meta.TimeoutSeconds = 30
	}
	if cfg.GoogleAds.TimeoutSeconds == 0 {
		cfg.GoogleAds.TimeoutSeconds = 30
	}
	if cfg.TikTok.TimeoutSeconds == 0 {
		cfg.TikTok.TimeoutSeconds = 30
	}
	if cfg.Snapchat.TimeoutSeconds == 0 {
		cfg.Snapchat.TimeoutSeconds = 30
	}
	if cfg.Klaviyo.TimeoutSeconds == 0 {
		cfg.Klaviyo.TimeoutSeconds = 60
	}
	if cfg.Klaviyo.Revision == "" {
		cfg.Klaviyo.Revision = "2024-10-15"
	}
	if cfg.Instagram.TimeoutSeconds == 0 {
		cfg.Instagram.TimeoutSeconds = 30
	}
	if cfg.GA4.TimeoutSeconds == 0 {
		cfg.GA4.TimeoutSeconds = 30
	}
	if cfg.Sync.CronSpec == "" {
		cfg.Sync.CronSpec = "*/30 * * * *"
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 30
	}
	if cfg.Sync.RequestDelayMS == 0 {
		cfg.Sync.RequestDelayMS = 100
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		cfg.Server.CronSecret = v
	}
	if v := os.Getenv("APP_URL"); v != "" {
		cfg.Server.AppURL = v
	}
	if v := os.Getenv("SHOPIFY_STORE_DOMAIN"); v != "" {
		cfg.Shopify.StoreDomain = v
	}
	if v := os.Getenv("SHOPIFY_ACCESS_TOKEN"); v != "" {
		cfg.Shopify.AccessToken = v
	}
	if v := os.Getenv("SHOPIFY_CLIENT_ID"); v != "" {
		cfg.Shopify.ClientID = v
	}
	if v := os.Getenv("SHOPIFY_CLIENT_SECRET"); v != "" {
		cfg.Shopify.ClientSecret = v
	}
	if v := os.Getenv("META_ACCESS_TOKEN"); v != "" {
		cfg.Meta.AccessToken = v
	}
	if v := os.Getenv("META_AD_ACCOUNT_ID"); v != "" {
		cfg.Meta.AdAccountID = v
	}
	if v := os.Getenv("GOOGLE_ADS_CLIENT_ID"); v != "" {
		cfg.GoogleAds.ClientID = v
	}
	if v := os.Getenv("GOOGLE_ADS_CLIENT_SECRET"); v != "" {
		cfg.GoogleAds.ClientSecret = v
	}
	if v := os.Getenv("GOOGLE_ADS_REFRESH_TOKEN"); v != "" {
		cfg.GoogleAds.RefreshToken = v
	}
	if v := os.Getenv("GOOGLE_ADS_CUSTOMER_ID"); v != "" {
		cfg.GoogleAds.CustomerID = v
	}
	if v := os.Getenv("GOOGLE_ADS_DEVELOPER_TOKEN"); v != "" {
		cfg.GoogleAds.DeveloperToken = v
	}
	if v := os.Getenv("TIKTOK_ACCESS_TOKEN"); v != "" {
		cfg.TikTok.AccessToken = v
	}
	if v := os.Getenv("TIKTOK_ADVERTISER_ID"); v != "" {
		cfg.TikTok.AdvertiserID = v
	}
	if v := os.Getenv("TIKTOK_CLIENT_KEY"); v != "" {
		cfg.TikTok.ClientKey = v
	}
	if v := os.Getenv("TIKTOK_CLIENT_SECRET"); v != "" {
		cfg.TikTok.ClientSecret = v
	}
	if v := os.Getenv("SNAPCHAT_ACCESS_TOKEN"); v != "" {
		cfg.Snapchat.AccessToken = v
	}
	if v := os.Getenv("SNAPCHAT_AD_ACCOUNT_ID"); v != "" {
		cfg.Snapchat.AdAccountID = v
	}
	if v := os.Getenv("KLAVIYO_API_KEY"); v != "" {
		cfg.Klaviyo.APIKey = v
	}
	if v := os.Getenv("INSTAGRAM_BUSINESS_ACCOUNT_ID"); v != "" {
		cfg.Instagram.BusinessAccountID = v
	}
	if v := os.Getenv("GA4_PROPERTY_ID"); v != "" {
		cfg.GA4.PropertyID = v
	}
	if v := os.Getenv("GA4_CREDENTIALS"); v != "" {
		cfg.GA4.CredentialsJSON = v
	}

	// Instagram shares the Meta token unless one is set explicitly
	if cfg.Instagram.AccessToken == "" {
		cfg.Instagram.AccessToken = cfg.Meta.AccessToken
	}

	return cfg, nil
}
