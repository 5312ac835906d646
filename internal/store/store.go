// Package store owns the relational schema and every read/write path against
// it. Writes are idempotent upserts keyed by the entity's natural key, so
// replaying a sync for the same date converges to the same stored state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/emberline/commerce-pulse/internal/config"
)

// Store provides persistence for daily metrics against PostgreSQL.
type Store struct {
	db *sql.DB
}

// New wraps an existing database handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

// Open connects to Postgres using the given configuration and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw handle for callers that manage their own queries.
func (s *Store) DB() *sql.DB { return s.db }

// schemaStatements are additive-only and safe to re-run on every boot (and
// concurrently): CREATE IF NOT EXISTS and ADD COLUMN IF NOT EXISTS never
// touch existing data.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS shopify_metrics (
		id SERIAL PRIMARY KEY,
		date DATE UNIQUE NOT NULL,
		traffic INTEGER DEFAULT 0,
		conversion_rate DECIMAL(5,2) DEFAULT 0,
		orders INTEGER DEFAULT 0,
		new_customer_orders INTEGER DEFAULT 0,
		revenue DECIMAL(12,2) DEFAULT 0,
		contribution_margin DECIMAL(12,2) DEFAULT 0,
		synced_at TIMESTAMP DEFAULT NOW()
	)`,
	// Column added after initial rollout; keep for databases created before it.
	`ALTER TABLE shopify_metrics ADD COLUMN IF NOT EXISTS contribution_margin DECIMAL(12,2) DEFAULT 0`,
	`CREATE TABLE IF NOT EXISTS shopify_top_products (
		id SERIAL PRIMARY KEY,
		date DATE NOT NULL,
		product_id VARCHAR(255),
		product_title VARCHAR(500),
		quantity_sold INTEGER DEFAULT 0,
		inventory_remaining INTEGER DEFAULT 0,
		synced_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS ad_metrics (
		id SERIAL PRIMARY KEY,
		date DATE NOT NULL,
		platform VARCHAR(50) NOT NULL,
		spend DECIMAL(12,2) DEFAULT 0,
		roas DECIMAL(8,2) DEFAULT 0,
		paid_reach INTEGER DEFAULT 0,
		synced_at TIMESTAMP DEFAULT NOW(),
		UNIQUE(date, platform)
	)`,
	`CREATE TABLE IF NOT EXISTS klaviyo_metrics (
		id SERIAL PRIMARY KEY,
		date DATE UNIQUE NOT NULL,
		campaigns_sent INTEGER DEFAULT 0,
		emails_sent INTEGER DEFAULT 0,
		emails_opened INTEGER DEFAULT 0,
		emails_clicked INTEGER DEFAULT 0,
		open_rate DECIMAL(5,2) DEFAULT 0,
		click_rate DECIMAL(5,2) DEFAULT 0,
		active_flows INTEGER DEFAULT 0,
		subscriber_count INTEGER DEFAULT 0,
		synced_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS klaviyo_daily_signups (
		id SERIAL PRIMARY KEY,
		date DATE UNIQUE NOT NULL,
		unique_signups INTEGER DEFAULT 0,
		synced_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS instagram_metrics (
		id SERIAL PRIMARY KEY,
		date DATE UNIQUE NOT NULL,
		followers INTEGER DEFAULT 0,
		reach INTEGER DEFAULT 0,
		impressions INTEGER DEFAULT 0,
		accounts_engaged INTEGER DEFAULT 0,
		synced_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS oauth_tokens (
		id SERIAL PRIMARY KEY,
		platform VARCHAR(50) NOT NULL,
		shop VARCHAR(255) NOT NULL,
		access_token TEXT NOT NULL,
		scope TEXT,
		created_at TIMESTAMP DEFAULT NOW(),
		updated_at TIMESTAMP DEFAULT NOW(),
		UNIQUE(platform, shop)
	)`,
}

// EnsureSchema idempotently creates all tables and additive columns.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}
