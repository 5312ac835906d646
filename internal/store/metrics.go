package store

import (
	"context"
	"fmt"
	"time"

	"github.com/emberline/commerce-pulse/internal/domain"
)

// UpsertShopifyMetrics inserts or fully replaces the storefront row for a
// date. Every non-key field is overwritten and synced_at refreshed.
func (s *Store) UpsertShopifyMetrics(ctx context.Context, m domain.ShopifyDailyMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shopify_metrics (date, traffic, conversion_rate, orders, new_customer_orders, revenue, contribution_margin)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (date) DO UPDATE SET
			traffic = EXCLUDED.traffic,
			conversion_rate = EXCLUDED.conversion_rate,
			orders = EXCLUDED.orders,
			new_customer_orders = EXCLUDED.new_customer_orders,
			revenue = EXCLUDED.revenue,
			contribution_margin = EXCLUDED.contribution_margin,
			synced_at = NOW()
	`, m.Date, m.Traffic, m.ConversionRate, m.Orders, m.NewCustomerOrders, m.Revenue, m.ContributionMargin)
	if err != nil {
		return fmt.Errorf("upsert shopify metrics: %w", err)
	}
	return nil
}

// ShopifyMetricsRange returns storefront rows for the inclusive [start, end]
// range, newest first.
func (s *Store) ShopifyMetricsRange(ctx context.Context, start, end string) ([]domain.ShopifyDailyMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, traffic, conversion_rate, orders, new_customer_orders, revenue, contribution_margin, synced_at
		FROM shopify_metrics
		WHERE date >= $1 AND date <= $2
		ORDER BY date DESC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query shopify metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.ShopifyDailyMetrics
	for rows.Next() {
		var m domain.ShopifyDailyMetrics
		var date time.Time
		if err := rows.Scan(&date, &m.Traffic, &m.ConversionRate, &m.Orders,
			&m.NewCustomerOrders, &m.Revenue, &m.ContributionMargin, &m.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan shopify metrics: %w", err)
		}
		m.Date = date.Format(domain.DateFormat)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ReplaceTopProducts atomically swaps the product snapshot for a date:
// delete-then-insert inside one transaction, so stale and fresh rows never
// coexist.
func (s *Store) ReplaceTopProducts(ctx context.Context, date string, products []domain.TopProduct) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin top products tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM shopify_top_products WHERE date = $1`, date); err != nil {
		return fmt.Errorf("clear top products: %w", err)
	}
	for _, p := range products {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shopify_top_products (date, product_id, product_title, quantity_sold, inventory_remaining)
			VALUES ($1, $2, $3, $4, $5)
		`, date, p.ProductID, p.ProductTitle, p.QuantitySold, p.InventoryRemaining); err != nil {
			return fmt.Errorf("insert top product: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit top products: %w", err)
	}
	return nil
}

// TopProductsRange aggregates product snapshots across a range: quantities
// sum across days, inventory takes the max observed (best known remaining
// stock, not a meaningful sum). Top 10 by quantity.
func (s *Store) TopProductsRange(ctx context.Context, start, end string) ([]domain.TopProduct, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_title,
		       SUM(quantity_sold) AS quantity_sold,
		       MAX(inventory_remaining) AS inventory_remaining
		FROM shopify_top_products
		WHERE date >= $1 AND date <= $2
		GROUP BY product_id, product_title
		ORDER BY SUM(quantity_sold) DESC
		LIMIT 10
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query top products: %w", err)
	}
	defer rows.Close()

	var out []domain.TopProduct
	for rows.Next() {
		var p domain.TopProduct
		if err := rows.Scan(&p.ProductID, &p.ProductTitle, &p.QuantitySold, &p.InventoryRemaining); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertAdMetrics inserts or fully replaces one platform's row for a date.
func (s *Store) UpsertAdMetrics(ctx context.Context, m domain.AdDailyMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ad_metrics (date, platform, spend, roas, paid_reach)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date, platform) DO UPDATE SET
			spend = EXCLUDED.spend,
			roas = EXCLUDED.roas,
			paid_reach = EXCLUDED.paid_reach,
			synced_at = NOW()
	`, m.Date, m.Platform, m.Spend, m.ROAS, m.PaidReach)
	if err != nil {
		return fmt.Errorf("upsert ad metrics: %w", err)
	}
	return nil
}

// AdMetricsRange returns every platform's rows in the inclusive range,
// newest first, platforms in stable order within a date.
func (s *Store) AdMetricsRange(ctx context.Context, start, end string) ([]domain.AdDailyMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, platform, spend, roas, paid_reach, synced_at
		FROM ad_metrics
		WHERE date >= $1 AND date <= $2
		ORDER BY date DESC, platform
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query ad metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.AdDailyMetrics
	for rows.Next() {
		var m domain.AdDailyMetrics
		var date time.Time
		if err := rows.Scan(&date, &m.Platform, &m.Spend, &m.ROAS, &m.PaidReach, &m.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan ad metrics: %w", err)
		}
		m.Date = date.Format(domain.DateFormat)
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertKlaviyoMetrics inserts or fully replaces the email row for a date.
func (s *Store) UpsertKlaviyoMetrics(ctx context.Context, m domain.KlaviyoDailyMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO klaviyo_metrics (date, campaigns_sent, emails_sent, emails_opened, emails_clicked, open_rate, click_rate, active_flows, subscriber_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (date) DO UPDATE SET
			campaigns_sent = EXCLUDED.campaigns_sent,
			emails_sent = EXCLUDED.emails_sent,
			emails_opened = EXCLUDED.emails_opened,
			emails_clicked = EXCLUDED.emails_clicked,
			open_rate = EXCLUDED.open_rate,
			click_rate = EXCLUDED.click_rate,
			active_flows = EXCLUDED.active_flows,
			subscriber_count = EXCLUDED.subscriber_count,
			synced_at = NOW()
	`, m.Date, m.CampaignsSent, m.EmailsSent, m.EmailsOpened, m.EmailsClicked,
		m.OpenRate, m.ClickRate, m.ActiveFlows, m.SubscriberCount)
	if err != nil {
		return fmt.Errorf("upsert klaviyo metrics: %w", err)
	}
	return nil
}

// KlaviyoMetricsRange returns email rows in the inclusive range, newest
// first; the head of the slice is the gauge source for subscriber_count.
func (s *Store) KlaviyoMetricsRange(ctx context.Context, start, end string) ([]domain.KlaviyoDailyMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, campaigns_sent, emails_sent, emails_opened, emails_clicked, open_rate, click_rate, active_flows, subscriber_count, synced_at
		FROM klaviyo_metrics
		WHERE date >= $1 AND date <= $2
		ORDER BY date DESC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query klaviyo metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.KlaviyoDailyMetrics
	for rows.Next() {
		var m domain.KlaviyoDailyMetrics
		var date time.Time
		if err := rows.Scan(&date, &m.CampaignsSent, &m.EmailsSent, &m.EmailsOpened, &m.EmailsClicked,
			&m.OpenRate, &m.ClickRate, &m.ActiveFlows, &m.SubscriberCount, &m.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan klaviyo metrics: %w", err)
		}
		m.Date = date.Format(domain.DateFormat)
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertDailySignups inserts or replaces the signup count for a date.
func (s *Store) UpsertDailySignups(ctx context.Context, date string, uniqueSignups int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO klaviyo_daily_signups (date, unique_signups)
		VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE SET
			unique_signups = EXCLUDED.unique_signups,
			synced_at = NOW()
	`, date, uniqueSignups)
	if err != nil {
		return fmt.Errorf("upsert daily signups: %w", err)
	}
	return nil
}

// SignupsRange returns daily signup rows in the inclusive range, oldest first.
func (s *Store) SignupsRange(ctx context.Context, start, end string) ([]domain.KlaviyoDailySignups, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, unique_signups, synced_at
		FROM klaviyo_daily_signups
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query daily signups: %w", err)
	}
	defer rows.Close()

	var out []domain.KlaviyoDailySignups
	for rows.Next() {
		var m domain.KlaviyoDailySignups
		var date time.Time
		if err := rows.Scan(&date, &m.UniqueSignups, &m.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan daily signups: %w", err)
		}
		m.Date = date.Format(domain.DateFormat)
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertInstagramMetrics inserts or fully replaces the social row for a date.
func (s *Store) UpsertInstagramMetrics(ctx context.Context, m domain.InstagramDailyMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instagram_metrics (date, followers, reach, impressions, accounts_engaged)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date) DO UPDATE SET
			followers = EXCLUDED.followers,
			reach = EXCLUDED.reach,
			impressions = EXCLUDED.impressions,
			accounts_engaged = EXCLUDED.accounts_engaged,
			synced_at = NOW()
	`, m.Date, m.Followers, m.Reach, m.Impressions, m.AccountsEngaged)
	if err != nil {
		return fmt.Errorf("upsert instagram metrics: %w", err)
	}
	return nil
}

// InstagramMetricsRange returns social rows in the inclusive range, newest first.
func (s *Store) InstagramMetricsRange(ctx context.Context, start, end string) ([]domain.InstagramDailyMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, followers, reach, impressions, accounts_engaged, synced_at
		FROM instagram_metrics
		WHERE date >= $1 AND date <= $2
		ORDER BY date DESC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query instagram metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.InstagramDailyMetrics
	for rows.Next() {
		var m domain.InstagramDailyMetrics
		var date time.Time
		if err := rows.Scan(&date, &m.Followers, &m.Reach, &m.Impressions, &m.AccountsEngaged, &m.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan instagram metrics: %w", err)
		}
		m.Date = date.Format(domain.DateFormat)
		out = append(out, m)
	}
	return out, rows.Err()
}
