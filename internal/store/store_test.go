package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberline/commerce-pulse/internal/domain"
)

func setupStoreTest(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	return New(db), mock, func() { db.Close() }
}

func TestEnsureSchema(t *testing.T) {
	s, mock, cleanup := setupStoreTest(t)
	defer cleanup()

	for range schemaStatements {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS|ALTER TABLE`).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertShopifyMetricsReplacesAllFields(t *testing.T) {
	s, mock, cleanup := setupStoreTest(t)
	defer cleanup()

	m := domain.ShopifyDailyMetrics{
		Date:              "2025-05-01",
		Traffic:           500,
		ConversionRate:    2.0,
		Orders:            10,
		NewCustomerOrders: 4,
		Revenue:           500.00,
	}

	mock.ExpectExec(`INSERT INTO shopify_metrics .* ON CONFLICT \(date\) DO UPDATE SET`).
		WithArgs("2025-05-01", 500, 2.0, 10, 4, 500.00, 0.0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.UpsertShopifyMetrics(context.Background(), m))

	// Re-sync for the same date with new values: same statement, new args;
	// the conflict clause overwrites, it never accumulates.
	m.Orders = 12
	m.Revenue = 610.00
	mock.ExpectExec(`INSERT INTO shopify_metrics .* ON CONFLICT \(date\) DO UPDATE SET`).
		WithArgs("2025-05-01", 500, 2.0, 12, 4, 610.00, 0.0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.UpsertShopifyMetrics(context.Background(), m))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAdMetricsKeyedByDateAndPlatform(t *testing.T) {
	s, mock, cleanup := setupStoreTest(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO ad_metrics .* ON CONFLICT \(date, platform\) DO UPDATE SET`).
		WithArgs("2025-05-01", domain.PlatformMeta, 120.50, 3.1, 45000).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.UpsertAdMetrics(context.Background(), domain.AdDailyMetrics{
		Date: "2025-05-01", Platform: domain.PlatformMeta,
		Spend: 120.50, ROAS: 3.1, PaidReach: 45000,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTopProductsIsTransactional(t *testing.T) {
	s, mock, cleanup := setupStoreTest(t)
	defer cleanup()

	products := []domain.TopProduct{
		{ProductID: "p1", ProductTitle: "Candle", QuantitySold: 7, InventoryRemaining: 120},
		{ProductID: "p2", ProductTitle: "Diffuser", QuantitySold: 3, InventoryRemaining: 44},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM shopify_top_products WHERE date = \$1`).
		WithArgs("2025-05-01").
		WillReturnResult(sqlmock.NewResult(0, 5)) // five stale rows cleared
	mock.ExpectExec(`INSERT INTO shopify_top_products`).
		WithArgs("2025-05-01", "p1", "Candle", 7, 120).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO shopify_top_products`).
		WithArgs("2025-05-01", "p2", "Diffuser", 3, 44).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, s.ReplaceTopProducts(context.Background(), "2025-05-01", products))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTopProductsRollsBackOnInsertFailure(t *testing.T) {
	s, mock, cleanup := setupStoreTest(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM shopify_top_products`).
		WithArgs("2025-05-01").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO shopify_top_products`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := s.ReplaceTopProducts(context.Background(), "2025-05-01", []domain.TopProduct{
		{ProductID: "p1", ProductTitle: "Candle", QuantitySold: 7, InventoryRemaining: 120},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShopifyMetricsRange(t *testing.T) {
	s, mock, cleanup := setupStoreTest(t)
	defer cleanup()

	synced := time.Date(2025, 5, 3, 6, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"date", "traffic", "conversion_rate", "orders", "new_customer_orders",
		"revenue", "contribution_margin", "synced_at",
	}).
		AddRow(time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), 800, 2.5, 20, 8, 1500.00, 300.00, synced).
		AddRow(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), 500, 2.0, 10, 4, 500.00, 100.00, synced)

	mock.ExpectQuery(`SELECT .* FROM shopify_metrics WHERE date >= \$1 AND date <= \$2 ORDER BY date DESC`).
		WithArgs("2025-05-01", "2025-05-02").
		WillReturnRows(rows)

	out, err := s.ShopifyMetricsRange(context.Background(), "2025-05-01", "2025-05-02")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "2025-05-02", out[0].Date)
	assert.Equal(t, 1500.00, out[0].Revenue)
	assert.Equal(t, "2025-05-01", out[1].Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopProductsRangeAggregates(t *testing.T) {
	s, mock, cleanup := setupStoreTest(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"product_id", "product_title", "quantity_sold", "inventory_remaining"}).
		AddRow("p1", "Candle", 17, 120)

	mock.ExpectQuery(`SELECT product_id, product_title,\s+SUM\(quantity_sold\)`).
		WithArgs("2025-05-01", "2025-05-07").
		WillReturnRows(rows)

	out, err := s.TopProductsRange(context.Background(), "2025-05-01", "2025-05-07")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 17, out[0].QuantitySold)
	assert.Equal(t, 120, out[0].InventoryRemaining)
}

func TestSignupsRangeAscending(t *testing.T) {
	s, mock, cleanup := setupStoreTest(t)
	defer cleanup()

	synced := time.Now()
	rows := sqlmock.NewRows([]string{"date", "unique_signups", "synced_at"}).
		AddRow(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), 12, synced).
		AddRow(time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), 9, synced)

	mock.ExpectQuery(`SELECT date, unique_signups, synced_at\s+FROM klaviyo_daily_signups`).
		WithArgs("2025-05-01", "2025-05-02").
		WillReturnRows(rows)

	out, err := s.SignupsRange(context.Background(), "2025-05-01", "2025-05-02")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "2025-05-01", out[0].Date)
	assert.Equal(t, 12, out[0].UniqueSignups)
}

func TestTokenRoundTrip(t *testing.T) {
	s, mock, cleanup := setupStoreTest(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO oauth_tokens .* ON CONFLICT \(platform, shop\) DO UPDATE SET`).
		WithArgs("shopify", "test.myshopify.com", "shpat_abc", "read_orders").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.UpsertToken(context.Background(), domain.OAuthToken{
		Platform: "shopify", Shop: "test.myshopify.com",
		AccessToken: "shpat_abc", Scope: "read_orders",
	})
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery(`SELECT platform, shop, access_token`).
		WithArgs("shopify", "test.myshopify.com").
		WillReturnRows(sqlmock.NewRows([]string{"platform", "shop", "access_token", "scope", "created_at", "updated_at"}).
			AddRow("shopify", "test.myshopify.com", "shpat_abc", "read_orders", now, now))

	tok, err := s.TokenFor(context.Background(), "shopify", "test.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "shpat_abc", tok.AccessToken)
}

func TestTokenForMissing(t *testing.T) {
	s, mock, cleanup := setupStoreTest(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT platform, shop, access_token`).
		WithArgs("tiktok", "acct-1").
		WillReturnError(sql.ErrNoRows)

	_, err := s.TokenFor(context.Background(), "tiktok", "acct-1")
	assert.ErrorIs(t, err, ErrNoToken)
}
