// Package syncer orchestrates platform pulls: it asks each adapter for a
// day of metrics and persists the result through the store. A failure on
// one platform or date never aborts the rest of the run.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emberline/commerce-pulse/internal/domain"
	"github.com/emberline/commerce-pulse/internal/pkg/logger"
)

// signupLookbackDays is how far back each scheduled run re-syncs daily
// signup counts, so late-arriving profiles settle into place.
const signupLookbackDays = 7

// subscriberLookbackDays bounds the search for the last persisted
// subscriber gauge when a run carries it forward.
const subscriberLookbackDays = 30

// Store is the write side of the persistence layer used by sync runs.
type Store interface {
	UpsertShopifyMetrics(ctx context.Context, m domain.ShopifyDailyMetrics) error
	ReplaceTopProducts(ctx context.Context, date string, products []domain.TopProduct) error
	UpsertAdMetrics(ctx context.Context, m domain.AdDailyMetrics) error
	UpsertKlaviyoMetrics(ctx context.Context, m domain.KlaviyoDailyMetrics) error
	UpsertDailySignups(ctx context.Context, date string, uniqueSignups int) error
	UpsertInstagramMetrics(ctx context.Context, m domain.InstagramDailyMetrics) error
	KlaviyoMetricsRange(ctx context.Context, start, end string) ([]domain.KlaviyoDailyMetrics, error)
}

// ShopifySource yields one day of storefront metrics plus the product
// leaderboard for that day.
type ShopifySource interface {
	DailyMetrics(ctx context.Context, date string) (domain.ShopifyDailyMetrics, []domain.TopProduct, error)
}

// AdSource yields one day of spend metrics for a single ad network.
type AdSource interface {
	DailyMetrics(ctx context.Context, date string) (domain.AdDailyMetrics, error)
}

// EmailSource yields email marketing metrics and list-signup counts.
type EmailSource interface {
	MetricsForDate(ctx context.Context, date string) (domain.KlaviyoDailyMetrics, error)
	SignupsInRange(ctx context.Context, startDate, endDate string) (map[string]int, error)
}

// SocialSource yields one day of organic social metrics.
type SocialSource interface {
	DailyMetrics(ctx context.Context, date string) (domain.InstagramDailyMetrics, error)
}

// PlatformResult records the outcome of one platform/date unit of work.
type PlatformResult struct {
	Status  string         `json:"status"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// RunReport is the status map for a whole sync run, keyed "platform_date".
type RunReport struct {
	RunID   string                    `json:"run_id"`
	Started time.Time                 `json:"started"`
	Results map[string]PlatformResult `json:"results"`
}

func (r *RunReport) record(platform, date string, res PlatformResult) {
	r.Results[platform+"_"+date] = res
}

// Runner drives sync and backfill runs. Nil sources are skipped, so a
// deployment can run with only the platforms it has credentials for.
type Runner struct {
	store     Store
	shopify   ShopifySource
	ads       map[domain.Platform]AdSource
	email     EmailSource
	social    SocialSource
	batchSize int
	delay     time.Duration

	// test seams
	sleep func(time.Duration)
	now   func() time.Time
}

// New creates a sync runner. batchSize bounds backfill batches and delay
// paces consecutive upstream calls.
func New(store Store, shopify ShopifySource, ads map[domain.Platform]AdSource,
	email EmailSource, social SocialSource, batchSize int, delay time.Duration) *Runner {
	if batchSize <= 0 {
		batchSize = 30
	}
	return &Runner{
		store:     store,
		shopify:   shopify,
		ads:       ads,
		email:     email,
		social:    social,
		batchSize: batchSize,
		delay:     delay,
		sleep:     time.Sleep,
		now:       time.Now,
	}
}

func (r *Runner) newReport() *RunReport {
	return &RunReport{
		RunID:   uuid.New().String(),
		Started: r.now().UTC(),
		Results: map[string]PlatformResult{},
	}
}

func (r *Runner) pace() {
	if r.delay > 0 {
		r.sleep(r.delay)
	}
}

// SyncLatest refreshes yesterday and today for the storefront, every ad
// network and Instagram, then yesterday's email metrics and the last week
// of signups. Today's row is partial by nature and settles on the next run.
func (r *Runner) SyncLatest(ctx context.Context) *RunReport {
	report := r.newReport()
	today := r.now().UTC().Format(domain.DateFormat)
	yesterday := r.now().UTC().AddDate(0, 0, -1).Format(domain.DateFormat)
	logger.Info("sync run starting", "run_id", report.RunID, "dates", yesterday+","+today)

	for _, date := range []string{yesterday, today} {
		r.syncShopifyDate(ctx, report, date)
		r.pace()
		for _, p := range domain.AdPlatforms {
			r.syncAdDate(ctx, report, p, date)
			r.pace()
		}
		r.syncInstagramDate(ctx, report, date)
		r.pace()
	}

	// Email metrics for today are mostly noise (campaigns still sending),
	// so only yesterday is refreshed.
	r.syncKlaviyoDate(ctx, report, yesterday, true)
	r.pace()
	r.syncSignups(ctx, report,
		r.now().UTC().AddDate(0, 0, -signupLookbackDays).Format(domain.DateFormat), yesterday)

	logger.Info("sync run finished", "run_id", report.RunID, "units", len(report.Results))
	return report
}

// SyncPlatform refreshes a single platform for yesterday and today.
// Platform "all" is equivalent to SyncLatest.
func (r *Runner) SyncPlatform(ctx context.Context, platform string) (*RunReport, error) {
	if platform == "all" {
		return r.SyncLatest(ctx), nil
	}

	report := r.newReport()
	today := r.now().UTC().Format(domain.DateFormat)
	yesterday := r.now().UTC().AddDate(0, 0, -1).Format(domain.DateFormat)

	switch platform {
	case "shopify":
		for _, date := range []string{yesterday, today} {
			r.syncShopifyDate(ctx, report, date)
			r.pace()
		}
	case "klaviyo":
		r.syncKlaviyoDate(ctx, report, yesterday, true)
		r.pace()
		r.syncSignups(ctx, report,
			r.now().UTC().AddDate(0, 0, -signupLookbackDays).Format(domain.DateFormat), yesterday)
	case "instagram":
		for _, date := range []string{yesterday, today} {
			r.syncInstagramDate(ctx, report, date)
			r.pace()
		}
	default:
		p := domain.Platform(platform)
		if !p.Valid() {
			return nil, fmt.Errorf("unknown platform %q", platform)
		}
		for _, date := range []string{yesterday, today} {
			r.syncAdDate(ctx, report, p, date)
			r.pace()
		}
	}
	return report, nil
}

func (r *Runner) syncShopifyDate(ctx context.Context, report *RunReport, date string) {
	if r.shopify == nil {
		report.record("shopify", date, PlatformResult{Status: "skipped"})
		return
	}
	m, top, err := r.shopify.DailyMetrics(ctx, date)
	if err != nil {
		r.fail(report, "shopify", date, err)
		return
	}
	if err := r.store.UpsertShopifyMetrics(ctx, m); err != nil {
		r.fail(report, "shopify", date, err)
		return
	}
	if err := r.store.ReplaceTopProducts(ctx, date, top); err != nil {
		r.fail(report, "shopify", date, err)
		return
	}
	report.record("shopify", date, PlatformResult{Status: "synced", Details: map[string]any{
		"orders":  m.Orders,
		"revenue": m.Revenue,
	}})
}

func (r *Runner) syncAdDate(ctx context.Context, report *RunReport, platform domain.Platform, date string) {
	src := r.ads[platform]
	if src == nil {
		report.record(string(platform), date, PlatformResult{Status: "skipped"})
		return
	}
	m, err := src.DailyMetrics(ctx, date)
	if err != nil {
		r.fail(report, string(platform), date, err)
		return
	}
	if err := r.store.UpsertAdMetrics(ctx, m); err != nil {
		r.fail(report, string(platform), date, err)
		return
	}
	report.record(string(platform), date, PlatformResult{Status: "synced", Details: map[string]any{
		"spend": m.Spend,
		"roas":  m.ROAS,
	}})
}

// syncKlaviyoDate pulls one day of email metrics. When carryGauge is set
// and the adapter did not resolve a subscriber count, the most recent
// persisted gauge is carried forward rather than walking every profile.
func (r *Runner) syncKlaviyoDate(ctx context.Context, report *RunReport, date string, carryGauge bool) {
	if r.email == nil {
		report.record("klaviyo", date, PlatformResult{Status: "skipped"})
		return
	}
	m, err := r.email.MetricsForDate(ctx, date)
	if err != nil {
		r.fail(report, "klaviyo", date, err)
		return
	}
	if carryGauge && m.SubscriberCount == 0 {
		m.SubscriberCount = r.lastSubscriberCount(ctx, date)
	}
	if err := r.store.UpsertKlaviyoMetrics(ctx, m); err != nil {
		r.fail(report, "klaviyo", date, err)
		return
	}
	report.record("klaviyo", date, PlatformResult{Status: "synced", Details: map[string]any{
		"emails_sent": m.EmailsSent,
		"subscribers": m.SubscriberCount,
	}})
}

func (r *Runner) lastSubscriberCount(ctx context.Context, date string) int {
	end, err := time.Parse(domain.DateFormat, date)
	if err != nil {
		return 0
	}
	start := end.AddDate(0, 0, -subscriberLookbackDays).Format(domain.DateFormat)
	rows, err := r.store.KlaviyoMetricsRange(ctx, start, date)
	if err != nil {
		logger.Warn("subscriber gauge lookback failed", "error", err.Error())
		return 0
	}
	for _, row := range rows {
		if row.SubscriberCount > 0 {
			return row.SubscriberCount
		}
	}
	return 0
}

func (r *Runner) syncSignups(ctx context.Context, report *RunReport, start, end string) {
	if r.email == nil {
		report.record("klaviyo_signups", end, PlatformResult{Status: "skipped"})
		return
	}
	byDate, err := r.email.SignupsInRange(ctx, start, end)
	if err != nil {
		r.fail(report, "klaviyo_signups", end, err)
		return
	}
	from, perr := time.Parse(domain.DateFormat, start)
	if perr != nil {
		r.fail(report, "klaviyo_signups", end, perr)
		return
	}
	// Write a row for every date in the window, zeroes included, so a day
	// with no signups is distinguishable from a day never synced.
	for d := from; d.Format(domain.DateFormat) <= end; d = d.AddDate(0, 0, 1) {
		date := d.Format(domain.DateFormat)
		if err := r.store.UpsertDailySignups(ctx, date, byDate[date]); err != nil {
			r.fail(report, "klaviyo_signups", date, err)
			return
		}
	}
	report.record("klaviyo_signups", end, PlatformResult{Status: "synced", Details: map[string]any{
		"days": len(byDate),
	}})
}

func (r *Runner) syncInstagramDate(ctx context.Context, report *RunReport, date string) {
	if r.social == nil {
		report.record("instagram", date, PlatformResult{Status: "skipped"})
		return
	}
	m, err := r.social.DailyMetrics(ctx, date)
	if err != nil {
		r.fail(report, "instagram", date, err)
		return
	}
	if err := r.store.UpsertInstagramMetrics(ctx, m); err != nil {
		r.fail(report, "instagram", date, err)
		return
	}
	report.record("instagram", date, PlatformResult{Status: "synced", Details: map[string]any{
		"followers": m.Followers,
		"reach":     m.Reach,
	}})
}

func (r *Runner) fail(report *RunReport, platform, date string, err error) {
	logger.Error("sync unit failed", "platform", platform, "date", date, "error", err.Error())
	report.record(platform, date, PlatformResult{Status: "error", Error: err.Error()})
}
