// Package aggregate reads persisted daily rows for a date range and folds
// them into the dashboard metrics document: per-domain totals, derived
// cross-domain ratios and year-over-year deltas.
package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emberline/commerce-pulse/internal/domain"
	"github.com/emberline/commerce-pulse/internal/pkg/logger"
)

// Store is the read side of the persistence layer used by the engine.
type Store interface {
	ShopifyMetricsRange(ctx context.Context, start, end string) ([]domain.ShopifyDailyMetrics, error)
	AdMetricsRange(ctx context.Context, start, end string) ([]domain.AdDailyMetrics, error)
	TopProductsRange(ctx context.Context, start, end string) ([]domain.TopProduct, error)
	KlaviyoMetricsRange(ctx context.Context, start, end string) ([]domain.KlaviyoDailyMetrics, error)
	SignupsRange(ctx context.Context, start, end string) ([]domain.KlaviyoDailySignups, error)
	InstagramMetricsRange(ctx context.Context, start, end string) ([]domain.InstagramDailyMetrics, error)
}

// Engine computes aggregated metrics documents.
type Engine struct {
	store Store
}

// New creates an aggregation engine over the given store.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// yoyShift moves a canonical date back exactly one calendar year. Feb 29
// has no prior-year equivalent and clamps to Feb 28.
func yoyShift(date string) (string, error) {
	t, err := time.Parse(domain.DateFormat, date)
	if err != nil {
		return "", fmt.Errorf("parsing date %q: %w", date, err)
	}
	if t.Month() == time.February && t.Day() == 29 {
		return time.Date(t.Year()-1, time.February, 28, 0, 0, 0, 0, time.UTC).Format(domain.DateFormat), nil
	}
	return t.AddDate(-1, 0, 0).Format(domain.DateFormat), nil
}

// AggregatedMetrics builds the metrics document for the inclusive
// [startDate, endDate] range. Range queries run in parallel; a failure in
// one domain zeroes that domain's section and is logged, so a broken ads
// table never blocks storefront rendering. An empty range yields a zeroed
// document, not an error.
func (e *Engine) AggregatedMetrics(ctx context.Context, startDate, endDate string) (*MetricsDocument, error) {
	yoyStart, err := yoyShift(startDate)
	if err != nil {
		return nil, err
	}
	yoyEnd, err := yoyShift(endDate)
	if err != nil {
		return nil, err
	}

	var (
		wg          sync.WaitGroup
		shopify     []domain.ShopifyDailyMetrics
		ads         []domain.AdDailyMetrics
		topProducts []domain.TopProduct
		klaviyo     []domain.KlaviyoDailyMetrics
		signups     []domain.KlaviyoDailySignups
		insta       []domain.InstagramDailyMetrics
		yoyShopify  []domain.ShopifyDailyMetrics
		yoyKlaviyo  []domain.KlaviyoDailyMetrics
		yoySignups  []domain.KlaviyoDailySignups
	)

	fetch := func(domainName string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				logger.Error("range query failed", "domain", domainName, "start", startDate, "end", endDate, "error", err.Error())
			}
		}()
	}

	fetch("shopify", func() (err error) { shopify, err = e.store.ShopifyMetricsRange(ctx, startDate, endDate); return })
	fetch("ads", func() (err error) { ads, err = e.store.AdMetricsRange(ctx, startDate, endDate); return })
	fetch("top_products", func() (err error) { topProducts, err = e.store.TopProductsRange(ctx, startDate, endDate); return })
	fetch("klaviyo", func() (err error) { klaviyo, err = e.store.KlaviyoMetricsRange(ctx, startDate, endDate); return })
	fetch("signups", func() (err error) { signups, err = e.store.SignupsRange(ctx, startDate, endDate); return })
	fetch("instagram", func() (err error) { insta, err = e.store.InstagramMetricsRange(ctx, startDate, endDate); return })
	fetch("shopify_yoy", func() (err error) { yoyShopify, err = e.store.ShopifyMetricsRange(ctx, yoyStart, yoyEnd); return })
	fetch("klaviyo_yoy", func() (err error) { yoyKlaviyo, err = e.store.KlaviyoMetricsRange(ctx, yoyStart, yoyEnd); return })
	fetch("signups_yoy", func() (err error) { yoySignups, err = e.store.SignupsRange(ctx, yoyStart, yoyEnd); return })
	wg.Wait()

	doc := &MetricsDocument{
		Shopify:     e.shopifySummary(shopify, yoyShopify),
		Ads:         e.adsSummary(ads, shopify),
		TopProducts: topProducts,
		Klaviyo:     e.klaviyoSummary(klaviyo, signups, yoyKlaviyo, yoySignups),
		Instagram:   e.instagramSummary(insta),
	}
	if doc.TopProducts == nil {
		doc.TopProducts = []domain.TopProduct{}
	}
	return doc, nil
}

func (e *Engine) shopifySummary(rows, yoyRows []domain.ShopifyDailyMetrics) ShopifySummary {
	s := ShopifySummary{Daily: emptyIfNil(rows)}

	var revenue, margin, rate []float64
	for _, r := range rows {
		s.Traffic += r.Traffic
		s.Orders += r.Orders
		s.NewCustomerOrders += r.NewCustomerOrders
		revenue = append(revenue, r.Revenue)
		margin = append(margin, r.ContributionMargin)
		rate = append(rate, r.ConversionRate)
	}
	s.Revenue = combine("revenue", revenue)
	s.ContributionMargin = combine("contribution_margin", margin)
	s.ConversionRate = combine("conversion_rate", rate)

	var yoyRevenue float64
	yoyOrders := 0
	for _, r := range yoyRows {
		yoyRevenue += r.Revenue
		yoyOrders += r.Orders
	}
	s.RevenueYoY = yoyDelta(s.Revenue, yoyRevenue)
	s.OrdersYoY = yoyDelta(float64(s.Orders), float64(yoyOrders))
	return s
}

func (e *Engine) adsSummary(rows []domain.AdDailyMetrics, shopify []domain.ShopifyDailyMetrics) AdsSummary {
	a := AdsSummary{Daily: emptyIfNil(rows), Platforms: []PlatformSummary{}}

	spend := make(map[domain.Platform][]float64)
	roas := make(map[domain.Platform][]float64)
	reach := make(map[domain.Platform]int)
	for _, r := range rows {
		spend[r.Platform] = append(spend[r.Platform], r.Spend)
		roas[r.Platform] = append(roas[r.Platform], r.ROAS)
		reach[r.Platform] += r.PaidReach
	}

	newCustomers := 0
	totalRevenue := 0.0
	for _, r := range shopify {
		totalRevenue += r.Revenue
		newCustomers += r.NewCustomerOrders
	}

	for _, p := range domain.AdPlatforms {
		if _, ok := spend[p]; !ok {
			continue
		}
		ps := PlatformSummary{
			Platform:  p,
			Spend:     combine("spend", spend[p]),
			ROAS:      combine("roas", roas[p]),
			PaidReach: reach[p],
		}
		a.Platforms = append(a.Platforms, ps)
		a.TotalSpend += ps.Spend
		a.TotalReach += ps.PaidReach
	}
	a.TotalSpend = round2(a.TotalSpend)

	if a.TotalSpend > 0 {
		a.BlendedROAS = round2(totalRevenue / a.TotalSpend)
	}
	if newCustomers > 0 {
		a.CostPerNewCustomer = round2(a.TotalSpend / float64(newCustomers))
	}
	return a
}

func (e *Engine) klaviyoSummary(rows []domain.KlaviyoDailyMetrics, signups []domain.KlaviyoDailySignups,
	yoyRows []domain.KlaviyoDailyMetrics, yoySignups []domain.KlaviyoDailySignups) KlaviyoSummary {

	k := KlaviyoSummary{Daily: emptyIfNil(rows)}

	var flows, subscribers []float64
	for _, r := range rows {
		k.CampaignsSent += r.CampaignsSent
		k.EmailsSent += r.EmailsSent
		k.EmailsOpened += r.EmailsOpened
		k.EmailsClicked += r.EmailsClicked
		flows = append(flows, float64(r.ActiveFlows))
		subscribers = append(subscribers, float64(r.SubscriberCount))
	}
	// Rates over summed sends, unlike the per-day averaged conversion rate
	if k.EmailsSent > 0 {
		k.OpenRate = round2(float64(k.EmailsOpened) / float64(k.EmailsSent) * 100)
		k.ClickRate = round2(float64(k.EmailsClicked) / float64(k.EmailsSent) * 100)
	}
	k.ActiveFlows = int(combine("active_flows", flows))
	k.SubscriberCount = int(combine("subscriber_count", subscribers))

	k.EmailSignups = SignupsSummary{Daily: []DailySignup{}}
	for _, s := range signups {
		k.EmailSignups.Total += s.UniqueSignups
		k.EmailSignups.Daily = append(k.EmailSignups.Daily, DailySignup{Date: s.Date, Signups: s.UniqueSignups})
	}

	yoySubscribers := 0
	if len(yoyRows) > 0 {
		yoySubscribers = yoyRows[0].SubscriberCount
	}
	yoyTotalSignups := 0
	for _, s := range yoySignups {
		yoyTotalSignups += s.UniqueSignups
	}
	k.SubscriberYoY = yoyDelta(float64(k.SubscriberCount), float64(yoySubscribers))
	k.EmailSignups.YoY = yoyDelta(float64(k.EmailSignups.Total), float64(yoyTotalSignups))
	return k
}

func (e *Engine) instagramSummary(rows []domain.InstagramDailyMetrics) InstagramSummary {
	s := InstagramSummary{Daily: emptyIfNil(rows)}

	var followers []float64
	for _, r := range rows {
		followers = append(followers, float64(r.Followers))
		s.Reach += r.Reach
		s.Impressions += r.Impressions
		s.AccountsEngaged += r.AccountsEngaged
	}
	s.Followers = int(combine("followers", followers))
	return s
}

// combine folds a descending-date value series according to the field's
// declared aggregation policy. Monetary and rate results round to 2dp.
func combine(field string, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	policy, ok := domain.FieldPolicies[field]
	if !ok {
		logger.Error("no aggregation policy declared", "field", field)
		return 0
	}

	switch policy {
	case domain.AggSum:
		total := decimal.Zero
		for _, v := range values {
			total = total.Add(decimal.NewFromFloat(v))
		}
		return total.Round(2).InexactFloat64()
	case domain.AggAverage:
		total := 0.0
		for _, v := range values {
			total += v
		}
		return round2(total / float64(len(values)))
	case domain.AggLatest:
		return values[0]
	case domain.AggMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	}
	return 0
}

// yoyDelta is the percentage change from prior to current. A zero or
// absent prior yields nil: no baseline, no comparison.
func yoyDelta(current, prior float64) *float64 {
	if prior == 0 {
		return nil
	}
	d := round2((current - prior) / prior * 100)
	return &d
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
