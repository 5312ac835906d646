// Package api is the HTTP surface of the dashboard backend: the metrics
// read path, scheduler-triggered sync endpoints and platform OAuth
// handshakes.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emberline/commerce-pulse/internal/aggregate"
	"github.com/emberline/commerce-pulse/internal/cache"
	"github.com/emberline/commerce-pulse/internal/config"
	"github.com/emberline/commerce-pulse/internal/domain"
	"github.com/emberline/commerce-pulse/internal/pkg/httpretry"
	"github.com/emberline/commerce-pulse/internal/pkg/httputil"
	"github.com/emberline/commerce-pulse/internal/pkg/logger"
	"github.com/emberline/commerce-pulse/internal/syncer"
)

// defaultBackfillDays is how far back a backfill reaches when the caller
// does not say.
const defaultBackfillDays = 30

// Aggregator renders a metrics document for a date range.
type Aggregator interface {
	AggregatedMetrics(ctx context.Context, startDate, endDate string) (*aggregate.MetricsDocument, error)
}

// SyncRunner triggers sync and backfill passes.
type SyncRunner interface {
	SyncPlatform(ctx context.Context, platform string) (*syncer.RunReport, error)
	Backfill(ctx context.Context, platform, startDate, endDate string, offset int) (*syncer.BackfillReport, error)
}

// TokenWriter persists OAuth credentials obtained through callbacks.
type TokenWriter interface {
	UpsertToken(ctx context.Context, t domain.OAuthToken) error
}

// Handlers carries the dependencies behind every route.
type Handlers struct {
	agg        Aggregator
	runner     SyncRunner
	tokens     TokenWriter
	cache      *cache.Cache
	db         *sql.DB
	cronSecret string
	appURL     string
	shopifyCfg config.ShopifyConfig
	tiktokCfg  config.TikTokConfig
	httpClient httpretry.HTTPDoer

	// test seams
	now             func() time.Time
	shopifyAuthBase string
	tiktokAuthBase  string
}

// NewHandlers wires the handler set. cache and db may be nil.
func NewHandlers(cfg *config.Config, agg Aggregator, runner SyncRunner, tokens TokenWriter,
	c *cache.Cache, db *sql.DB) *Handlers {
	return &Handlers{
		agg:        agg,
		runner:     runner,
		tokens:     tokens,
		cache:      c,
		db:         db,
		cronSecret: cfg.Server.CronSecret,
		appURL:     cfg.Server.AppURL,
		shopifyCfg: cfg.Shopify,
		tiktokCfg:  cfg.TikTok,
		httpClient: httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, 3),

		now:             time.Now,
		shopifyAuthBase: "https://" + cfg.Shopify.StoreDomain,
		tiktokAuthBase:  "https://business-api.tiktok.com",
	}
}

type metricsResponse struct {
	Success   bool                       `json:"success"`
	Period    string                     `json:"period"`
	DateRange map[string]string          `json:"dateRange"`
	Metrics   *aggregate.MetricsDocument `json:"metrics"`
}

// GetMetrics renders the aggregated metrics document. Explicit
// startDate/endDate win; otherwise a period preset resolves the range.
//
//	GET /api/metrics?period=daily|weekly|monthly|quarterly
//	GET /api/metrics?startDate=2025-05-01&endDate=2025-05-07
func (h *Handlers) GetMetrics(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "daily"
	}
	start := r.URL.Query().Get("startDate")
	end := r.URL.Query().Get("endDate")
	if start == "" || end == "" {
		start, end = resolvePeriod(period, h.now().UTC())
	}

	if payload, ok := h.cache.Get(r.Context(), start, end); ok {
		httputil.Raw(w, http.StatusOK, payload)
		return
	}

	doc, err := h.agg.AggregatedMetrics(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch metrics", err.Error())
		return
	}

	resp := metricsResponse{
		Success:   true,
		Period:    period,
		DateRange: map[string]string{"startDate": start, "endDate": end},
		Metrics:   doc,
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode metrics", err.Error())
		return
	}
	h.cache.Set(r.Context(), start, end, payload)
	httputil.Raw(w, http.StatusOK, payload)
}

// SyncPlatform runs a latest-mode sync for one platform, or all of them.
//
//	GET /api/sync/{platform}
func (h *Handlers) SyncPlatform(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")

	report, err := h.runner.SyncPlatform(r.Context(), platform)
	if err != nil {
		writeError(w, http.StatusBadRequest, "sync failed", err.Error())
		return
	}
	h.cache.Invalidate(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"run_id":  report.RunID,
		"results": report.Results,
	})
}

// Backfill runs one batch of a historical catch-up sync. The caller loops
// with the returned nextOffset until hasMore is false.
//
//	GET /api/backfill/{platform}?days=90&offset=0
//	GET /api/backfill/{platform}?startDate=2025-01-01&endDate=2025-03-31&offset=30
func (h *Handlers) Backfill(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	q := r.URL.Query()

	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset", v)
			return
		}
		offset = n
	}

	start := q.Get("startDate")
	end := q.Get("endDate")
	if start == "" || end == "" {
		days := defaultBackfillDays
		if v := q.Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid days", v)
				return
			}
			days = n
		}
		today := h.now().UTC()
		end = today.Format(domain.DateFormat)
		start = today.AddDate(0, 0, -(days - 1)).Format(domain.DateFormat)
	}

	report, err := h.runner.Backfill(r.Context(), platform, start, end, offset)
	if err != nil {
		writeError(w, http.StatusBadRequest, "backfill failed", err.Error())
		return
	}
	h.cache.Invalidate(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"run_id":     report.RunID,
		"platform":   report.Platform,
		"progress":   report.Progress,
		"results":    report.Results,
		"processed":  report.Progress.Processed,
		"total":      report.Progress.Total,
		"hasMore":    report.Progress.HasMore,
		"nextOffset": report.Progress.NextOffset,
	})
}

// HealthCheck reports process liveness and database reachability.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := map[string]string{}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			status = "degraded"
			checks["database"] = "down"
			logger.Warn("health check database ping failed", "error", err.Error())
		} else {
			checks["database"] = "up"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"time":   h.now().UTC().Format(time.RFC3339),
		"checks": checks,
	})
}

// resolvePeriod maps a preset onto a concrete date range ending today:
// daily is the trailing week; weekly, monthly and quarterly snap to the
// enclosing calendar boundaries of the trailing 4 weeks, 3 months and 2
// quarters.
func resolvePeriod(period string, today time.Time) (string, string) {
	var start, end time.Time
	switch period {
	case "weekly":
		start = startOfWeek(today.AddDate(0, 0, -28))
		end = startOfWeek(today).AddDate(0, 0, 6)
	case "monthly":
		// Anchor on month starts before shifting so a day-31 today cannot
		// skid across a short month.
		start = startOfMonth(today).AddDate(0, -3, 0)
		end = startOfMonth(today).AddDate(0, 1, -1)
	case "quarterly":
		start = startOfQuarter(today).AddDate(0, -6, 0)
		end = startOfQuarter(today).AddDate(0, 3, -1)
	default: // daily
		start = today.AddDate(0, 0, -7)
		end = today
	}
	return start.Format(domain.DateFormat), end.Format(domain.DateFormat)
}

func startOfWeek(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()-int(t.Weekday()), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func startOfQuarter(t time.Time) time.Time {
	month := time.Month(((int(t.Month())-1)/3)*3 + 1)
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, time.UTC)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	httputil.JSON(w, status, v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	if details == "" {
		httputil.Error(w, status, msg)
		return
	}
	httputil.ErrorDetails(w, status, msg, details)
}
