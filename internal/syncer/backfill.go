package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/emberline/commerce-pulse/internal/domain"
	"github.com/emberline/commerce-pulse/internal/pkg/logger"
)

// Progress describes how far a batched backfill has advanced. Callers loop
// on NextOffset until HasMore is false.
type Progress struct {
	Processed  int  `json:"processed"`
	Total      int  `json:"total"`
	HasMore    bool `json:"hasMore"`
	NextOffset int  `json:"nextOffset"`
}

// BackfillReport is the outcome of one backfill batch.
type BackfillReport struct {
	RunID    string                    `json:"run_id"`
	Platform string                    `json:"platform"`
	Progress Progress                  `json:"progress"`
	Results  map[string]PlatformResult `json:"results"`
}

// Backfill re-syncs one platform for a historical date range, processing at
// most one configured batch of days per call. offset is the resume cursor
// from the previous call's Progress.NextOffset. Dates run oldest first so a
// partially-finished backfill leaves a contiguous history.
func (r *Runner) Backfill(ctx context.Context, platform, startDate, endDate string, offset int) (*BackfillReport, error) {
	dates, err := dateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > len(dates) {
		return nil, fmt.Errorf("offset %d out of range for %d dates", offset, len(dates))
	}

	batch := dates[offset:]
	if len(batch) > r.batchSize {
		batch = batch[:r.batchSize]
	}

	report := &BackfillReport{
		RunID:    r.newReport().RunID,
		Platform: platform,
		Results:  map[string]PlatformResult{},
	}
	run := &RunReport{RunID: report.RunID, Results: report.Results}
	logger.Info("backfill batch starting", "run_id", report.RunID, "platform", platform,
		"offset", offset, "batch", len(batch), "total", len(dates))

	for i, date := range batch {
		if err := r.backfillDate(ctx, run, platform, date); err != nil {
			return nil, err
		}
		if i < len(batch)-1 {
			r.pace()
		}
	}

	processed := offset + len(batch)
	report.Progress = Progress{
		Processed:  processed,
		Total:      len(dates),
		HasMore:    processed < len(dates),
		NextOffset: processed,
	}
	return report, nil
}

// backfillDate dispatches one platform/date unit. Only an unknown platform
// is an error; upstream failures land in the report.
func (r *Runner) backfillDate(ctx context.Context, run *RunReport, platform, date string) error {
	switch platform {
	case "shopify":
		r.syncShopifyDate(ctx, run, date)
	case "klaviyo":
		r.syncKlaviyoDate(ctx, run, date, true)
		r.syncSignups(ctx, run, date, date)
	case "instagram":
		r.syncInstagramDate(ctx, run, date)
	case "all":
		r.syncShopifyDate(ctx, run, date)
		for _, p := range domain.AdPlatforms {
			r.syncAdDate(ctx, run, p, date)
		}
		r.syncKlaviyoDate(ctx, run, date, true)
		r.syncSignups(ctx, run, date, date)
		r.syncInstagramDate(ctx, run, date)
	default:
		p := domain.Platform(platform)
		if !p.Valid() {
			return fmt.Errorf("unknown platform %q", platform)
		}
		r.syncAdDate(ctx, run, p, date)
	}
	return nil
}

// dateRange expands an inclusive [start, end] range into ascending dates.
func dateRange(start, end string) ([]string, error) {
	from, err := time.Parse(domain.DateFormat, start)
	if err != nil {
		return nil, fmt.Errorf("parsing start date %q: %w", start, err)
	}
	to, err := time.Parse(domain.DateFormat, end)
	if err != nil {
		return nil, fmt.Errorf("parsing end date %q: %w", end, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("end date %s precedes start date %s", end, start)
	}

	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(domain.DateFormat))
	}
	return dates, nil
}
