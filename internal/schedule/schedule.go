// Package schedule runs the recurring latest-mode sync in-process, so a
// deployment needs no external cron service.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/emberline/commerce-pulse/internal/pkg/logger"
	"github.com/emberline/commerce-pulse/internal/syncer"
)

// runTimeout bounds one scheduled pass across every platform.
const runTimeout = 10 * time.Minute

// Invalidator drops cached metrics documents after new rows land.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Scheduler owns the cron loop that triggers sync runs.
type Scheduler struct {
	cron   *cron.Cron
	runner *syncer.Runner
	cache  Invalidator
}

// New builds a scheduler that runs the latest-mode sync on the given cron
// spec (standard 5-field format). cache may be nil.
func New(runner *syncer.Runner, cache Invalidator, spec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{}))),
		runner: runner,
		cache:  cache,
	}

	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		report := s.runner.SyncLatest(ctx)
		if s.cache != nil {
			s.cache.Invalidate(ctx)
		}
		logger.Info("scheduled sync completed", "run_id", report.RunID, "units", len(report.Results))
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins firing scheduled runs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger routes cron's recovery output into the structured logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) { logger.Info("cron: "+msg, kv...) }

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	logger.Error("cron: "+msg, append(kv, "error", err.Error())...)
}
