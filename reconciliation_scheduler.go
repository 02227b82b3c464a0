package main

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/models"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"bitbucket.org/meridianassets/invest_backend/workflow"
	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReconciliationScheduler runs the reconciliation engine on a timer for each
// configured source. One run per source per tick; a slow run never overlaps
// the next one thanks to the per-scheduler mutex.
type ReconciliationScheduler struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Fetchers map[models.ReconciliationSource]workflow.SettledFetcher
	Interval time.Duration

	sched  gocron.Scheduler
	tickMu sync.Mutex
}

func NewReconciliationScheduler(db *gorm.DB, logger *logrus.Logger, fetchers map[models.ReconciliationSource]workflow.SettledFetcher) *ReconciliationScheduler {
	interval := 24 * time.Hour
	if v := strings.TrimSpace(os.Getenv("RECONCILIATION_INTERVAL_HOURS")); v != "" {
		if d, err := time.ParseDuration(v + "h"); err == nil && d > 0 {
			interval = d
		}
	}
	return &ReconciliationScheduler{
		DB:       db,
		Logger:   logger,
		Fetchers: fetchers,
		Interval: interval,
	}
}

func (s *ReconciliationScheduler) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	s.sched = sched
	_, err = sched.NewJob(
		gocron.DurationJob(s.Interval),
		gocron.NewTask(func() {
			s.runAll(context.Background(), "scheduler")
		}),
	)
	if err != nil {
		return err
	}
	sched.Start()
	return nil
}

func (s *ReconciliationScheduler) Stop() {
	if s.sched != nil {
		_ = s.sched.Shutdown()
	}
}

// TriggerNow runs every configured source immediately, outside the schedule.
func (s *ReconciliationScheduler) TriggerNow(ctx context.Context, triggeredBy string) {
	s.runAll(ctx, triggeredBy)
}

func (s *ReconciliationScheduler) runAll(ctx context.Context, triggeredBy string) {
	if !s.tickMu.TryLock() {
		return
	}
	defer s.tickMu.Unlock()

	for source, fetcher := range s.Fetchers {
		run, err := workflow.RunReconciliation(ctx, s.DB, source, fetcher, triggeredBy)
		if err != nil {
			// A source outage already marked the run FAILED; the next tick
			// retries it. Anything else is our own failure.
			if utils.IsTransientExternal(err) {
				s.Logger.WithFields(logrus.Fields{
					"module": "reconciliation_scheduler.go",
					"source": source,
				}).Warn("external source unavailable; reconciliation run marked failed: " + err.Error())
			} else {
				config.LogError(s.Logger, "reconciliation_scheduler.go", "runAll", string(source), nil, err)
			}
			continue
		}
		s.Logger.WithFields(logrus.Fields{
			"module":         "reconciliation_scheduler.go",
			"run_id":         run.ID,
			"source":         run.Source,
			"status":         run.Status,
			"matched_count":  run.MatchedCount,
			"mismatch_count": run.MismatchCount,
		}).Info("reconciliation run finished")
	}
}
