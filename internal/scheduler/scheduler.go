// Package scheduler hosts the in-process daily trigger: a cron entry in the
// configured timezone that runs the coordinator for the current date with
// the job-level retry tier applied.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/coordinator"
	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
)

// Scheduler owns the cron instance and the run trigger.
type Scheduler struct {
	coordinator *coordinator.Coordinator
	cron        *cron.Cron
	location    *time.Location
	spec        string
}

// New creates a Scheduler in the configured timezone. An unknown timezone
// is a configuration error.
func New(co *coordinator.Coordinator, cfg config.SystemConfig, schedCfg config.SchedulerConfig) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, exception.NewFatalError("scheduler", "invalid timezone "+cfg.Timezone, err)
	}
	return &Scheduler{
		coordinator: co,
		cron:        cron.New(cron.WithLocation(loc)),
		location:    loc,
		spec:        schedCfg.Cron,
	}, nil
}

// Start registers the daily trigger and starts the cron loop. The trigger
// runs the pipeline for the date it fires on, in the scheduling timezone.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		targetDate := time.Now().In(s.location).Format("2006-01-02")
		logger.Infof("Scheduler: trigger fired for %s.", targetDate)

		if _, err := s.coordinator.RunWithRetry(ctx, targetDate); err != nil {
			logger.Errorf("Scheduler: run for %s failed: %v", targetDate, err)
		}
	})
	if err != nil {
		return exception.NewFatalError("scheduler", "invalid cron spec "+s.spec, err)
	}

	s.cron.Start()
	logger.Infof("Scheduler: started with spec %q in %s.", s.spec, s.location)
	return nil
}

// Stop stops the cron loop and waits for a running trigger to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	logger.Infof("Scheduler: stopped.")
}
