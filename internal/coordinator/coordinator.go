// Package coordinator sequences one day's batch run: hold at the dependency
// gate, dispatch the batch, then track it to a terminal status. The
// scheduler (or the CLI) owns the job-level retry tier around Run.
package coordinator

import (
	"context"
	"time"

	"github.com/najicham/nba-stats-scraper-sub021/internal/dispatch"
	"github.com/najicham/nba-stats-scraper-sub021/internal/gate"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
	"github.com/najicham/nba-stats-scraper-sub021/internal/metrics"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
	"github.com/najicham/nba-stats-scraper-sub021/internal/repository"
	"github.com/najicham/nba-stats-scraper-sub021/internal/retry"
	"github.com/najicham/nba-stats-scraper-sub021/internal/tracker"
)

// Job-level retry: two extra attempts with a fixed spacing. This tier
// re-runs the whole pipeline; the finer-grained tiers live inside it.
const (
	jobAttempts       = 3
	jobBackoffSeconds = 60
)

// Coordinator runs the daily pipeline for one target date.
type Coordinator struct {
	gate       *gate.Gate
	dispatcher *dispatch.Dispatcher
	tracker    *tracker.Tracker
	batches    repository.BatchRepository
	tracer     metrics.Tracer
}

// New creates a Coordinator.
func New(g *gate.Gate, d *dispatch.Dispatcher, t *tracker.Tracker, batches repository.BatchRepository, tracer metrics.Tracer) *Coordinator {
	return &Coordinator{gate: g, dispatcher: d, tracker: t, batches: batches, tracer: tracer}
}

// Run executes one pipeline pass: gate, dispatch, track. It returns the
// terminal batch, or nil when the slate was empty. A live batch already
// dispatched for the date (a retried run, or a restart) is resumed rather
// than dispatched again.
func (c *Coordinator) Run(ctx context.Context, targetDate string) (*model.Batch, error) {
	if existing, err := c.batches.FindLatestBatchByDate(ctx, targetDate); err == nil &&
		existing != nil && !existing.Status.IsTerminal() && existing.Status != model.BatchStatusPending {
		logger.Infof("Coordinator: resuming live batch '%s' for %s (%s).",
			existing.ID, targetDate, existing.Status)
		return c.tracker.Track(ctx, existing)
	}

	if err := c.gate.WaitForUpstream(ctx, targetDate); err != nil {
		return nil, err
	}

	batch, err := c.dispatcher.Dispatch(ctx, targetDate)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}

	ctx, endSpan := c.tracer.StartBatchSpan(ctx, batch.ID, targetDate)
	defer endSpan()

	return c.tracker.Track(ctx, batch)
}

// RunWithRetry wraps Run in the job-level retry tier. Re-runs resume a
// live batch instead of dispatching a second one, so the tier is safe to
// apply around the whole pipeline.
func (c *Coordinator) RunWithRetry(ctx context.Context, targetDate string) (*model.Batch, error) {
	policy := retry.NewSchedulePolicy(jobAttempts, []time.Duration{jobBackoffSeconds * time.Second})

	var batch *model.Batch
	err := policy.Do(ctx, "daily-batch", func(ctx context.Context) error {
		var runErr error
		batch, runErr = c.Run(ctx, targetDate)
		return runErr
	})
	if err != nil {
		logger.Errorf("Coordinator: run for %s failed after retries: %v", targetDate, err)
		return nil, err
	}
	return batch, nil
}
