// Package tracker implements the completion tracker: it consumes completion
// events, maintains the batch's durable counters through atomic conditional
// updates, closes the batch exactly once (COMPLETE when all items are
// accounted for, TIMED_OUT when the independent deadline fires first) and
// emits the downstream signal.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
	"github.com/najicham/nba-stats-scraper-sub021/internal/metrics"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
	"github.com/najicham/nba-stats-scraper-sub021/internal/notify"
	"github.com/najicham/nba-stats-scraper-sub021/internal/queue"
	"github.com/najicham/nba-stats-scraper-sub021/internal/repository"
)

// Tracker drives one batch from DISPATCHED to a terminal status.
type Tracker struct {
	batches  repository.BatchRepository
	queue    queue.Queue
	notifier notify.Notifier
	recorder metrics.Recorder
	cfg      config.TrackerConfig
}

// New creates a Tracker.
func New(
	batches repository.BatchRepository,
	q queue.Queue,
	notifier notify.Notifier,
	recorder metrics.Recorder,
	cfg config.TrackerConfig,
) *Tracker {
	return &Tracker{
		batches:  batches,
		queue:    q,
		notifier: notifier,
		recorder: recorder,
		cfg:      cfg,
	}
}

// Track consumes completion events until the batch reaches a terminal
// status or the deadline elapses, then emits the downstream signal exactly
// once and returns the terminal batch state. Events for other batches
// (late arrivals from a previous day) are still recorded; they can never
// reopen a terminal batch because the terminal transitions are one-way.
func (t *Tracker) Track(ctx context.Context, batch *model.Batch) (*model.Batch, error) {
	deadline := time.NewTimer(time.Duration(t.cfg.DeadlineMinutes) * time.Minute)
	defer deadline.Stop()

	logger.Infof("Tracker: tracking batch '%s' (%d items, deadline %dm).",
		batch.ID, batch.TotalItems, t.cfg.DeadlineMinutes)

	// A resumed batch may already be fully accounted for: the previous run
	// can stop between its last recorded completion and the terminal
	// transition, leaving the completion queue empty. Check before waiting
	// for events so such a batch closes immediately.
	done, err := t.batches.TryComplete(ctx, batch.ID)
	if err != nil {
		logger.Errorf("Tracker: completion check failed for '%s': %v", batch.ID, err)
	} else if done {
		return t.finalize(ctx, batch.ID, model.BatchStatusComplete, false)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, exception.NewFatalError("tracker", "tracking cancelled", ctx.Err())
		case <-deadline.C:
			return t.timeout(ctx, batch.ID)
		default:
		}

		event, err := t.queue.DequeueCompletion(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, exception.NewFatalError("tracker", "tracking cancelled", ctx.Err())
			}
			logger.Errorf("Tracker: dequeue failed, backing off: %v", err)
			select {
			case <-ctx.Done():
				return nil, exception.NewFatalError("tracker", "tracking cancelled", ctx.Err())
			case <-time.After(time.Second):
			}
			continue
		}
		if event == nil {
			continue
		}

		t.record(ctx, *event)

		if event.BatchID != batch.ID {
			continue
		}

		done, err := t.batches.TryComplete(ctx, batch.ID)
		if err != nil {
			logger.Errorf("Tracker: completion check failed for '%s': %v", batch.ID, err)
			continue
		}
		if done {
			return t.finalize(ctx, batch.ID, model.BatchStatusComplete, false)
		}
	}
}

// record applies one completion event to its batch's durable row: the
// first event moves the batch to PROCESSING, then the dedupe insert and
// conditional counter increment make redelivered events no-ops.
func (t *Tracker) record(ctx context.Context, event model.CompletionEvent) {
	moved, err := t.batches.TransitionStatus(ctx, event.BatchID,
		[]model.BatchStatus{model.BatchStatusDispatched}, model.BatchStatusProcessing)
	if err != nil {
		logger.Errorf("Tracker: processing transition failed for '%s': %v", event.BatchID, err)
	} else if moved {
		logger.Infof("Tracker: batch '%s' is PROCESSING (first completion seen).", event.BatchID)
	}

	counted, err := t.batches.RecordCompletion(ctx, event)
	if err != nil {
		logger.Errorf("Tracker: failed to record completion %s/%s: %v", event.BatchID, event.PlayerID, err)
		return
	}
	if !counted {
		logger.Debugf("Tracker: duplicate completion %s/%s ignored.", event.BatchID, event.PlayerID)
		return
	}
	if event.Failed {
		logger.Warnf("Tracker: item %s/%s failed: %s", event.BatchID, event.PlayerID, event.Reason)
	}
}

// timeout closes the batch as TIMED_OUT. Losing the conditional transition
// means a completion raced the deadline and already closed the batch; the
// signal for that path was already sent by the winner.
func (t *Tracker) timeout(ctx context.Context, batchID string) (*model.Batch, error) {
	logger.Warnf("Tracker: deadline elapsed for batch '%s'.", batchID)

	won, err := t.batches.TryTimeout(ctx, batchID)
	if err != nil {
		return nil, exception.NewRetryableError("tracker", "failed to time out batch", err)
	}
	if !won {
		return t.batches.GetBatch(ctx, batchID)
	}
	return t.finalize(ctx, batchID, model.BatchStatusTimedOut, true)
}

// finalize loads the terminal batch, emits the downstream signal and the
// operational alerts. It runs only on the goroutine that won the terminal
// transition, so the signal fires exactly once per batch.
func (t *Tracker) finalize(ctx context.Context, batchID string, status model.BatchStatus, degraded bool) (*model.Batch, error) {
	batch, err := t.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, exception.NewRetryableError("tracker", "failed to load terminal batch", err)
	}

	summary := model.Summarize(batch, degraded)
	t.notifier.NotifyBatchFinished(ctx, summary, status)
	t.recorder.RecordBatchFinished(summary, status)

	if summary.SuccessRate < t.cfg.SuccessRateFloor {
		t.notifier.NotifyAlert(ctx, "batch-success-rate",
			fmt.Sprintf("batch '%s' success rate %.1f%% below floor %.1f%% (%d/%d completed, %d failed)",
				batch.ID, summary.SuccessRate*100, t.cfg.SuccessRateFloor*100,
				batch.CompletedCount, batch.TotalItems, batch.FailedCount))
	}

	return batch, nil
}
