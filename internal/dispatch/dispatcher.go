// Package dispatch implements the batch dispatcher: it snapshots the active
// player slate for a date, resolves prop lines per player, creates the
// durable batch record and publishes every work item atomically from the
// consumer's point of view (all items or no batch).
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
	"github.com/najicham/nba-stats-scraper-sub021/internal/metrics"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
	"github.com/najicham/nba-stats-scraper-sub021/internal/queue"
	"github.com/najicham/nba-stats-scraper-sub021/internal/repository"
	"github.com/najicham/nba-stats-scraper-sub021/internal/retry"
	"github.com/najicham/nba-stats-scraper-sub021/internal/upstream"
)

// publishRetryAttempts bounds per-item publish retries during dispatch.
// Publish failures are infrastructure trouble, not data trouble, so a short
// retry is enough before the batch is aborted.
const publishRetryAttempts = 3

// Dispatcher creates and publishes one batch per target date.
type Dispatcher struct {
	players  upstream.PlayerSource
	resolver *LineResolver
	batches  repository.BatchRepository
	queue    queue.Queue
	recorder metrics.Recorder
	mode     model.DispatchMode
	publish  retry.RetryPolicy
}

// New creates a Dispatcher.
func New(
	players upstream.PlayerSource,
	resolver *LineResolver,
	batches repository.BatchRepository,
	q queue.Queue,
	recorder metrics.Recorder,
	cfg config.DispatchConfig,
) *Dispatcher {
	mode := model.ModeSingle
	if cfg.Mode == string(model.ModeMulti) {
		mode = model.ModeMulti
	}
	return &Dispatcher{
		players:  players,
		resolver: resolver,
		batches:  batches,
		queue:    q,
		recorder: recorder,
		mode:     mode,
		publish:  retry.NewExponentialPolicy(publishRetryAttempts, 500*time.Millisecond),
	}
}

// Dispatch builds and publishes the batch for the target date. It returns
// the created batch in the DISPATCHED state, or nil with no error when the
// slate is empty. Publishing is all-or-nothing: if any item cannot be
// published after retries, the batch record is deleted and an error is
// returned so the day can be re-run from scratch.
func (d *Dispatcher) Dispatch(ctx context.Context, targetDate string) (*model.Batch, error) {
	players, err := d.players.ActivePlayers(ctx, targetDate)
	if err != nil {
		return nil, exception.NewRetryableError("dispatch", "failed to load active players", err)
	}
	if len(players) == 0 {
		logger.Infof("Dispatch: no active players for %s, nothing to do.", targetDate)
		return nil, nil
	}

	items, skipped, err := d.buildItems(ctx, targetDate, players)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		logger.Warnf("Dispatch: all %d players for %s skipped (no line source), nothing to do.",
			len(players), targetDate)
		return nil, nil
	}

	batch := model.NewBatch(targetDate, d.mode, len(items))
	for i := range items {
		items[i].BatchID = batch.ID
	}

	if err := d.batches.CreateBatch(ctx, batch); err != nil {
		return nil, exception.NewRetryableError("dispatch", "failed to create batch record", err)
	}

	logger.Infof("Dispatch: batch '%s' created for %s: %d items (%d players, %d skipped, mode %s).",
		batch.ID, targetDate, len(items), len(players), skipped, d.mode)

	if err := d.publishAll(ctx, batch, items); err != nil {
		// All-or-nothing: tear the batch down so a re-run starts clean.
		if delErr := d.batches.DeleteBatch(ctx, batch.ID); delErr != nil {
			logger.Errorf("Dispatch: failed to delete aborted batch '%s': %v", batch.ID, delErr)
			err = multierror.Append(err, delErr)
		}
		return nil, err
	}

	moved, err := d.batches.TransitionStatus(ctx, batch.ID,
		[]model.BatchStatus{model.BatchStatusPending}, model.BatchStatusDispatched)
	if err != nil {
		return nil, exception.NewRetryableError("dispatch", "failed to mark batch dispatched", err)
	}
	if !moved {
		return nil, exception.NewBatchErrorf("dispatch",
			"batch '%s' was not in PENDING when marking dispatched", batch.ID)
	}
	batch.Status = model.BatchStatusDispatched

	d.recorder.RecordBatchCreated(targetDate, len(items))
	return batch, nil
}

// buildItems resolves line values per player. Players with no line source
// (no book line and no history) are skipped rather than failing the batch;
// infrastructure errors abort dispatch.
func (d *Dispatcher) buildItems(ctx context.Context, targetDate string, players []string) ([]model.WorkItem, int, error) {
	items := make([]model.WorkItem, 0, len(players))
	skipped := 0

	for _, playerID := range players {
		lines, err := d.resolver.Resolve(ctx, playerID, targetDate, d.mode)
		if err != nil {
			if errors.Is(err, exception.ErrHistoryUnavailable) {
				logger.Warnf("Dispatch: skipping %s for %s: no book line and no history.", playerID, targetDate)
				skipped++
				continue
			}
			return nil, 0, err
		}
		items = append(items, model.WorkItem{
			PlayerID:        playerID,
			TargetDate:      targetDate,
			LineValues:      lines,
			DeliveryAttempt: 1,
		})
	}
	return items, skipped, nil
}

// publishAll publishes every item, retrying each publish. The first item
// that exhausts its retries aborts the whole dispatch.
func (d *Dispatcher) publishAll(ctx context.Context, batch *model.Batch, items []model.WorkItem) error {
	for i, item := range items {
		err := d.publish.Do(ctx, "publish-work", func(ctx context.Context) error {
			return d.queue.PublishWork(ctx, item)
		})
		if err != nil {
			return exception.NewBatchErrorf("dispatch",
				"failed to publish item %d/%d (player %s) for batch '%s': %v",
				i+1, len(items), item.PlayerID, batch.ID, err)
		}
	}
	return nil
}
