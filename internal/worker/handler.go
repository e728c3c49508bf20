// Package worker implements the stateless prediction worker: a handler that
// turns one work item into persisted prediction records and a completion
// event, and a consume pool that drives handlers from the work queue with
// message-level redelivery.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
	"github.com/najicham/nba-stats-scraper-sub021/internal/metrics"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
	"github.com/najicham/nba-stats-scraper-sub021/internal/predict"
	"github.com/najicham/nba-stats-scraper-sub021/internal/queue"
	"github.com/najicham/nba-stats-scraper-sub021/internal/repository"
	"github.com/najicham/nba-stats-scraper-sub021/internal/retry"
	"github.com/najicham/nba-stats-scraper-sub021/internal/upstream"
)

// Handler processes one work item end to end. It holds no per-item state;
// every invocation is independent and idempotent, so redeliveries of the
// same item are harmless.
type Handler struct {
	features    upstream.FeatureClient
	history     upstream.HistoryClient
	registry    *predict.Registry
	aggregator  *predict.Aggregator
	predictions repository.PredictionRepository
	queue       queue.Queue
	breakers    *retry.BreakerSet
	adapterTry  retry.RetryPolicy
	recorder    metrics.Recorder
	tracer      metrics.Tracer
	instanceID  string
}

// NewHandler creates a Handler.
func NewHandler(
	features upstream.FeatureClient,
	history upstream.HistoryClient,
	registry *predict.Registry,
	aggregator *predict.Aggregator,
	predictions repository.PredictionRepository,
	q queue.Queue,
	breakers *retry.BreakerSet,
	adapterTry retry.RetryPolicy,
	recorder metrics.Recorder,
	tracer metrics.Tracer,
	instanceID string,
) *Handler {
	return &Handler{
		features:    features,
		history:     history,
		registry:    registry,
		aggregator:  aggregator,
		predictions: predictions,
		queue:       q,
		breakers:    breakers,
		adapterTry:  adapterTry,
		recorder:    recorder,
		tracer:      tracer,
		instanceID:  instanceID,
	}
}

// Handle processes one work item: load inputs, run every registered system
// per line variant inside the per-adapter failure boundary, aggregate the
// ensemble, persist all records in one batched write and emit the
// completion event. A nil return means the item is fully accounted for; a
// retryable error asks the consume loop for a redelivery; a fatal error
// dead-letters the item.
func (h *Handler) Handle(ctx context.Context, item model.WorkItem) error {
	ctx, endSpan := h.tracer.StartItemSpan(ctx, item.BatchID, item.PlayerID)
	defer endSpan()

	features, err := h.features.LoadFeatures(ctx, item.PlayerID, item.TargetDate)
	if err != nil {
		if errors.Is(err, exception.ErrFeaturesNotFound) {
			// Without features nothing can run; deterministic, so no
			// redelivery.
			return exception.NewFatalError("worker",
				fmt.Sprintf("no features for player %s on %s", item.PlayerID, item.TargetDate), err)
		}
		return exception.NewRetryableError("worker", "failed to load features", err)
	}

	// History is loaded once and shared across all systems, and only when at
	// least one registered system declares the requirement.
	var history []model.GameLog
	var histErr error
	if h.registry.AnyRequiresHistory() {
		history, histErr = h.history.LoadHistory(ctx, item.PlayerID, item.TargetDate, 0)
		if histErr != nil {
			// History-requiring systems that cannot degrade are precondition-
			// skipped below; everything else proceeds without history.
			logger.Warnf("Worker: history unavailable for %s on %s, degrading: %v",
				item.PlayerID, item.TargetDate, histErr)
			history = nil
		}
	}

	records := make([]model.PredictionRecord, 0, len(item.LineValues)*(h.registry.Size()+1))
	now := time.Now().UTC()

	for _, line := range item.LineValues {
		in := predict.Input{
			PlayerID:   item.PlayerID,
			TargetDate: item.TargetDate,
			Line:       line,
			Features:   features,
			History:    history,
		}

		outcomes := h.runSystems(ctx, in, histErr != nil)
		for _, o := range outcomes {
			if !o.OK {
				continue
			}
			conf := o.NormalizedConfidence()
			records = append(records, model.PredictionRecord{
				PlayerID:             item.PlayerID,
				GameDate:             item.TargetDate,
				LineValue:            line,
				SystemID:             o.Spec.SystemID,
				PredictedValue:       o.Result.Value,
				ConfidenceNormalized: conf,
				Recommendation:       h.aggregator.Recommend(o.Result.Value, line, conf),
				CreatedAt:            now,
			})
		}

		ensemble, err := h.aggregator.Aggregate(line, outcomes)
		if err != nil {
			if errors.Is(err, exception.ErrInsufficientSystems) {
				logger.Warnf("Worker: ensemble skipped for %s line %.1f: %v", item.PlayerID, line, err)
				continue
			}
			return err
		}
		records = append(records, model.PredictionRecord{
			PlayerID:             item.PlayerID,
			GameDate:             item.TargetDate,
			LineValue:            line,
			SystemID:             predict.SystemEnsemble,
			PredictedValue:       ensemble.Value,
			ConfidenceNormalized: ensemble.Confidence,
			Recommendation:       ensemble.Recommendation,
			IsEnsemble:           true,
			CreatedAt:            now,
		})
	}

	if len(records) == 0 {
		// Every system failed on every line. Deterministic retries won't
		// help; account the item as failed so the batch can still close.
		return h.emitCompletion(ctx, item, 0, true, "all prediction systems failed")
	}

	if err := h.predictions.SavePredictions(ctx, records); err != nil {
		return exception.NewRetryableError("worker", "failed to persist prediction records", err)
	}

	return h.emitCompletion(ctx, item, len(records), false, "")
}

// runSystems invokes every registered adapter for one input inside the
// per-adapter failure boundary: circuit breaker, bounded retry and panic
// recovery. One outcome per adapter, in registry order.
func (h *Handler) runSystems(ctx context.Context, in predict.Input, historyMissing bool) []predict.Outcome {
	adapters := h.registry.Adapters()
	outcomes := make([]predict.Outcome, 0, len(adapters))

	for _, adapter := range adapters {
		spec := adapter.Spec()

		if historyMissing && spec.RequiresInput(model.RequiresHistory) && !spec.CanRunWithoutHistory {
			outcomes = append(outcomes, predict.FailedOutcome(spec, "precondition: history unavailable"))
			h.recorder.RecordSystemCall(spec.SystemID, false)
			continue
		}

		breaker := h.breakers.For(spec.SystemID)
		if !breaker.Allow() {
			outcomes = append(outcomes, predict.FailedOutcome(spec, exception.ErrCircuitOpen.Error()))
			h.recorder.RecordCircuitOpen(spec.SystemID)
			continue
		}

		res, err := h.callAdapter(ctx, adapter, in)
		if err != nil {
			breaker.OnFailure()
			h.recorder.RecordSystemCall(spec.SystemID, false)
			h.tracer.RecordError(ctx, spec.SystemID, err)
			outcomes = append(outcomes, predict.FailedOutcome(spec, exception.ExtractErrorMessage(err)))
			continue
		}
		breaker.OnSuccess()
		h.recorder.RecordSystemCall(spec.SystemID, true)
		outcomes = append(outcomes, predict.SuccessOutcome(spec, res))
	}
	return outcomes
}

// callAdapter runs one adapter call under the adapter retry policy, turning
// panics into ordinary failures at this boundary.
func (h *Handler) callAdapter(ctx context.Context, adapter predict.Adapter, in predict.Input) (predict.Result, error) {
	spec := adapter.Spec()
	var res predict.Result

	attempt := 0
	err := h.adapterTry.Do(ctx, spec.SystemID, func(ctx context.Context) (opErr error) {
		defer func() {
			if r := recover(); r != nil {
				opErr = exception.NewFatalError(spec.SystemID, fmt.Sprintf("panic in prediction system: %v", r), nil)
			}
		}()
		attempt++
		if attempt > 1 {
			h.recorder.RecordSystemRetry(spec.SystemID)
		}
		var callErr error
		res, callErr = adapter.Predict(ctx, in)
		if callErr != nil {
			// Adapter failures are worth the configured retries regardless
			// of their shape; the tier is bounded and short.
			return exception.NewRetryableError(spec.SystemID, "prediction failed", callErr)
		}
		return nil
	})
	return res, err
}

// emitCompletion publishes the completion event for the item.
func (h *Handler) emitCompletion(ctx context.Context, item model.WorkItem, generated int, failed bool, reason string) error {
	event := model.CompletionEvent{
		BatchID:              item.BatchID,
		PlayerID:             item.PlayerID,
		PredictionsGenerated: generated,
		Failed:               failed,
		Reason:               reason,
		WorkerInstanceID:     h.instanceID,
		EmittedAt:            time.Now().UTC(),
	}
	if err := h.queue.PublishCompletion(ctx, event); err != nil {
		return exception.NewRetryableError("worker", "failed to publish completion event", err)
	}
	return nil
}
