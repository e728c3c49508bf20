// Package worker_test provides unit tests for the work item handler's
// failure boundaries and the consume pool's redelivery tiers.
package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/metrics"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
	"github.com/najicham/nba-stats-scraper-sub021/internal/predict"
	"github.com/najicham/nba-stats-scraper-sub021/internal/queue"
	"github.com/najicham/nba-stats-scraper-sub021/internal/retry"
	"github.com/najicham/nba-stats-scraper-sub021/internal/testsupport"
	"github.com/najicham/nba-stats-scraper-sub021/internal/worker"
)

// fakeFeatures serves a fixed feature map, or a scripted error.
type fakeFeatures struct {
	features model.FeatureMap
	err      error
}

func (f *fakeFeatures) LoadFeatures(ctx context.Context, playerID, date string) (model.FeatureMap, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.features, nil
}

// fakeHistory serves fixed history, or a scripted error.
type fakeHistory struct {
	games []model.GameLog
	err   error
	calls int
}

func (f *fakeHistory) LoadHistory(ctx context.Context, playerID, date string, window int) ([]model.GameLog, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.games, nil
}

// fakeSystem is a scriptable prediction adapter.
type fakeSystem struct {
	spec  model.SystemSpec
	value float64
	conf  float64
	err   error
	calls int
}

func (f *fakeSystem) Spec() model.SystemSpec { return f.spec }

func (f *fakeSystem) Predict(ctx context.Context, in predict.Input) (predict.Result, error) {
	f.calls++
	if f.err != nil {
		return predict.Result{}, f.err
	}
	return predict.Result{Value: f.value, Confidence: f.conf}, nil
}

func unitSpec(id string, needsHistory, degrades bool) model.SystemSpec {
	requires := []model.InputRequirement{model.RequiresFeatures}
	if needsHistory {
		requires = append(requires, model.RequiresHistory)
	}
	return model.SystemSpec{
		SystemID:             id,
		ConfidenceScale:      model.ScalePercent,
		Requires:             requires,
		CanRunWithoutHistory: degrades,
	}
}

func ensembleConfig() config.EnsembleConfig {
	return config.EnsembleConfig{
		Quorum:               2,
		LowVarianceThreshold: 4.0,
		HighConfidence:       85,
		LowConfidence:        60,
		StrongEdgePct:        5.0,
		EdgePct:              3.0,
		ConfidenceFloor:      70,
	}
}

type handlerEnv struct {
	repo  *testsupport.MemoryBatchRepository
	queue *queue.InMemoryQueue
}

func newHandler(t *testing.T, features *fakeFeatures, history *fakeHistory, systems ...predict.Adapter) (*worker.Handler, handlerEnv) {
	t.Helper()
	env := handlerEnv{
		repo:  testsupport.NewMemoryBatchRepository(),
		queue: queue.NewInMemoryQueue(),
	}
	h := worker.NewHandler(
		features,
		history,
		predict.NewRegistryWith(systems...),
		predict.NewAggregator(ensembleConfig()),
		env.repo,
		env.queue,
		retry.NewBreakerSet(5, time.Minute),
		retry.NewExponentialPolicy(3, time.Millisecond),
		metrics.NewNoopRecorder(),
		metrics.NewNoopTracer(),
		"worker-test-1",
	)
	return h, env
}

func workItem(lines ...float64) model.WorkItem {
	return model.WorkItem{
		BatchID:         "batch-1",
		PlayerID:        "stephen-curry",
		TargetDate:      "2026-01-15",
		LineValues:      lines,
		DeliveryAttempt: 1,
	}
}

func TestHandler_PersistsSystemsAndEnsemble(t *testing.T) {
	features := &fakeFeatures{features: model.FeatureMap{"season_avg_points": 27.0}}
	history := &fakeHistory{games: []model.GameLog{{Points: 30}}}
	h, env := newHandler(t, features, history,
		&fakeSystem{spec: unitSpec("sys-a", false, true), value: 28.0, conf: 80},
		&fakeSystem{spec: unitSpec("sys-b", true, false), value: 27.0, conf: 75},
	)

	err := h.Handle(context.Background(), workItem(25.5))
	require.NoError(t, err)

	// Two base systems plus the ensemble.
	records := env.repo.Records()
	assert.Len(t, records, 3)

	var sawEnsemble bool
	for _, rec := range records {
		if rec.IsEnsemble {
			sawEnsemble = true
			assert.Equal(t, predict.SystemEnsemble, rec.SystemID)
			assert.InDelta(t, 27.52, rec.PredictedValue, 0.01)
		}
	}
	assert.True(t, sawEnsemble)

	event, err := env.queue.DequeueCompletion(context.Background())
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.False(t, event.Failed)
	assert.Equal(t, 3, event.PredictionsGenerated)
	assert.Equal(t, "worker-test-1", event.WorkerInstanceID)
}

func TestHandler_GracefulDegradation(t *testing.T) {
	features := &fakeFeatures{features: model.FeatureMap{"season_avg_points": 27.0}}
	history := &fakeHistory{}
	failing := errors.New("model backend down")
	h, env := newHandler(t, features, history,
		&fakeSystem{spec: unitSpec("sys-a", false, true), err: failing},
		&fakeSystem{spec: unitSpec("sys-b", false, true), err: failing},
		&fakeSystem{spec: unitSpec("sys-c", false, true), err: failing},
		&fakeSystem{spec: unitSpec("sys-d", false, true), value: 24.0, conf: 70},
	)

	err := h.Handle(context.Background(), workItem(25.5))
	require.NoError(t, err)

	// The one healthy system persists; one success is below the ensemble
	// quorum so no ensemble record exists.
	records := env.repo.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "sys-d", records[0].SystemID)
	assert.False(t, records[0].IsEnsemble)

	event, err := env.queue.DequeueCompletion(context.Background())
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.False(t, event.Failed)
	assert.Equal(t, 1, event.PredictionsGenerated)
}

func TestHandler_PreconditionSkipsHistorySystems(t *testing.T) {
	features := &fakeFeatures{features: model.FeatureMap{"season_avg_points": 27.0}}
	history := &fakeHistory{err: errors.New("history store unreachable")}
	strict := &fakeSystem{spec: unitSpec("needs-history", true, false), value: 30.0, conf: 90}
	degradable := &fakeSystem{spec: unitSpec("degrades", true, true), value: 26.0, conf: 70}
	plain := &fakeSystem{spec: unitSpec("no-history", false, true), value: 25.0, conf: 75}
	h, env := newHandler(t, features, history, strict, degradable, plain)

	err := h.Handle(context.Background(), workItem(25.5))
	require.NoError(t, err)

	// The strict system must never be invoked when history failed to load.
	assert.Zero(t, strict.calls)
	assert.NotZero(t, degradable.calls)
	assert.NotZero(t, plain.calls)

	records := env.repo.Records()
	assert.Len(t, records, 3) // two base systems plus ensemble
}

func TestHandler_SkipsHistoryLoadWhenNoSystemRequiresIt(t *testing.T) {
	features := &fakeFeatures{features: model.FeatureMap{"season_avg_points": 27.0}}
	history := &fakeHistory{err: errors.New("history store unreachable")}
	h, env := newHandler(t, features, history,
		&fakeSystem{spec: unitSpec("sys-a", false, true), value: 28.0, conf: 80},
		&fakeSystem{spec: unitSpec("sys-b", false, true), value: 27.0, conf: 75},
	)

	err := h.Handle(context.Background(), workItem(25.5))
	require.NoError(t, err)

	// The shared history load is gated on the registry's declared needs.
	assert.Zero(t, history.calls)
	assert.Len(t, env.repo.Records(), 3)
}

func TestHandler_FeaturesNotFoundIsFatal(t *testing.T) {
	features := &fakeFeatures{err: exception.ErrFeaturesNotFound}
	h, env := newHandler(t, features, &fakeHistory{},
		&fakeSystem{spec: unitSpec("sys-a", false, true), value: 28.0, conf: 80},
	)

	err := h.Handle(context.Background(), workItem(25.5))
	require.Error(t, err)
	assert.True(t, exception.IsFatal(err))

	// No event: the consume pool owns failure accounting for fatal errors.
	event, qErr := env.queue.DequeueCompletion(context.Background())
	require.NoError(t, qErr)
	assert.Nil(t, event)
}

func TestHandler_AllSystemsFailedAccountsItemAsFailed(t *testing.T) {
	features := &fakeFeatures{features: model.FeatureMap{"season_avg_points": 27.0}}
	failing := errors.New("model backend down")
	h, env := newHandler(t, features, &fakeHistory{},
		&fakeSystem{spec: unitSpec("sys-a", false, true), err: failing},
		&fakeSystem{spec: unitSpec("sys-b", false, true), err: failing},
	)

	err := h.Handle(context.Background(), workItem(25.5))
	require.NoError(t, err)

	assert.Empty(t, env.repo.Records())

	event, err := env.queue.DequeueCompletion(context.Background())
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.True(t, event.Failed)
	assert.Zero(t, event.PredictionsGenerated)
	assert.Contains(t, event.Reason, "all prediction systems failed")
}

func TestHandler_RedeliveryIsIdempotent(t *testing.T) {
	features := &fakeFeatures{features: model.FeatureMap{"season_avg_points": 27.0}}
	h, env := newHandler(t, features, &fakeHistory{},
		&fakeSystem{spec: unitSpec("sys-a", false, true), value: 28.0, conf: 80},
		&fakeSystem{spec: unitSpec("sys-b", false, true), value: 27.0, conf: 75},
	)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, workItem(25.5)))
	first := len(env.repo.Records())

	// Second delivery of the same item writes nothing new.
	redelivered := workItem(25.5)
	redelivered.DeliveryAttempt = 2
	require.NoError(t, h.Handle(ctx, redelivered))
	assert.Equal(t, first, len(env.repo.Records()))
}

func TestHandler_PanicInAdapterIsContained(t *testing.T) {
	features := &fakeFeatures{features: model.FeatureMap{"season_avg_points": 27.0}}
	h, env := newHandler(t, features, &fakeHistory{},
		&panickingSystem{spec: unitSpec("panics", false, true)},
		&fakeSystem{spec: unitSpec("sys-a", false, true), value: 28.0, conf: 80},
		&fakeSystem{spec: unitSpec("sys-b", false, true), value: 27.0, conf: 75},
	)

	err := h.Handle(context.Background(), workItem(25.5))
	require.NoError(t, err)

	// The panic cost one system, not the item.
	records := env.repo.Records()
	assert.Len(t, records, 3)
}

type panickingSystem struct {
	spec model.SystemSpec
}

func (p *panickingSystem) Spec() model.SystemSpec { return p.spec }

func (p *panickingSystem) Predict(ctx context.Context, in predict.Input) (predict.Result, error) {
	panic("index out of range in model weights")
}

func TestPool_RequeuesThenDeadLettersRetryableFailures(t *testing.T) {
	// A retryable infrastructure failure on every delivery.
	features := &fakeFeatures{err: errors.New("connection refused")}
	h, env := newHandler(t, features, &fakeHistory{},
		&fakeSystem{spec: unitSpec("sys-a", false, true), value: 28.0, conf: 80},
	)

	pool := worker.NewPool(
		env.queue,
		h,
		metrics.NewNoopRecorder(),
		config.WorkerConfig{Concurrency: 1, MaxInstances: 10, TargetUtilization: 0.8},
		config.MessageRetryConfig{MaxAttempts: 3, BackoffSeconds: []int{0, 0}},
		"worker-test-1",
	)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, env.queue.PublishWork(ctx, workItem(25.5)))
	require.NoError(t, pool.Run(ctx))

	// Three deliveries, then the dead letter and the failed event.
	dead := env.queue.DeadLettered()
	require.Len(t, dead, 1)
	assert.Equal(t, 3, dead[0].Item.DeliveryAttempt)
	assert.Contains(t, dead[0].Reason, "deliveries exhausted")

	event, err := env.queue.DequeueCompletion(context.Background())
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.True(t, event.Failed)
}

func TestPool_DeadLettersFatalFailuresImmediately(t *testing.T) {
	features := &fakeFeatures{err: exception.ErrFeaturesNotFound}
	h, env := newHandler(t, features, &fakeHistory{},
		&fakeSystem{spec: unitSpec("sys-a", false, true), value: 28.0, conf: 80},
	)

	pool := worker.NewPool(
		env.queue,
		h,
		metrics.NewNoopRecorder(),
		config.WorkerConfig{Concurrency: 1, MaxInstances: 10, TargetUtilization: 0.8},
		config.MessageRetryConfig{MaxAttempts: 3, BackoffSeconds: []int{0, 0}},
		"worker-test-1",
	)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, env.queue.PublishWork(ctx, workItem(25.5)))
	require.NoError(t, pool.Run(ctx))

	dead := env.queue.DeadLettered()
	require.Len(t, dead, 1)
	assert.Equal(t, 1, dead[0].Item.DeliveryAttempt)
}
