package worker

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/metrics"
	"github.com/najicham/nba-stats-scraper-sub021/internal/predict"
	"github.com/najicham/nba-stats-scraper-sub021/internal/queue"
	"github.com/najicham/nba-stats-scraper-sub021/internal/repository"
	"github.com/najicham/nba-stats-scraper-sub021/internal/retry"
	"github.com/najicham/nba-stats-scraper-sub021/internal/upstream"
)

// HandlerParams defines the dependencies NewHandlerFromConfig receives from Fx.
type HandlerParams struct {
	fx.In

	Features    upstream.FeatureClient
	History     upstream.HistoryClient
	Registry    *predict.Registry
	Aggregator  *predict.Aggregator
	Predictions repository.PredictionRepository
	Queue       queue.Queue
	Recorder    metrics.Recorder
	Tracer      metrics.Tracer
	Config      *config.Config
	InstanceID  string `name:"workerInstanceID"`
}

// NewHandlerFromConfig wires a Handler with its breaker set and adapter
// retry policy built from configuration.
func NewHandlerFromConfig(p HandlerParams) *Handler {
	adapterCfg := p.Config.Props.Retry.Adapter
	breakerCfg := p.Config.Props.Retry.CircuitBreaker

	return NewHandler(
		p.Features,
		p.History,
		p.Registry,
		p.Aggregator,
		p.Predictions,
		p.Queue,
		retry.NewBreakerSet(breakerCfg.Threshold, time.Duration(breakerCfg.ResetIntervalMs)*time.Millisecond),
		retry.NewExponentialPolicy(adapterCfg.MaxAttempts, time.Duration(adapterCfg.InitialIntervalMs)*time.Millisecond),
		p.Recorder,
		p.Tracer,
		p.InstanceID,
	)
}

// PoolParams defines the dependencies the pool provider receives from Fx.
type PoolParams struct {
	fx.In

	Queue      queue.Queue
	Handler    *Handler
	Recorder   metrics.Recorder
	Config     *config.Config
	InstanceID string `name:"workerInstanceID"`
}

// Module provides the worker handler and consume pool, sharing one
// per-process instance id between them.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		func() string { return uuid.New().String() },
		fx.ResultTags(`name:"workerInstanceID"`),
	)),
	fx.Provide(NewHandlerFromConfig),
	fx.Provide(func(p PoolParams) *Pool {
		return NewPool(p.Queue, p.Handler, p.Recorder, p.Config.Props.Worker, p.Config.Props.Retry.Message, p.InstanceID)
	}),
)
