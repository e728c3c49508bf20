package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
)

// NewTracer selects the tracer implementation from configuration. When
// tracing is disabled it returns a no-op tracer; otherwise the OTLP
// exporter is created and its shutdown is hooked into the fx lifecycle.
func NewTracer(lc fx.Lifecycle, cfg *config.Config) (Tracer, error) {
	obs := cfg.Props.Observability
	if !obs.TracingEnabled {
		return NewNoopTracer(), nil
	}

	tracer, shutdown, err := NewOpenTelemetryTracer(context.Background(), obs.OTLPEndpoint, obs.ServiceName)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Infof("Tracing: flushing and shutting down OTLP exporter.")
			return shutdown(ctx)
		},
	})
	return tracer, nil
}

// Module is an Fx module that provides the PrometheusRecorder and the
// configured Tracer.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewPrometheusRecorder,
		fx.As(new(Recorder)),
	)),
	fx.Provide(NewTracer),
)
