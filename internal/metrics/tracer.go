package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
)

// Tracer abstracts distributed tracing for batch and item spans.
type Tracer interface {
	// StartBatchSpan starts a span covering one batch run.
	StartBatchSpan(ctx context.Context, batchID, targetDate string) (context.Context, func())
	// StartItemSpan starts a span covering one work item.
	StartItemSpan(ctx context.Context, batchID, playerID string) (context.Context, func())
	// RecordError records an error on the current span.
	RecordError(ctx context.Context, module string, err error)
	// RecordEvent records an event with attributes on the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]string)
}

// NoopTracer discards all spans and events.
type NoopTracer struct{}

// NewNoopTracer creates a Tracer that discards everything.
func NewNoopTracer() Tracer {
	return &NoopTracer{}
}

func (NoopTracer) StartBatchSpan(ctx context.Context, _, _ string) (context.Context, func()) {
	return ctx, func() {}
}

func (NoopTracer) StartItemSpan(ctx context.Context, _, _ string) (context.Context, func()) {
	return ctx, func() {}
}

func (NoopTracer) RecordError(context.Context, string, error)             {}
func (NoopTracer) RecordEvent(context.Context, string, map[string]string) {}

// OpenTelemetryTracer is an OTLP-exporting implementation of Tracer.
type OpenTelemetryTracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewOpenTelemetryTracer creates a Tracer exporting spans over OTLP/gRPC
// to the given endpoint. The returned shutdown function flushes pending
// spans and must be called before process exit.
func NewOpenTelemetryTracer(ctx context.Context, endpoint, serviceName string) (*OpenTelemetryTracer, func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Infof("Tracing: OpenTelemetry tracer initialized (endpoint: %s).", endpoint)

	t := &OpenTelemetryTracer{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
	}
	return t, provider.Shutdown, nil
}

// StartBatchSpan starts a span covering one batch run.
func (t *OpenTelemetryTracer) StartBatchSpan(ctx context.Context, batchID, targetDate string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "props.batch",
		trace.WithAttributes(
			attribute.String("batch.id", batchID),
			attribute.String("batch.target_date", targetDate),
		))
	return ctx, func() { span.End() }
}

// StartItemSpan starts a span covering one work item.
func (t *OpenTelemetryTracer) StartItemSpan(ctx context.Context, batchID, playerID string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "props.item",
		trace.WithAttributes(
			attribute.String("batch.id", batchID),
			attribute.String("item.player_id", playerID),
		))
	return ctx, func() { span.End() }
}

// RecordError records an error on the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event with attributes on the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

var (
	_ Tracer = (*NoopTracer)(nil)
	_ Tracer = (*OpenTelemetryTracer)(nil)
)
