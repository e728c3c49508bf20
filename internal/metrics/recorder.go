// Package metrics provides the metric recording and tracing abstractions
// used across the batch system, with Prometheus and OpenTelemetry
// implementations plus no-op defaults.
package metrics

import (
	"time"

	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

// Item outcomes recorded per processed work item.
const (
	OutcomeOK        = "ok"
	OutcomeRetryable = "retryable"
	OutcomeFatal     = "fatal"
)

// Recorder records batch, item and prediction-system metrics.
// Implementations must be safe for concurrent use.
type Recorder interface {
	// RecordBatchCreated records a dispatched batch and its size.
	RecordBatchCreated(targetDate string, totalItems int)
	// RecordBatchFinished records a terminal batch with its summary.
	RecordBatchFinished(summary model.BatchSummary, status model.BatchStatus)
	// RecordItemProcessed records one worker invocation.
	RecordItemProcessed(duration time.Duration, outcome string)
	// RecordSystemCall records one prediction-system invocation result.
	RecordSystemCall(systemID string, success bool)
	// RecordSystemRetry records one adapter-level retry.
	RecordSystemRetry(systemID string)
	// RecordCircuitOpen records a call suppressed by an open circuit.
	RecordCircuitOpen(systemID string)
	// RecordQueueDepth records the observed work queue depth.
	RecordQueueDepth(depth int64)
	// RecordScaleRecommendation records the instance count the platform
	// formula would choose for the observed depth.
	RecordScaleRecommendation(instances int)
}

// NoopRecorder discards all metrics.
type NoopRecorder struct{}

// NewNoopRecorder creates a Recorder that discards everything.
func NewNoopRecorder() Recorder {
	return &NoopRecorder{}
}

func (NoopRecorder) RecordBatchCreated(string, int)                            {}
func (NoopRecorder) RecordBatchFinished(model.BatchSummary, model.BatchStatus) {}
func (NoopRecorder) RecordItemProcessed(time.Duration, string)                 {}
func (NoopRecorder) RecordSystemCall(string, bool)                             {}
func (NoopRecorder) RecordSystemRetry(string)                                  {}
func (NoopRecorder) RecordCircuitOpen(string)                                  {}
func (NoopRecorder) RecordQueueDepth(int64)                                    {}
func (NoopRecorder) RecordScaleRecommendation(int)                             {}

// Verify interface.
var _ Recorder = (*NoopRecorder)(nil)
