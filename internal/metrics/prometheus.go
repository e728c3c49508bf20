package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

// PrometheusRecorder is a Prometheus implementation of the Recorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Batch metrics
	batchTotal           *prometheus.CounterVec
	batchDurationSeconds *prometheus.HistogramVec
	batchSuccessRate     *prometheus.GaugeVec

	// Item metrics
	itemDurationSeconds *prometheus.HistogramVec

	// Prediction-system metrics
	systemCallsTotal   *prometheus.CounterVec
	systemRetriesTotal *prometheus.CounterVec
	circuitOpenTotal   *prometheus.CounterVec

	// Queue metrics
	queueDepth         prometheus.Gauge
	recommendedWorkers prometheus.Gauge
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		batchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "props_batch_total",
			Help: "Total number of prediction batches by terminal status.",
		}, []string{"status"}),
		batchDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "props_batch_duration_seconds",
			Help:    "Wall-clock duration of prediction batches.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}, []string{"status"}),
		batchSuccessRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "props_batch_success_rate",
			Help: "Success rate of the most recent batch per target date.",
		}, []string{"target_date"}),
		itemDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "props_item_duration_seconds",
			Help:    "Duration of individual work item processing.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		systemCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "props_system_calls_total",
			Help: "Total prediction system invocations by result.",
		}, []string{"system", "result"}),
		systemRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "props_system_retries_total",
			Help: "Total prediction system retries.",
		}, []string{"system"}),
		circuitOpenTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "props_circuit_open_total",
			Help: "Total calls suppressed by an open circuit breaker.",
		}, []string{"system"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "props_queue_depth",
			Help: "Observed work queue depth.",
		}),
		recommendedWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "props_recommended_workers",
			Help: "Worker instance count recommended for the observed queue depth.",
		}),
	}

	// Register all metrics with the registry.
	registry.MustRegister(r.batchTotal)
	registry.MustRegister(r.batchDurationSeconds)
	registry.MustRegister(r.batchSuccessRate)
	registry.MustRegister(r.itemDurationSeconds)
	registry.MustRegister(r.systemCallsTotal)
	registry.MustRegister(r.systemRetriesTotal)
	registry.MustRegister(r.circuitOpenTotal)
	registry.MustRegister(r.queueDepth)
	registry.MustRegister(r.recommendedWorkers)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordBatchCreated records a dispatched batch.
func (r *PrometheusRecorder) RecordBatchCreated(targetDate string, totalItems int) {
	logger.Debugf("Metrics: batch for %s created with %d items.", targetDate, totalItems)
}

// RecordBatchFinished records a terminal batch with its summary.
func (r *PrometheusRecorder) RecordBatchFinished(summary model.BatchSummary, status model.BatchStatus) {
	r.batchTotal.WithLabelValues(status.String()).Inc()
	r.batchDurationSeconds.WithLabelValues(status.String()).Observe(summary.DurationSeconds)
	r.batchSuccessRate.WithLabelValues(summary.TargetDate).Set(summary.SuccessRate)
	logger.Debugf("Metrics: batch '%s' finished with status %s. Duration: %.3fs",
		summary.BatchID, status, summary.DurationSeconds)
}

// RecordItemProcessed records one worker invocation.
func (r *PrometheusRecorder) RecordItemProcessed(duration time.Duration, outcome string) {
	r.itemDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordSystemCall records one prediction-system invocation result.
func (r *PrometheusRecorder) RecordSystemCall(systemID string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	r.systemCallsTotal.WithLabelValues(systemID, result).Inc()
}

// RecordSystemRetry records one adapter-level retry.
func (r *PrometheusRecorder) RecordSystemRetry(systemID string) {
	r.systemRetriesTotal.WithLabelValues(systemID).Inc()
}

// RecordCircuitOpen records a call suppressed by an open circuit.
func (r *PrometheusRecorder) RecordCircuitOpen(systemID string) {
	r.circuitOpenTotal.WithLabelValues(systemID).Inc()
}

// RecordQueueDepth records the observed work queue depth.
func (r *PrometheusRecorder) RecordQueueDepth(depth int64) {
	r.queueDepth.Set(float64(depth))
}

// RecordScaleRecommendation records the recommended instance count.
func (r *PrometheusRecorder) RecordScaleRecommendation(instances int) {
	r.recommendedWorkers.Set(float64(instances))
}

var _ Recorder = (*PrometheusRecorder)(nil)
