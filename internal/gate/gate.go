// Package gate implements the dependency gate that holds batch dispatch
// until the upstream feature pipeline is both complete and of sufficient
// quality for the target date.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
	"github.com/najicham/nba-stats-scraper-sub021/internal/upstream"
)

// Readiness stage names reported by NotReadyError.
const (
	StageCompletion = "completion"
	StageQuality    = "quality"
)

// NotReadyError reports which readiness stage failed and why. It is
// retryable: the poll loop re-checks until the gate timeout elapses.
type NotReadyError struct {
	Date    string
	Stage   string
	Reason  string
	Metrics upstream.QualityMetrics
}

// Error implements the error interface.
func (e *NotReadyError) Error() string {
	return fmt.Sprintf("upstream not ready for %s (stage: %s): %s", e.Date, e.Stage, e.Reason)
}

// Unwrap allows errors.Is checks against exception.ErrUpstreamNotReady.
func (e *NotReadyError) Unwrap() error {
	return exception.ErrUpstreamNotReady
}

// Gate performs the two-stage readiness check against the upstream
// pipeline and exposes a bounded poll loop around it.
type Gate struct {
	readiness upstream.ReadinessClient
	cfg       config.GateConfig
}

// New creates a Gate with the given readiness client and configuration.
func New(readiness upstream.ReadinessClient, cfg config.GateConfig) *Gate {
	return &Gate{readiness: readiness, cfg: cfg}
}

// Check runs the two-stage readiness check once. Stage one is a cheap
// completion-log lookup; stage two aggregates data quality and enforces
// the configured floors. Both stages must pass before any work item is
// published. A failed stage returns a *NotReadyError.
func (g *Gate) Check(ctx context.Context, date string) error {
	complete, err := g.readiness.GetCompletionStatus(ctx, date)
	if err != nil {
		return exception.NewRetryableError("gate", "failed to read upstream completion log", err)
	}
	if !complete {
		return &NotReadyError{
			Date:   date,
			Stage:  StageCompletion,
			Reason: "upstream has not logged completion for the date",
		}
	}

	metrics, err := g.readiness.GetQualityMetrics(ctx, date)
	if err != nil {
		return exception.NewRetryableError("gate", "failed to aggregate upstream quality", err)
	}

	if metrics.RowCount < g.cfg.MinRowCount {
		return &NotReadyError{
			Date:    date,
			Stage:   StageQuality,
			Reason:  fmt.Sprintf("row_count %d below floor %d", metrics.RowCount, g.cfg.MinRowCount),
			Metrics: metrics,
		}
	}
	if metrics.MeanQuality < g.cfg.MeanQualityFloor {
		return &NotReadyError{
			Date:    date,
			Stage:   StageQuality,
			Reason:  fmt.Sprintf("mean_quality %.2f below floor %.2f", metrics.MeanQuality, g.cfg.MeanQualityFloor),
			Metrics: metrics,
		}
	}
	if metrics.MinQuality < g.cfg.MinQualityFloor {
		return &NotReadyError{
			Date:    date,
			Stage:   StageQuality,
			Reason:  fmt.Sprintf("min_quality %.2f below floor %.2f", metrics.MinQuality, g.cfg.MinQualityFloor),
			Metrics: metrics,
		}
	}

	logger.Infof("Gate: upstream ready for %s (rows: %d, mean: %.1f, min: %.1f).",
		date, metrics.RowCount, metrics.MeanQuality, metrics.MinQuality)
	return nil
}

// WaitForUpstream polls Check at the configured interval until the gate
// opens, the configured timeout elapses, or ctx is cancelled. On timeout
// it returns the last NotReadyError wrapped in a fatal BatchError so the
// run aborts without dispatching.
func (g *Gate) WaitForUpstream(ctx context.Context, date string) error {
	timeout := time.Duration(g.cfg.TimeoutMinutes) * time.Minute
	interval := time.Duration(g.cfg.PollIntervalSeconds) * time.Second

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		lastErr = g.Check(ctx, date)
		if lastErr == nil {
			return nil
		}
		if _, notReady := lastErr.(*NotReadyError); !notReady && exception.IsFatal(lastErr) {
			return lastErr
		}
		logger.Warnf("Gate: not ready for %s, re-checking in %s: %v", date, interval, lastErr)

		if time.Now().Add(interval).After(deadline) {
			return exception.NewBatchErrorf("gate",
				"upstream did not become ready for %s within %s: %v", date, timeout, lastErr)
		}
		select {
		case <-ctx.Done():
			return exception.NewFatalError("gate", "gate wait cancelled", ctx.Err())
		case <-ticker.C:
		}
	}
}
