// Package predict contains the prediction system adapters and the ensemble
// aggregator. Each adapter wraps one scoring model behind a uniform call
// contract and declares its confidence scale and required inputs, so the
// heterogeneity of the underlying systems stays isolated at this boundary.
package predict

import (
	"context"

	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

// Input is the uniform input handed to every adapter for one line variant.
// History may be nil when loading failed; the handler never invokes adapters
// that cannot run without it.
type Input struct {
	PlayerID   string
	TargetDate string
	Line       float64
	Features   model.FeatureMap
	History    []model.GameLog
}

// Result is the uniform output shape of one adapter call. Confidence is in
// the adapter's declared native scale.
type Result struct {
	Value      float64
	Confidence float64
}

// Adapter wraps one prediction system. Implementations must be stateless and
// safe for concurrent use; one registry instance is shared by all in-flight
// work items in a worker process.
type Adapter interface {
	// Spec returns the system's static declaration.
	Spec() model.SystemSpec
	// Predict produces a point estimate and native-scale confidence for the
	// given input. Failures are returned as errors, never panics; the caller
	// owns the failure boundary.
	Predict(ctx context.Context, in Input) (Result, error)
}

// Outcome is the explicit per-system result the worker records for each
// adapter invocation: either a value or a failure reason, never an exception
// crossing the component boundary.
type Outcome struct {
	Spec   model.SystemSpec
	OK     bool
	Result Result
	Reason string
}

// SuccessOutcome builds an OK outcome.
func SuccessOutcome(spec model.SystemSpec, res Result) Outcome {
	return Outcome{Spec: spec, OK: true, Result: res}
}

// FailedOutcome builds a failed outcome with a reason.
func FailedOutcome(spec model.SystemSpec, reason string) Outcome {
	return Outcome{Spec: spec, Reason: reason}
}

// NormalizedConfidence returns the outcome's confidence on the canonical
// 0-100 scale.
func (o Outcome) NormalizedConfidence() float64 {
	return o.Spec.ConfidenceScale.Normalize(o.Result.Confidence)
}
