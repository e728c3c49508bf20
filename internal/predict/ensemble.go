package predict

import (
	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

// EnsembleResult is the aggregated prediction for one line variant.
type EnsembleResult struct {
	Value          float64
	Confidence     float64
	Recommendation model.Recommendation
	SystemsUsed    int
}

// Aggregator combines base system outcomes into one ensemble result,
// enforcing the minimum-system quorum and normalizing every confidence to
// the canonical 0-100 scale before use.
type Aggregator struct {
	cfg config.EnsembleConfig
}

// NewAggregator creates an Aggregator with the given thresholds.
func NewAggregator(cfg config.EnsembleConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Aggregate combines the successful base outcomes for one line variant.
// Fewer successful systems than the quorum returns
// exception.ErrInsufficientSystems; the caller records the ensemble as
// absent and proceeds, this is not a processing failure.
func (a *Aggregator) Aggregate(line float64, outcomes []Outcome) (EnsembleResult, error) {
	ok := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK {
			ok = append(ok, o)
		}
	}
	if len(ok) < a.cfg.Quorum {
		return EnsembleResult{}, exception.ErrInsufficientSystems
	}

	// Confidence-weighted mean of the base point estimates.
	var weighted, weights float64
	for _, o := range ok {
		c := o.NormalizedConfidence()
		weighted += o.Result.Value * c
		weights += c
	}
	if weights == 0 {
		return EnsembleResult{}, exception.ErrInsufficientSystems
	}
	value := weighted / weights

	// Two-bucket confidence from base estimate disagreement. Coarse on
	// purpose; the thresholds are configuration, not tuned constants.
	confidence := a.cfg.LowConfidence
	if variance(ok) < a.cfg.LowVarianceThreshold {
		confidence = a.cfg.HighConfidence
	}

	return EnsembleResult{
		Value:          value,
		Confidence:     confidence,
		Recommendation: a.Recommend(value, line, confidence),
		SystemsUsed:    len(ok),
	}, nil
}

// Recommend derives a recommendation from the edge of a predicted value over
// its reference line, expressed as a percentage of the line, combined with
// the normalized confidence against the two threshold tiers.
func (a *Aggregator) Recommend(value, line, confidence float64) model.Recommendation {
	if line == 0 {
		return model.RecPass
	}
	edgePct := (value - line) / line * 100

	highConf := confidence >= a.cfg.HighConfidence
	moderateConf := confidence >= a.cfg.ConfidenceFloor

	switch {
	case edgePct >= a.cfg.StrongEdgePct && highConf:
		return model.RecStrongOver
	case edgePct >= a.cfg.EdgePct && moderateConf:
		return model.RecOver
	case edgePct <= -a.cfg.StrongEdgePct && highConf:
		return model.RecStrongUnder
	case edgePct <= -a.cfg.EdgePct && moderateConf:
		return model.RecUnder
	default:
		return model.RecPass
	}
}

// variance computes the population variance of the base point estimates.
func variance(outcomes []Outcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	var sum float64
	for _, o := range outcomes {
		sum += o.Result.Value
	}
	mean := sum / float64(len(outcomes))

	var sq float64
	for _, o := range outcomes {
		d := o.Result.Value - mean
		sq += d * d
	}
	return sq / float64(len(outcomes))
}
