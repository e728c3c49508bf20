// Package upstream defines the interfaces to the external collaborators the
// batch system consumes: the feature pipeline's readiness/quality surface,
// per-player feature vectors, recent game history and book lines. The gorm
// store reads the tables the upstream pipeline writes.
package upstream

import (
	"context"

	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

// QualityMetrics summarizes the upstream feature rows for one date.
type QualityMetrics struct {
	RowCount    int
	MeanQuality float64
	MinQuality  float64
}

// ReadinessClient is the upstream readiness interface the dependency gate
// checks: a cheap completion-log lookup and a thorough quality aggregate.
type ReadinessClient interface {
	// GetCompletionStatus reports whether upstream marked the date complete
	// in its own completion log.
	GetCompletionStatus(ctx context.Context, date string) (bool, error)
	// GetQualityMetrics aggregates the upstream data quality for the date.
	GetQualityMetrics(ctx context.Context, date string) (QualityMetrics, error)
}

// FeatureClient loads the precomputed feature vector for one player/date.
// A missing row returns exception.ErrFeaturesNotFound.
type FeatureClient interface {
	LoadFeatures(ctx context.Context, playerID, date string) (model.FeatureMap, error)
}

// HistoryClient loads a player's most recent games strictly before the date.
type HistoryClient interface {
	LoadHistory(ctx context.Context, playerID, date string, window int) ([]model.GameLog, error)
}

// PlayerSource enumerates the players with scheduled activity on a date.
type PlayerSource interface {
	ActivePlayers(ctx context.Context, date string) ([]string, error)
}

// LineProvider resolves prop lines: the authoritative book line when one
// exists, and the player's historical scoring average as the fallback input.
type LineProvider interface {
	// BookLine returns the external book line for the player/date and whether
	// one exists.
	BookLine(ctx context.Context, playerID, date string) (float64, bool, error)
	// HistoricalAverage returns the player's mean points over recent games
	// before the date.
	HistoricalAverage(ctx context.Context, playerID, date string) (float64, error)
}
