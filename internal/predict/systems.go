package predict

import (
	"context"
	"math"
	"sort"

	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

// Feature keys produced by the upstream feature pipeline.
const (
	FeatureSeasonAvgPoints = "season_avg_points"
	FeatureAvgPointsLast5  = "avg_points_last_5"
	FeatureAvgPointsLast10 = "avg_points_last_10"
	FeatureGamesPlayed     = "games_played"
	FeatureAvgMinutes      = "avg_minutes"
	FeatureOppDefRating    = "opp_def_rating"
	FeatureRestDays        = "rest_days"
	FeatureIsHome          = "is_home"
)

// System identifiers of the registered base systems.
const (
	SystemMovingAverage = "moving_average"
	SystemZoneMatchup   = "zone_matchup"
	SystemSimilarity    = "similarity"
	SystemRestProfile   = "rest_profile"
	SystemEnsemble      = "ensemble"
)

// leagueAvgDefRating anchors the matchup adjustment. Defensive ratings above
// it depress the estimate, below it inflate it.
const leagueAvgDefRating = 112.0

// movingAverageSystem blends recency-weighted scoring averages from the
// feature vector. It reports confidence on the PERCENT scale, scaled by how
// much of the season the player has actually played.
type movingAverageSystem struct{}

func (s *movingAverageSystem) Spec() model.SystemSpec {
	return model.SystemSpec{
		SystemID:             SystemMovingAverage,
		ConfidenceScale:      model.ScalePercent,
		Requires:             []model.InputRequirement{model.RequiresFeatures},
		CanRunWithoutHistory: true,
	}
}

func (s *movingAverageSystem) Predict(ctx context.Context, in Input) (Result, error) {
	if !in.Features.Has(FeatureSeasonAvgPoints) {
		return Result{}, exception.NewBatchErrorf(SystemMovingAverage, "feature '%s' missing for player %s", FeatureSeasonAvgPoints, in.PlayerID)
	}

	season := in.Features.Get(FeatureSeasonAvgPoints, 0)
	last10 := in.Features.Get(FeatureAvgPointsLast10, season)
	last5 := in.Features.Get(FeatureAvgPointsLast5, last10)

	// Recency-weighted blend: recent form dominates, season average anchors.
	value := 0.5*last5 + 0.3*last10 + 0.2*season

	gamesPlayed := in.Features.Get(FeatureGamesPlayed, 0)
	confidence := 50 + math.Min(gamesPlayed, 40)
	if confidence > 90 {
		confidence = 90
	}

	return Result{Value: value, Confidence: confidence}, nil
}

// zoneMatchupSystem adjusts recent scoring by opponent defensive strength.
// It needs real game history and cannot run without it.
type zoneMatchupSystem struct{}

func (s *zoneMatchupSystem) Spec() model.SystemSpec {
	return model.SystemSpec{
		SystemID:        SystemZoneMatchup,
		ConfidenceScale: model.ScaleUnit,
		Requires: []model.InputRequirement{
			model.RequiresFeatures,
			model.RequiresHistory,
		},
		CanRunWithoutHistory: false,
	}
}

func (s *zoneMatchupSystem) Predict(ctx context.Context, in Input) (Result, error) {
	if len(in.History) == 0 {
		return Result{}, exception.NewBatchErrorf(SystemZoneMatchup, "no game history for player %s", in.PlayerID)
	}

	base := meanPoints(in.History)

	oppRating := in.Features.Get(FeatureOppDefRating, leagueAvgDefRating)
	// One rating point away from league average moves the estimate ~0.8%.
	adjustment := 1 + (leagueAvgDefRating-oppRating)*0.008
	value := base * adjustment

	// More history means a steadier baseline.
	confidence := 0.45 + math.Min(float64(len(in.History)), 10)*0.04

	return Result{Value: value, Confidence: confidence}, nil
}

// similaritySystem estimates from the games most similar to tonight's
// context (venue, minutes load). History helps but is optional; it degrades
// to the feature averages when history is unavailable.
type similaritySystem struct{}

func (s *similaritySystem) Spec() model.SystemSpec {
	return model.SystemSpec{
		SystemID:        SystemSimilarity,
		ConfidenceScale: model.ScaleUnit,
		Requires: []model.InputRequirement{
			model.RequiresFeatures,
			model.RequiresHistory,
		},
		CanRunWithoutHistory: true,
	}
}

func (s *similaritySystem) Predict(ctx context.Context, in Input) (Result, error) {
	if len(in.History) == 0 {
		// Degraded path: feature averages only, reduced confidence.
		if !in.Features.Has(FeatureAvgPointsLast10) && !in.Features.Has(FeatureSeasonAvgPoints) {
			return Result{}, exception.NewBatchErrorf(SystemSimilarity, "neither history nor scoring features available for player %s", in.PlayerID)
		}
		value := in.Features.Get(FeatureAvgPointsLast10, in.Features.Get(FeatureSeasonAvgPoints, 0))
		return Result{Value: value, Confidence: 0.40}, nil
	}

	home := in.Features.Get(FeatureIsHome, 0) >= 0.5
	avgMinutes := in.Features.Get(FeatureAvgMinutes, meanMinutes(in.History))

	type scored struct {
		similarity float64
		points     float64
	}
	games := make([]scored, 0, len(in.History))
	for _, g := range in.History {
		sim := 1.0
		if g.Home != home {
			sim *= 0.8
		}
		// Penalize games with a very different minutes load.
		if avgMinutes > 0 {
			sim *= 1 - math.Min(math.Abs(g.Minutes-avgMinutes)/avgMinutes, 0.5)
		}
		games = append(games, scored{similarity: sim, points: g.Points})
	}
	sort.Slice(games, func(i, j int) bool { return games[i].similarity > games[j].similarity })
	if len(games) > 8 {
		games = games[:8]
	}

	var weighted, weights float64
	for _, g := range games {
		weighted += g.points * g.similarity
		weights += g.similarity
	}
	if weights == 0 {
		return Result{}, exception.NewBatchErrorf(SystemSimilarity, "no comparable games for player %s", in.PlayerID)
	}

	confidence := 0.5 + math.Min(float64(len(games)), 8)*0.035
	return Result{Value: weighted / weights, Confidence: confidence}, nil
}

// restProfileSystem adjusts the season baseline for schedule fatigue:
// back-to-backs cost production, long rest adds a little.
type restProfileSystem struct{}

func (s *restProfileSystem) Spec() model.SystemSpec {
	return model.SystemSpec{
		SystemID:             SystemRestProfile,
		ConfidenceScale:      model.ScalePercent,
		Requires:             []model.InputRequirement{model.RequiresFeatures},
		CanRunWithoutHistory: true,
	}
}

func (s *restProfileSystem) Predict(ctx context.Context, in Input) (Result, error) {
	if !in.Features.Has(FeatureSeasonAvgPoints) {
		return Result{}, exception.NewBatchErrorf(SystemRestProfile, "feature '%s' missing for player %s", FeatureSeasonAvgPoints, in.PlayerID)
	}

	base := in.Features.Get(FeatureSeasonAvgPoints, 0)
	rest := in.Features.Get(FeatureRestDays, 1)

	factor := 1.0
	switch {
	case rest < 1:
		factor = 0.93 // back-to-back
	case rest >= 3:
		factor = 1.03
	}

	return Result{Value: base * factor, Confidence: 65}, nil
}

func meanPoints(history []model.GameLog) float64 {
	if len(history) == 0 {
		return 0
	}
	var sum float64
	for _, g := range history {
		sum += g.Points
	}
	return sum / float64(len(history))
}

func meanMinutes(history []model.GameLog) float64 {
	if len(history) == 0 {
		return 0
	}
	var sum float64
	for _, g := range history {
		sum += g.Minutes
	}
	return sum / float64(len(history))
}

// Verify interfaces.
var (
	_ Adapter = (*movingAverageSystem)(nil)
	_ Adapter = (*zoneMatchupSystem)(nil)
	_ Adapter = (*similaritySystem)(nil)
	_ Adapter = (*restProfileSystem)(nil)
)
