package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

const moduleName = "upstream"

// historyWindow is the default number of recent games loaded per player.
const historyWindow = 10

// upstreamCompletion mirrors the upstream pipeline's completion log.
type upstreamCompletion struct {
	PipelineDate string     `gorm:"column:pipeline_date;primaryKey"`
	Completed    bool       `gorm:"column:completed"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
}

func (upstreamCompletion) TableName() string { return "upstream_completions" }

// playerFeature is one upstream feature row: a JSON feature vector plus the
// pipeline's own quality score for the row.
type playerFeature struct {
	PlayerID     string    `gorm:"column:player_id;primaryKey"`
	GameDate     string    `gorm:"column:game_date;primaryKey"`
	Features     string    `gorm:"column:features"`
	QualityScore float64   `gorm:"column:quality_score"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (playerFeature) TableName() string { return "player_features" }

// playerGame is one row of the upstream game log.
type playerGame struct {
	PlayerID string  `gorm:"column:player_id;primaryKey"`
	GameDate string  `gorm:"column:game_date;primaryKey"`
	Opponent string  `gorm:"column:opponent"`
	Home     bool    `gorm:"column:home"`
	Minutes  float64 `gorm:"column:minutes"`
	Points   float64 `gorm:"column:points"`
}

func (playerGame) TableName() string { return "player_games" }

// bookLine is one external book line row.
type bookLine struct {
	PlayerID string  `gorm:"column:player_id;primaryKey"`
	GameDate string  `gorm:"column:game_date;primaryKey"`
	Line     float64 `gorm:"column:line"`
	Source   string  `gorm:"column:source"`
}

func (bookLine) TableName() string { return "book_lines" }

// GormStore implements every upstream interface against the tables the
// feature pipeline writes. All methods are read-only.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store bound to the given gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// GetCompletionStatus reports whether upstream marked the date complete.
func (s *GormStore) GetCompletionStatus(ctx context.Context, date string) (bool, error) {
	var row upstreamCompletion
	err := s.db.WithContext(ctx).Where("pipeline_date = ?", date).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, exception.NewBatchError(moduleName, "failed to read upstream completion log", err, false, true)
	}
	return row.Completed, nil
}

// GetQualityMetrics aggregates the feature rows for the date.
func (s *GormStore) GetQualityMetrics(ctx context.Context, date string) (QualityMetrics, error) {
	var agg struct {
		RowCount    int
		MeanQuality float64
		MinQuality  float64
	}
	err := s.db.WithContext(ctx).
		Model(&playerFeature{}).
		Select("COUNT(*) AS row_count, COALESCE(AVG(quality_score), 0) AS mean_quality, COALESCE(MIN(quality_score), 0) AS min_quality").
		Where("game_date = ?", date).
		Scan(&agg).Error
	if err != nil {
		return QualityMetrics{}, exception.NewBatchError(moduleName, "failed to aggregate upstream quality metrics", err, false, true)
	}
	return QualityMetrics{
		RowCount:    agg.RowCount,
		MeanQuality: agg.MeanQuality,
		MinQuality:  agg.MinQuality,
	}, nil
}

// LoadFeatures loads and decodes the feature vector for one player/date.
func (s *GormStore) LoadFeatures(ctx context.Context, playerID, date string) (model.FeatureMap, error) {
	var row playerFeature
	err := s.db.WithContext(ctx).
		Where("player_id = ? AND game_date = ?", playerID, date).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, exception.ErrFeaturesNotFound
		}
		return nil, exception.NewBatchError(moduleName, "failed to load features", err, false, true)
	}

	features := model.FeatureMap{}
	if err := json.Unmarshal([]byte(row.Features), &features); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to decode feature vector", err, false, false)
	}
	return features, nil
}

// LoadHistory loads the player's most recent games strictly before the date.
func (s *GormStore) LoadHistory(ctx context.Context, playerID, date string, window int) ([]model.GameLog, error) {
	if window <= 0 {
		window = historyWindow
	}

	var rows []playerGame
	err := s.db.WithContext(ctx).
		Where("player_id = ? AND game_date < ?", playerID, date).
		Order("game_date DESC").
		Limit(window).
		Find(&rows).Error
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load game history", err, false, true)
	}

	history := make([]model.GameLog, 0, len(rows))
	for _, g := range rows {
		history = append(history, model.GameLog{
			PlayerID: g.PlayerID,
			GameDate: g.GameDate,
			Opponent: g.Opponent,
			Home:     g.Home,
			Minutes:  g.Minutes,
			Points:   g.Points,
		})
	}
	return history, nil
}

// ActivePlayers enumerates players with a feature row for the date. Upstream
// only computes features for players with scheduled activity, so the feature
// table doubles as the day's roster.
func (s *GormStore) ActivePlayers(ctx context.Context, date string) ([]string, error) {
	var players []string
	err := s.db.WithContext(ctx).
		Model(&playerFeature{}).
		Where("game_date = ?", date).
		Order("player_id").
		Pluck("player_id", &players).Error
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to enumerate active players", err, false, true)
	}
	return players, nil
}

// BookLine returns the external book line for the player/date, if any.
func (s *GormStore) BookLine(ctx context.Context, playerID, date string) (float64, bool, error) {
	var row bookLine
	err := s.db.WithContext(ctx).
		Where("player_id = ? AND game_date = ?", playerID, date).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, exception.NewBatchError(moduleName, "failed to load book line", err, false, true)
	}
	return row.Line, true, nil
}

// HistoricalAverage returns the player's mean points over recent games.
func (s *GormStore) HistoricalAverage(ctx context.Context, playerID, date string) (float64, error) {
	history, err := s.LoadHistory(ctx, playerID, date, historyWindow)
	if err != nil {
		return 0, err
	}
	if len(history) == 0 {
		return 0, exception.ErrHistoryUnavailable
	}

	var sum float64
	for _, g := range history {
		sum += g.Points
	}
	return sum / float64(len(history)), nil
}

// Verify interfaces.
var (
	_ ReadinessClient = (*GormStore)(nil)
	_ FeatureClient   = (*GormStore)(nil)
	_ HistoryClient   = (*GormStore)(nil)
	_ PlayerSource    = (*GormStore)(nil)
	_ LineProvider    = (*GormStore)(nil)
)
