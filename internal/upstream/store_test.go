// Package upstream_test provides unit tests for the read-only store over the
// tables the feature pipeline writes.
package upstream_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/upstream"
)

func setupStoreMock(t *testing.T) (*upstream.GormStore, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	cleanup := func() {
		mock.ExpectClose()
		sqlDB.Close()
	}
	return upstream.NewGormStore(gormDB), mock, cleanup
}

func TestGormStore_GetCompletionStatus(t *testing.T) {
	store, mock, cleanup := setupStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"pipeline_date", "completed", "completed_at"}).
		AddRow("2026-01-15", true, nil)
	mock.ExpectQuery(`SELECT .* FROM "upstream_completions" WHERE pipeline_date =`).
		WillReturnRows(rows)

	complete, err := store.GetCompletionStatus(context.Background(), "2026-01-15")
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestGormStore_GetCompletionStatus_MissingRowMeansNotComplete(t *testing.T) {
	store, mock, cleanup := setupStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT .* FROM "upstream_completions" WHERE pipeline_date =`).
		WillReturnError(gorm.ErrRecordNotFound)

	complete, err := store.GetCompletionStatus(context.Background(), "2026-01-15")
	require.NoError(t, err)
	assert.False(t, complete)
}

func TestGormStore_GetQualityMetrics(t *testing.T) {
	store, mock, cleanup := setupStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"row_count", "mean_quality", "min_quality"}).
		AddRow(420, 81.5, 64.0)
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS row_count, COALESCE\(AVG\(quality_score\), 0\) AS mean_quality`).
		WillReturnRows(rows)

	metrics, err := store.GetQualityMetrics(context.Background(), "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, 420, metrics.RowCount)
	assert.Equal(t, 81.5, metrics.MeanQuality)
	assert.Equal(t, 64.0, metrics.MinQuality)
}

func TestGormStore_LoadFeatures(t *testing.T) {
	store, mock, cleanup := setupStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"player_id", "game_date", "features", "quality_score"}).
		AddRow("player-1", "2026-01-15", `{"season_avg_points": 24.5, "l5_avg_points": 27.2}`, 88.0)
	mock.ExpectQuery(`SELECT .* FROM "player_features" WHERE player_id = .* AND game_date =`).
		WillReturnRows(rows)

	features, err := store.LoadFeatures(context.Background(), "player-1", "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, 24.5, features.Get("season_avg_points", 0))
	assert.Equal(t, 27.2, features.Get("l5_avg_points", 0))
}

func TestGormStore_LoadFeatures_MissingRow(t *testing.T) {
	store, mock, cleanup := setupStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT .* FROM "player_features"`).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := store.LoadFeatures(context.Background(), "player-1", "2026-01-15")
	assert.ErrorIs(t, err, exception.ErrFeaturesNotFound)
}

func TestGormStore_LoadFeatures_CorruptVectorIsFatal(t *testing.T) {
	store, mock, cleanup := setupStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"player_id", "game_date", "features", "quality_score"}).
		AddRow("player-1", "2026-01-15", `{not json`, 88.0)
	mock.ExpectQuery(`SELECT .* FROM "player_features"`).
		WillReturnRows(rows)

	_, err := store.LoadFeatures(context.Background(), "player-1", "2026-01-15")
	require.Error(t, err)
	assert.False(t, exception.IsTemporary(err))
}

func TestGormStore_LoadHistory(t *testing.T) {
	store, mock, cleanup := setupStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"player_id", "game_date", "opponent", "home", "minutes", "points"}).
		AddRow("player-1", "2026-01-13", "BOS", true, 34.5, 28).
		AddRow("player-1", "2026-01-11", "MIA", false, 31.0, 22)
	mock.ExpectQuery(`SELECT .* FROM "player_games" WHERE player_id = .* AND game_date <`).
		WillReturnRows(rows)

	history, err := store.LoadHistory(context.Background(), "player-1", "2026-01-15", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2026-01-13", history[0].GameDate)
	assert.Equal(t, 28.0, history[0].Points)
	assert.True(t, history[0].Home)
}

func TestGormStore_LoadHistory_DriverErrorIsRetryable(t *testing.T) {
	store, mock, cleanup := setupStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT .* FROM "player_games"`).
		WillReturnError(errors.New("connection reset"))

	_, err := store.LoadHistory(context.Background(), "player-1", "2026-01-15", 10)
	require.Error(t, err)
	assert.True(t, exception.IsTemporary(err))
}

func TestGormStore_ActivePlayers(t *testing.T) {
	store, mock, cleanup := setupStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"player_id"}).
		AddRow("player-1").
		AddRow("player-2")
	mock.ExpectQuery(`SELECT "player_id" FROM "player_features" WHERE game_date =`).
		WillReturnRows(rows)

	players, err := store.ActivePlayers(context.Background(), "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, []string{"player-1", "player-2"}, players)
}

func TestGormStore_BookLine(t *testing.T) {
	store, mock, cleanup := setupStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"player_id", "game_date", "line", "source"}).
		AddRow("player-1", "2026-01-15", 25.5, "book-a")
	mock.ExpectQuery(`SELECT .* FROM "book_lines"`).
		WillReturnRows(rows)

	line, ok, err := store.BookLine(context.Background(), "player-1", "2026-01-15")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 25.5, line)
}

func TestGormStore_BookLine_Missing(t *testing.T) {
	store, mock, cleanup := setupStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT .* FROM "book_lines"`).
		WillReturnError(gorm.ErrRecordNotFound)

	_, ok, err := store.BookLine(context.Background(), "player-1", "2026-01-15")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGormStore_HistoricalAverage(t *testing.T) {
	store, mock, cleanup := setupStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"player_id", "game_date", "opponent", "home", "minutes", "points"}).
		AddRow("player-1", "2026-01-13", "BOS", true, 34.5, 30).
		AddRow("player-1", "2026-01-11", "MIA", false, 31.0, 24).
		AddRow("player-1", "2026-01-09", "NYK", true, 29.5, 18)
	mock.ExpectQuery(`SELECT .* FROM "player_games"`).
		WillReturnRows(rows)

	avg, err := store.HistoricalAverage(context.Background(), "player-1", "2026-01-15")
	require.NoError(t, err)
	assert.InDelta(t, 24.0, avg, 1e-9)
}

func TestGormStore_HistoricalAverage_NoGames(t *testing.T) {
	store, mock, cleanup := setupStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT .* FROM "player_games"`).
		WillReturnRows(sqlmock.NewRows([]string{"player_id", "game_date", "opponent", "home", "minutes", "points"}))

	_, err := store.HistoricalAverage(context.Background(), "player-1", "2026-01-15")
	assert.ErrorIs(t, err, exception.ErrHistoryUnavailable)
}
