package testsupport

import (
	"context"
	"sync"

	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
	"github.com/najicham/nba-stats-scraper-sub021/internal/upstream"
)

// MemoryUpstream is a scriptable in-memory implementation of every upstream
// interface, for tests that wire several components together.
type MemoryUpstream struct {
	mu sync.Mutex

	Complete bool
	Quality  upstream.QualityMetrics
	Players  []string
	Features map[string]model.FeatureMap // keyed by player id
	History  map[string][]model.GameLog  // keyed by player id
	Lines    map[string]float64          // book lines keyed by player id
	Averages map[string]float64          // historical averages keyed by player id
}

// ReadyQuality returns quality metrics comfortably above every default
// gate floor.
func ReadyQuality() upstream.QualityMetrics {
	return upstream.QualityMetrics{RowCount: 500, MeanQuality: 82, MinQuality: 68}
}

// NewMemoryUpstream creates an empty upstream fake.
func NewMemoryUpstream() *MemoryUpstream {
	return &MemoryUpstream{
		Features: make(map[string]model.FeatureMap),
		History:  make(map[string][]model.GameLog),
		Lines:    make(map[string]float64),
		Averages: make(map[string]float64),
	}
}

func (u *MemoryUpstream) GetCompletionStatus(ctx context.Context, date string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.Complete, nil
}

func (u *MemoryUpstream) GetQualityMetrics(ctx context.Context, date string) (upstream.QualityMetrics, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.Quality, nil
}

func (u *MemoryUpstream) ActivePlayers(ctx context.Context, date string) ([]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.Players...), nil
}

func (u *MemoryUpstream) LoadFeatures(ctx context.Context, playerID, date string) (model.FeatureMap, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	f, ok := u.Features[playerID]
	if !ok {
		return nil, exception.ErrFeaturesNotFound
	}
	return f, nil
}

func (u *MemoryUpstream) LoadHistory(ctx context.Context, playerID, date string, window int) ([]model.GameLog, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]model.GameLog(nil), u.History[playerID]...), nil
}

func (u *MemoryUpstream) BookLine(ctx context.Context, playerID, date string) (float64, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	line, ok := u.Lines[playerID]
	return line, ok, nil
}

func (u *MemoryUpstream) HistoricalAverage(ctx context.Context, playerID, date string) (float64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	avg, ok := u.Averages[playerID]
	if !ok {
		return 0, exception.ErrHistoryUnavailable
	}
	return avg, nil
}

// Verify interfaces.
var (
	_ upstream.ReadinessClient = (*MemoryUpstream)(nil)
	_ upstream.FeatureClient   = (*MemoryUpstream)(nil)
	_ upstream.HistoryClient   = (*MemoryUpstream)(nil)
	_ upstream.PlayerSource    = (*MemoryUpstream)(nil)
	_ upstream.LineProvider    = (*MemoryUpstream)(nil)
)
