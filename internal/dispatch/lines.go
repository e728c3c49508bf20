package dispatch

import (
	"context"
	"errors"
	"math"

	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
	"github.com/najicham/nba-stats-scraper-sub021/internal/upstream"
)

// multiSpread is the number of unit steps expanded on each side of the base
// line in MULTI mode, yielding 2*multiSpread+1 variants.
const multiSpread = 2

// LineResolver resolves the prop line variants for one player/date using
// the three-step resolution order: authoritative book line, historical
// scoring average, then mode-dependent expansion.
type LineResolver struct {
	lines upstream.LineProvider
}

// NewLineResolver creates a LineResolver backed by the given provider.
func NewLineResolver(lines upstream.LineProvider) *LineResolver {
	return &LineResolver{lines: lines}
}

// Resolve returns the line values to dispatch for the player. In SINGLE
// mode it returns one value; in MULTI mode it returns the base and its
// unit-step offsets. A player with neither a book line nor history returns
// exception.ErrHistoryUnavailable and is skipped by the dispatcher.
func (r *LineResolver) Resolve(ctx context.Context, playerID, date string, mode model.DispatchMode) ([]float64, error) {
	base, err := r.baseLine(ctx, playerID, date)
	if err != nil {
		return nil, err
	}

	if mode == model.ModeMulti {
		return expand(base), nil
	}
	return []float64{base}, nil
}

// baseLine applies the two-step fallback: book line when one exists, else
// the historical average rounded to the nearest half unit to match book
// line granularity.
func (r *LineResolver) baseLine(ctx context.Context, playerID, date string) (float64, error) {
	line, ok, err := r.lines.BookLine(ctx, playerID, date)
	if err != nil {
		return 0, exception.NewRetryableError("dispatch", "failed to look up book line", err)
	}
	if ok {
		return line, nil
	}

	avg, err := r.lines.HistoricalAverage(ctx, playerID, date)
	if err != nil {
		if errors.Is(err, exception.ErrHistoryUnavailable) {
			return 0, err
		}
		return 0, exception.NewRetryableError("dispatch", "failed to compute historical average", err)
	}

	fallback := roundToHalf(avg)
	logger.Debugf("Dispatch: no book line for %s on %s, falling back to avg %.1f.", playerID, date, fallback)
	return fallback, nil
}

// expand produces the MULTI-mode variants: the base line plus whole-unit
// offsets out to multiSpread on each side, ascending.
func expand(base float64) []float64 {
	values := make([]float64, 0, 2*multiSpread+1)
	for offset := -multiSpread; offset <= multiSpread; offset++ {
		values = append(values, roundToTenth(base+float64(offset)))
	}
	return values
}

// roundToHalf rounds to the nearest 0.5.
func roundToHalf(v float64) float64 {
	return math.Round(v*2) / 2
}

// roundToTenth rounds to one decimal place, keeping stored line values
// stable across float arithmetic.
func roundToTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
