// Package gate_test provides unit tests for the dependency gate's
// two-stage readiness check and poll loop.
package gate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/gate"
	"github.com/najicham/nba-stats-scraper-sub021/internal/upstream"
)

// fakeReadiness is a scriptable ReadinessClient. Each call to
// GetQualityMetrics pops the next scripted result.
type fakeReadiness struct {
	complete    bool
	completeErr error
	metrics     []upstream.QualityMetrics
	metricsErr  error
	calls       int
}

func (f *fakeReadiness) GetCompletionStatus(ctx context.Context, date string) (bool, error) {
	return f.complete, f.completeErr
}

func (f *fakeReadiness) GetQualityMetrics(ctx context.Context, date string) (upstream.QualityMetrics, error) {
	if f.metricsErr != nil {
		return upstream.QualityMetrics{}, f.metricsErr
	}
	m := f.metrics[f.calls]
	if f.calls < len(f.metrics)-1 {
		f.calls++
	}
	return m, nil
}

func gateConfig() config.GateConfig {
	return config.GateConfig{
		TimeoutMinutes:      15,
		PollIntervalSeconds: 60,
		MinRowCount:         400,
		MeanQualityFloor:    70,
		MinQualityFloor:     60,
	}
}

func TestGate_Check_CompletionStageFails(t *testing.T) {
	readiness := &fakeReadiness{complete: false}
	g := gate.New(readiness, gateConfig())

	err := g.Check(context.Background(), "2026-01-15")
	require.Error(t, err)

	var notReady *gate.NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, gate.StageCompletion, notReady.Stage)
	assert.True(t, errors.Is(err, exception.ErrUpstreamNotReady))
}

func TestGate_Check_QualityFloorBlocksThenPasses(t *testing.T) {
	readiness := &fakeReadiness{
		complete: true,
		metrics: []upstream.QualityMetrics{
			{RowCount: 350, MeanQuality: 75, MinQuality: 65},
			{RowCount: 420, MeanQuality: 75, MinQuality: 65},
		},
	}
	g := gate.New(readiness, gateConfig())
	ctx := context.Background()

	// First check: completion log present but only 350 rows.
	err := g.Check(ctx, "2026-01-15")
	require.Error(t, err)
	var notReady *gate.NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, gate.StageQuality, notReady.Stage)
	assert.Contains(t, notReady.Reason, "row_count 350")
	assert.Equal(t, 350, notReady.Metrics.RowCount)

	// Second check: the late game finished loading, gate opens.
	err = g.Check(ctx, "2026-01-15")
	assert.NoError(t, err)
}

func TestGate_Check_MeanAndMinFloors(t *testing.T) {
	cases := []struct {
		name    string
		metrics upstream.QualityMetrics
		wantIn  string
	}{
		{"mean below floor", upstream.QualityMetrics{RowCount: 450, MeanQuality: 69.5, MinQuality: 65}, "mean_quality"},
		{"min below floor", upstream.QualityMetrics{RowCount: 450, MeanQuality: 80, MinQuality: 59.9}, "min_quality"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			readiness := &fakeReadiness{complete: true, metrics: []upstream.QualityMetrics{tc.metrics}}
			g := gate.New(readiness, gateConfig())

			err := g.Check(context.Background(), "2026-01-15")
			require.Error(t, err)
			var notReady *gate.NotReadyError
			require.ErrorAs(t, err, &notReady)
			assert.Contains(t, notReady.Reason, tc.wantIn)
		})
	}
}

func TestGate_WaitForUpstream_ReadyImmediately(t *testing.T) {
	readiness := &fakeReadiness{
		complete: true,
		metrics:  []upstream.QualityMetrics{{RowCount: 500, MeanQuality: 80, MinQuality: 70}},
	}
	g := gate.New(readiness, gateConfig())

	err := g.WaitForUpstream(context.Background(), "2026-01-15")
	assert.NoError(t, err)
}

func TestGate_WaitForUpstream_TimesOutWithoutDispatching(t *testing.T) {
	readiness := &fakeReadiness{complete: false}
	cfg := gateConfig()
	// Zero-minute timeout forces the deadline check to fire after the
	// first failed poll.
	cfg.TimeoutMinutes = 0
	g := gate.New(readiness, cfg)

	err := g.WaitForUpstream(context.Background(), "2026-01-15")
	require.Error(t, err)
	assert.True(t, exception.IsFatal(err))
	assert.Contains(t, err.Error(), "did not become ready")
}

func TestGate_WaitForUpstream_Cancelled(t *testing.T) {
	readiness := &fakeReadiness{completeErr: errors.New("connection refused")}
	cfg := gateConfig()
	cfg.PollIntervalSeconds = 1
	g := gate.New(readiness, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.WaitForUpstream(ctx, "2026-01-15")
	require.Error(t, err)
	assert.True(t, exception.IsFatal(err))
}
