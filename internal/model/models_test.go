package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

func TestBatchStatus_Transitions(t *testing.T) {
	cases := []struct {
		from    model.BatchStatus
		to      model.BatchStatus
		allowed bool
	}{
		{model.BatchStatusPending, model.BatchStatusDispatched, true},
		{model.BatchStatusPending, model.BatchStatusProcessing, false},
		{model.BatchStatusPending, model.BatchStatusComplete, false},
		{model.BatchStatusDispatched, model.BatchStatusProcessing, true},
		{model.BatchStatusDispatched, model.BatchStatusComplete, true},
		{model.BatchStatusDispatched, model.BatchStatusTimedOut, true},
		{model.BatchStatusProcessing, model.BatchStatusComplete, true},
		{model.BatchStatusProcessing, model.BatchStatusTimedOut, true},
		{model.BatchStatusProcessing, model.BatchStatusDispatched, false},
		{model.BatchStatusComplete, model.BatchStatusProcessing, false},
		{model.BatchStatusComplete, model.BatchStatusTimedOut, false},
		{model.BatchStatusTimedOut, model.BatchStatusComplete, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestBatchStatus_IsTerminal(t *testing.T) {
	assert.False(t, model.BatchStatusPending.IsTerminal())
	assert.False(t, model.BatchStatusDispatched.IsTerminal())
	assert.False(t, model.BatchStatusProcessing.IsTerminal())
	assert.True(t, model.BatchStatusComplete.IsTerminal())
	assert.True(t, model.BatchStatusTimedOut.IsTerminal())
}

func TestNewBatch(t *testing.T) {
	b := model.NewBatch("2026-01-15", model.ModeSingle, 450)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "2026-01-15", b.TargetDate)
	assert.Equal(t, "SINGLE", b.Mode)
	assert.Equal(t, 450, b.TotalItems)
	assert.Equal(t, model.BatchStatusPending, b.Status)
	assert.False(t, b.CreatedAt.IsZero())

	// Each batch gets its own identifier.
	other := model.NewBatch("2026-01-15", model.ModeSingle, 450)
	assert.NotEqual(t, b.ID, other.ID)
}

func TestBatch_AccountedAndSuccessRate(t *testing.T) {
	b := &model.Batch{TotalItems: 450, CompletedCount: 447, FailedCount: 3}

	assert.Equal(t, 450, b.Accounted())
	assert.InDelta(t, 0.9933, b.SuccessRate(), 0.0001)

	empty := &model.Batch{}
	assert.Equal(t, 0.0, empty.SuccessRate())
}

func TestConfidenceScale_Normalize(t *testing.T) {
	assert.InDelta(t, 65.0, model.ScaleUnit.Normalize(0.65), 1e-9)
	assert.Equal(t, 65.0, model.ScalePercent.Normalize(65))
	assert.Equal(t, 0.0, model.ScaleUnit.Normalize(0))
}

func TestSystemSpec_RequiresInput(t *testing.T) {
	spec := model.SystemSpec{
		SystemID: "sys-a",
		Requires: []model.InputRequirement{model.RequiresFeatures, model.RequiresHistory},
	}

	assert.True(t, spec.RequiresInput(model.RequiresFeatures))
	assert.True(t, spec.RequiresInput(model.RequiresHistory))

	featuresOnly := model.SystemSpec{Requires: []model.InputRequirement{model.RequiresFeatures}}
	assert.False(t, featuresOnly.RequiresInput(model.RequiresHistory))
}

func TestFeatureMap_GetAndHas(t *testing.T) {
	f := model.FeatureMap{"season_avg_points": 24.5}

	assert.Equal(t, 24.5, f.Get("season_avg_points", 0))
	assert.Equal(t, 10.0, f.Get("missing", 10.0))
	assert.True(t, f.Has("season_avg_points"))
	assert.False(t, f.Has("missing"))
}

func TestSummarize(t *testing.T) {
	created := time.Date(2026, 1, 15, 11, 0, 0, 0, time.UTC)
	completed := created.Add(20 * time.Minute)
	b := &model.Batch{
		ID:             "batch-1",
		TargetDate:     "2026-01-15",
		TotalItems:     450,
		CompletedCount: 447,
		FailedCount:    3,
		Status:         model.BatchStatusComplete,
		CreatedAt:      created,
		CompletedAt:    &completed,
	}

	s := model.Summarize(b, false)
	assert.Equal(t, "batch-1", s.BatchID)
	assert.Equal(t, 450, s.Total)
	assert.Equal(t, 447, s.Completed)
	assert.Equal(t, 3, s.Failed)
	assert.InDelta(t, 0.9933, s.SuccessRate, 0.0001)
	assert.Equal(t, 1200.0, s.DurationSeconds)
	assert.False(t, s.Degraded)

	require.Contains(t, s.String(), "batch-1")
	require.Contains(t, s.String(), "447/450 completed")
}

func TestSummarize_DegradedWithoutCompletionTime(t *testing.T) {
	b := &model.Batch{
		ID:         "batch-2",
		TargetDate: "2026-01-15",
		TotalItems: 10,
		CreatedAt:  time.Now().UTC().Add(-time.Minute),
	}

	s := model.Summarize(b, true)
	assert.True(t, s.Degraded)
	assert.Greater(t, s.DurationSeconds, 0.0)
}
