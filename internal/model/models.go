// Package model defines the shared data model for the prediction batch
// system: batches, work items, prediction system specs, prediction records
// and completion events.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the state of a prediction batch.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "PENDING"
	BatchStatusDispatched BatchStatus = "DISPATCHED"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusComplete   BatchStatus = "COMPLETE"
	BatchStatusTimedOut   BatchStatus = "TIMED_OUT"
)

// String returns the string representation of the BatchStatus.
func (s BatchStatus) String() string {
	return string(s)
}

// IsTerminal checks if the BatchStatus represents a terminal state.
// A terminal batch never transitions again; late completion events are
// recorded but do not reopen it.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusComplete || s == BatchStatusTimedOut
}

// validBatchTransitions enumerates the allowed status transitions.
var validBatchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusPending:    {BatchStatusDispatched},
	BatchStatusDispatched: {BatchStatusProcessing, BatchStatusComplete, BatchStatusTimedOut},
	BatchStatusProcessing: {BatchStatusComplete, BatchStatusTimedOut},
}

// CanTransitionTo reports whether a transition from s to next is allowed.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	for _, allowed := range validBatchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DispatchMode selects between single-line production dispatch and
// multi-line backtest dispatch.
type DispatchMode string

const (
	// ModeSingle emits one work item line value per player (production).
	ModeSingle DispatchMode = "SINGLE"
	// ModeMulti expands the base line into five values at unit-step offsets (backtest).
	ModeMulti DispatchMode = "MULTI"
)

// Batch represents one day's full set of player predictions, tracked as a
// unit to completion. The Completion Tracker owns all mutations; counters are
// only ever changed through atomic increments against the durable row.
type Batch struct {
	ID             string      `gorm:"column:id;primaryKey" json:"batch_id"`
	TargetDate     string      `gorm:"column:target_date;index" json:"target_date"`
	Mode           string      `gorm:"column:mode" json:"mode"`
	TotalItems     int         `gorm:"column:total_items" json:"total_items"`
	CompletedCount int         `gorm:"column:completed_count" json:"completed_count"`
	FailedCount    int         `gorm:"column:failed_count" json:"failed_count"`
	Status         BatchStatus `gorm:"column:status" json:"status"`
	CreatedAt      time.Time   `gorm:"column:created_at" json:"created_at"`
	CompletedAt    *time.Time  `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

// TableName returns the table name for the Batch entity.
func (Batch) TableName() string {
	return "batches"
}

// NewBatch creates a new Batch in the PENDING state for the given date.
func NewBatch(targetDate string, mode DispatchMode, totalItems int) *Batch {
	return &Batch{
		ID:         uuid.New().String(),
		TargetDate: targetDate,
		Mode:       string(mode),
		TotalItems: totalItems,
		Status:     BatchStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

// Accounted returns the number of work items accounted for so far.
func (b *Batch) Accounted() int {
	return b.CompletedCount + b.FailedCount
}

// SuccessRate returns the fraction of work items that completed successfully.
// It is 0 when nothing has been accounted for yet.
func (b *Batch) SuccessRate() float64 {
	if b.TotalItems == 0 {
		return 0
	}
	return float64(b.CompletedCount) / float64(b.TotalItems)
}

// WorkItem is the unit of dispatch: one player, one date, one or more line
// variants. It is created by the dispatcher, carried on the work queue, and
// consumed by exactly one successful worker invocation.
type WorkItem struct {
	BatchID         string    `json:"batch_id"`
	PlayerID        string    `json:"player_id"`
	TargetDate      string    `json:"target_date"`
	LineValues      []float64 `json:"line_values"`
	DeliveryAttempt int       `json:"delivery_attempt"`
}

// ConfidenceScale is the native numeric range a prediction system reports
// certainty in.
type ConfidenceScale string

const (
	// ScaleUnit means confidence is reported in [0, 1].
	ScaleUnit ConfidenceScale = "UNIT"
	// ScalePercent means confidence is reported in [0, 100].
	ScalePercent ConfidenceScale = "PERCENT"
)

// Normalize converts a native confidence value to the canonical 0-100 range.
// Normalizing an already-PERCENT value is a no-op.
func (s ConfidenceScale) Normalize(confidence float64) float64 {
	if s == ScaleUnit {
		return confidence * 100
	}
	return confidence
}

// InputRequirement names an input class a prediction system depends on.
type InputRequirement string

const (
	RequiresFeatures InputRequirement = "FEATURES"
	RequiresHistory  InputRequirement = "HISTORY"
)

// SystemSpec is the static declaration of one prediction system: its
// identifier, confidence scale and input contract. Specs are immutable at
// runtime and loaded once per worker process.
type SystemSpec struct {
	SystemID             string
	ConfidenceScale      ConfidenceScale
	Requires             []InputRequirement
	CanRunWithoutHistory bool
}

// RequiresInput reports whether the system declares the given requirement.
func (s SystemSpec) RequiresInput(req InputRequirement) bool {
	for _, r := range s.Requires {
		if r == req {
			return true
		}
	}
	return false
}

// Recommendation is the betting-side recommendation derived from the edge of
// a prediction over its reference line.
type Recommendation string

const (
	RecStrongOver  Recommendation = "STRONG_OVER"
	RecOver        Recommendation = "OVER"
	RecPass        Recommendation = "PASS"
	RecUnder       Recommendation = "UNDER"
	RecStrongUnder Recommendation = "STRONG_UNDER"
)

// PredictionRecord is one system's prediction for one (player, date, line)
// tuple. Records are written once, idempotently on their natural key, and
// never mutated afterwards.
type PredictionRecord struct {
	PlayerID             string         `gorm:"column:player_id;primaryKey" json:"player_id"`
	GameDate             string         `gorm:"column:game_date;primaryKey" json:"game_date"`
	LineValue            float64        `gorm:"column:line_value;primaryKey" json:"line_value"`
	SystemID             string         `gorm:"column:system_id;primaryKey" json:"system_id"`
	PredictedValue       float64        `gorm:"column:predicted_value" json:"predicted_value"`
	ConfidenceNormalized float64        `gorm:"column:confidence" json:"confidence_normalized"`
	Recommendation       Recommendation `gorm:"column:recommendation" json:"recommendation"`
	IsEnsemble           bool           `gorm:"column:is_ensemble" json:"is_ensemble"`
	CreatedAt            time.Time      `gorm:"column:created_at" json:"created_at"`
}

// TableName returns the table name for the PredictionRecord entity.
func (PredictionRecord) TableName() string {
	return "prediction_records"
}

// FeatureMap holds the precomputed per-player feature vector produced by the
// upstream pipeline for one game date.
type FeatureMap map[string]float64

// Get returns the named feature, or the fallback when absent.
func (f FeatureMap) Get(name string, fallback float64) float64 {
	if v, ok := f[name]; ok {
		return v
	}
	return fallback
}

// Has reports whether the named feature is present.
func (f FeatureMap) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// GameLog is one past game of a player's recent history, consumed by
// prediction systems that declare RequiresHistory.
type GameLog struct {
	PlayerID string  `json:"player_id"`
	GameDate string  `json:"game_date"`
	Opponent string  `json:"opponent"`
	Home     bool    `json:"home"`
	Minutes  float64 `json:"minutes"`
	Points   float64 `json:"points"`
}

// CompletionEvent is the ephemeral message a worker emits after finishing a
// work item. It is not persisted as an entity of record; it exists only to
// drive the batch counters.
type CompletionEvent struct {
	BatchID              string    `json:"batch_id"`
	PlayerID             string    `json:"player_id"`
	PredictionsGenerated int       `json:"predictions_generated"`
	Failed               bool      `json:"failed"`
	Reason               string    `json:"reason,omitempty"`
	WorkerInstanceID     string    `json:"worker_instance_id"`
	EmittedAt            time.Time `json:"emitted_at"`
}

// BatchCompletion is the durable dedupe row the tracker inserts per
// (batch, player) before incrementing a counter. The unique key makes
// duplicate completion events no-ops under at-least-once delivery.
type BatchCompletion struct {
	BatchID              string    `gorm:"column:batch_id;primaryKey"`
	PlayerID             string    `gorm:"column:player_id;primaryKey"`
	Failed               bool      `gorm:"column:failed"`
	PredictionsGenerated int       `gorm:"column:predictions_generated"`
	WorkerInstanceID     string    `gorm:"column:worker_instance_id"`
	CreatedAt            time.Time `gorm:"column:created_at"`
}

// TableName returns the table name for the BatchCompletion entity.
func (BatchCompletion) TableName() string {
	return "batch_completions"
}

// BatchSummary is the downstream batch-complete signal payload.
type BatchSummary struct {
	BatchID         string  `json:"batch_id"`
	TargetDate      string  `json:"target_date"`
	Total           int     `json:"total"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	SuccessRate     float64 `json:"success_rate"`
	DurationSeconds float64 `json:"duration_seconds"`
	Degraded        bool    `json:"degraded"`
}

// Summarize builds the downstream signal payload for a batch.
func Summarize(b *Batch, degraded bool) BatchSummary {
	end := time.Now().UTC()
	if b.CompletedAt != nil {
		end = *b.CompletedAt
	}
	return BatchSummary{
		BatchID:         b.ID,
		TargetDate:      b.TargetDate,
		Total:           b.TotalItems,
		Completed:       b.CompletedCount,
		Failed:          b.FailedCount,
		SuccessRate:     b.SuccessRate(),
		DurationSeconds: end.Sub(b.CreatedAt).Seconds(),
		Degraded:        degraded,
	}
}

// String renders a compact human-readable summary line for logs and alerts.
func (s BatchSummary) String() string {
	return fmt.Sprintf("batch %s (%s): %d/%d completed, %d failed, success_rate=%.1f%%, duration=%.0fs",
		s.BatchID, s.TargetDate, s.Completed, s.Total, s.Failed, s.SuccessRate*100, s.DurationSeconds)
}
