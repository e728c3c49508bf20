package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

// BatchRepository owns the durable Batch row and its counters. All counter
// mutations are atomic increments issued as conditional SQL updates; the
// repository never does a read-modify-write on a counter.
type BatchRepository interface {
	// CreateBatch persists a new batch row.
	CreateBatch(ctx context.Context, batch *model.Batch) error
	// DeleteBatch removes a batch row. The dispatcher uses it to abort a
	// batch whose work items could not all be published.
	DeleteBatch(ctx context.Context, batchID string) error
	// GetBatch loads a batch by id.
	GetBatch(ctx context.Context, batchID string) (*model.Batch, error)
	// FindLatestBatchByDate loads the most recently created batch for a date.
	FindLatestBatchByDate(ctx context.Context, targetDate string) (*model.Batch, error)
	// TransitionStatus performs a conditional status transition and reports
	// whether this call won it. A false return with nil error means another
	// caller (or an earlier delivery) already moved the batch on.
	TransitionStatus(ctx context.Context, batchID string, from []model.BatchStatus, to model.BatchStatus) (bool, error)
	// RecordCompletion inserts the (batch, player) dedupe row and, when the
	// row is new, atomically increments the matching counter. It reports
	// whether the event was counted (false = duplicate delivery).
	RecordCompletion(ctx context.Context, event model.CompletionEvent) (bool, error)
	// TryComplete transitions the batch to COMPLETE iff all items are
	// accounted for and the batch is not already terminal. It reports whether
	// this call performed the transition.
	TryComplete(ctx context.Context, batchID string) (bool, error)
	// TryTimeout transitions the batch to TIMED_OUT iff it is not already
	// terminal. It reports whether this call performed the transition.
	TryTimeout(ctx context.Context, batchID string) (bool, error)
}

// PredictionRepository persists prediction records append-only and
// idempotently on their natural key.
type PredictionRepository interface {
	// SavePredictions writes all records in a single batched insert.
	// Conflicts on the natural key are ignored, making redelivered work items
	// harmless.
	SavePredictions(ctx context.Context, records []model.PredictionRecord) error
	// CountPredictions returns the number of records stored for a game date.
	CountPredictions(ctx context.Context, gameDate string) (int64, error)
}

// GormRepository implements BatchRepository and PredictionRepository on gorm.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository bound to the given gorm connection.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// CreateBatch persists a new batch row.
func (r *GormRepository) CreateBatch(ctx context.Context, batch *model.Batch) error {
	if err := r.db.WithContext(ctx).Create(batch).Error; err != nil {
		return exception.NewBatchError(moduleName, "failed to create batch", err, false, true)
	}
	return nil
}

// DeleteBatch removes a batch row and its completion rows.
func (r *GormRepository) DeleteBatch(ctx context.Context, batchID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", batchID).Delete(&model.BatchCompletion{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", batchID).Delete(&model.Batch{}).Error
	})
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to delete batch", err, false, true)
	}
	return nil
}

// GetBatch loads a batch by id.
func (r *GormRepository) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	var batch model.Batch
	err := r.db.WithContext(ctx).Where("id = ?", batchID).First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, exception.NewBatchErrorf(moduleName, "batch '%s' not found", batchID)
		}
		return nil, exception.NewBatchError(moduleName, "failed to load batch", err, false, true)
	}
	return &batch, nil
}

// FindLatestBatchByDate loads the most recently created batch for a date.
func (r *GormRepository) FindLatestBatchByDate(ctx context.Context, targetDate string) (*model.Batch, error) {
	var batch model.Batch
	err := r.db.WithContext(ctx).
		Where("target_date = ?", targetDate).
		Order("created_at DESC").
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, exception.NewBatchErrorf(moduleName, "no batch found for date '%s'", targetDate)
		}
		return nil, exception.NewBatchError(moduleName, "failed to load batch by date", err, false, true)
	}
	return &batch, nil
}

// TransitionStatus performs a conditional status transition.
func (r *GormRepository) TransitionStatus(ctx context.Context, batchID string, from []model.BatchStatus, to model.BatchStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Batch{}).
		Where("id = ? AND status IN ?", batchID, from).
		Update("status", to)
	if res.Error != nil {
		return false, exception.NewBatchError(moduleName, "failed to transition batch status", res.Error, false, true)
	}
	return res.RowsAffected == 1, nil
}

// RecordCompletion inserts the dedupe row and increments the counter.
// The unique (batch_id, player_id) key turns duplicate deliveries into
// no-ops: the insert affects zero rows and no counter moves.
func (r *GormRepository) RecordCompletion(ctx context.Context, event model.CompletionEvent) (bool, error) {
	counted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		completion := model.BatchCompletion{
			BatchID:              event.BatchID,
			PlayerID:             event.PlayerID,
			Failed:               event.Failed,
			PredictionsGenerated: event.PredictionsGenerated,
			WorkerInstanceID:     event.WorkerInstanceID,
			CreatedAt:            time.Now().UTC(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&completion)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Duplicate delivery for this (batch, player); leave counters alone.
			return nil
		}

		column := "completed_count"
		if event.Failed {
			column = "failed_count"
		}
		if err := tx.Model(&model.Batch{}).
			Where("id = ?", event.BatchID).
			UpdateColumn(column, gorm.Expr(column+" + 1")).Error; err != nil {
			return err
		}
		counted = true
		return nil
	})
	if err != nil {
		return false, exception.NewBatchError(moduleName, "failed to record completion", err, false, true)
	}
	return counted, nil
}

// TryComplete transitions the batch to COMPLETE exactly once.
func (r *GormRepository) TryComplete(ctx context.Context, batchID string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&model.Batch{}).
		Where("id = ? AND status IN ? AND completed_count + failed_count >= total_items",
			batchID, []model.BatchStatus{model.BatchStatusDispatched, model.BatchStatusProcessing}).
		Updates(map[string]interface{}{
			"status":       model.BatchStatusComplete,
			"completed_at": now,
		})
	if res.Error != nil {
		return false, exception.NewBatchError(moduleName, "failed to complete batch", res.Error, false, true)
	}
	return res.RowsAffected == 1, nil
}

// TryTimeout forces the batch into TIMED_OUT unless it is already terminal.
func (r *GormRepository) TryTimeout(ctx context.Context, batchID string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&model.Batch{}).
		Where("id = ? AND status IN ?",
			batchID, []model.BatchStatus{model.BatchStatusDispatched, model.BatchStatusProcessing}).
		Updates(map[string]interface{}{
			"status":       model.BatchStatusTimedOut,
			"completed_at": now,
		})
	if res.Error != nil {
		return false, exception.NewBatchError(moduleName, "failed to time out batch", res.Error, false, true)
	}
	return res.RowsAffected == 1, nil
}

// SavePredictions writes all records in one batched, conflict-ignoring insert.
func (r *GormRepository) SavePredictions(ctx context.Context, records []model.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(records, 100).Error
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to save prediction records", err, false, true)
	}
	return nil
}

// CountPredictions returns the number of records stored for a game date.
func (r *GormRepository) CountPredictions(ctx context.Context, gameDate string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.PredictionRecord{}).
		Where("game_date = ?", gameDate).
		Count(&count).Error
	if err != nil {
		return 0, exception.NewBatchError(moduleName, "failed to count prediction records", err, false, true)
	}
	return count, nil
}

// Verify interfaces.
var (
	_ BatchRepository      = (*GormRepository)(nil)
	_ PredictionRepository = (*GormRepository)(nil)
)
