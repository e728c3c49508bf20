// Package testsupport provides in-memory fakes shared by package tests.
package testsupport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
	"github.com/najicham/nba-stats-scraper-sub021/internal/repository"
)

// MemoryBatchRepository is an in-memory implementation of
// repository.BatchRepository and repository.PredictionRepository with the
// same conditional-update and dedupe semantics as the SQL implementation.
type MemoryBatchRepository struct {
	mu          sync.Mutex
	batches     map[string]*model.Batch
	completions map[string]bool
	records     map[string]model.PredictionRecord

	// FailCreate forces CreateBatch to fail, for abort-path tests.
	FailCreate error
	// FailSave forces SavePredictions to fail.
	FailSave error
}

// NewMemoryBatchRepository creates an empty repository fake.
func NewMemoryBatchRepository() *MemoryBatchRepository {
	return &MemoryBatchRepository{
		batches:     make(map[string]*model.Batch),
		completions: make(map[string]bool),
		records:     make(map[string]model.PredictionRecord),
	}
}

func (r *MemoryBatchRepository) CreateBatch(ctx context.Context, batch *model.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreate != nil {
		return r.FailCreate
	}
	copied := *batch
	r.batches[batch.ID] = &copied
	return nil
}

func (r *MemoryBatchRepository) DeleteBatch(ctx context.Context, batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.batches, batchID)
	return nil
}

func (r *MemoryBatchRepository) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch %q not found", batchID)
	}
	copied := *b
	return &copied, nil
}

func (r *MemoryBatchRepository) FindLatestBatchByDate(ctx context.Context, targetDate string) (*model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.Batch
	for _, b := range r.batches {
		if b.TargetDate != targetDate {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = b
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("no batch for date %q", targetDate)
	}
	copied := *latest
	return &copied, nil
}

func (r *MemoryBatchRepository) TransitionStatus(ctx context.Context, batchID string, from []model.BatchStatus, to model.BatchStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryBatchRepository) RecordCompletion(ctx context.Context, event model.CompletionEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := event.BatchID + "/" + event.PlayerID
	if r.completions[key] {
		return false, nil
	}
	r.completions[key] = true
	b, ok := r.batches[event.BatchID]
	if !ok {
		return false, fmt.Errorf("batch %q not found", event.BatchID)
	}
	if event.Failed {
		b.FailedCount++
	} else {
		b.CompletedCount++
	}
	return true, nil
}

func (r *MemoryBatchRepository) TryComplete(ctx context.Context, batchID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok {
		return false, nil
	}
	if b.Status != model.BatchStatusDispatched && b.Status != model.BatchStatusProcessing {
		return false, nil
	}
	if b.CompletedCount+b.FailedCount < b.TotalItems {
		return false, nil
	}
	now := time.Now().UTC()
	b.Status = model.BatchStatusComplete
	b.CompletedAt = &now
	return true, nil
}

func (r *MemoryBatchRepository) TryTimeout(ctx context.Context, batchID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok {
		return false, nil
	}
	if b.Status != model.BatchStatusDispatched && b.Status != model.BatchStatusProcessing {
		return false, nil
	}
	now := time.Now().UTC()
	b.Status = model.BatchStatusTimedOut
	b.CompletedAt = &now
	return true, nil
}

func (r *MemoryBatchRepository) SavePredictions(ctx context.Context, records []model.PredictionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSave != nil {
		return r.FailSave
	}
	for _, rec := range records {
		key := fmt.Sprintf("%s/%s/%.1f/%s", rec.PlayerID, rec.GameDate, rec.LineValue, rec.SystemID)
		if _, exists := r.records[key]; exists {
			continue
		}
		r.records[key] = rec
	}
	return nil
}

func (r *MemoryBatchRepository) CountPredictions(ctx context.Context, gameDate string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.records {
		if rec.GameDate == gameDate {
			n++
		}
	}
	return n, nil
}

// Records returns a copy of the stored prediction records.
func (r *MemoryBatchRepository) Records() []model.PredictionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.PredictionRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// Verify interfaces.
var (
	_ repository.BatchRepository      = (*MemoryBatchRepository)(nil)
	_ repository.PredictionRepository = (*MemoryBatchRepository)(nil)
)
