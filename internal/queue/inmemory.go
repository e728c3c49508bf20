package queue

import (
	"context"
	"sync"
	"time"

	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

// InMemoryQueue is a process-local Queue implementation used by tests and
// single-process runs. Delayed redeliveries become deliverable once their
// due time passes, mirroring the Redis implementation's promotion.
type InMemoryQueue struct {
	mu sync.Mutex

	work        []model.WorkItem
	delayed     []delayedItem
	dead        []DeadLetteredItem
	completions []model.CompletionEvent
}

type delayedItem struct {
	item model.WorkItem
	due  time.Time
}

// DeadLetteredItem is a dead-lettered work item with its reason, retained
// in memory for inspection.
type DeadLetteredItem struct {
	Item   model.WorkItem
	Reason string
}

// NewInMemoryQueue creates an empty InMemoryQueue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{}
}

// PublishWork enqueues one work item.
func (q *InMemoryQueue) PublishWork(ctx context.Context, item model.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.work = append(q.work, item)
	return nil
}

// DequeueWork returns the next deliverable work item or (nil, nil).
func (q *InMemoryQueue) DequeueWork(ctx context.Context) (*model.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	remaining := q.delayed[:0]
	for _, d := range q.delayed {
		if !d.due.After(now) {
			q.work = append(q.work, d.item)
		} else {
			remaining = append(remaining, d)
		}
	}
	q.delayed = remaining

	if len(q.work) == 0 {
		return nil, nil
	}
	item := q.work[0]
	q.work = q.work[1:]
	return &item, nil
}

// RequeueWork schedules a redelivery.
func (q *InMemoryQueue) RequeueWork(ctx context.Context, item model.WorkItem, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, delayedItem{item: item, due: time.Now().Add(delay)})
	return nil
}

// DeadLetter retains the item with its reason.
func (q *InMemoryQueue) DeadLetter(ctx context.Context, item model.WorkItem, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, DeadLetteredItem{Item: item, Reason: reason})
	return nil
}

// WorkDepth returns the number of immediately deliverable items.
func (q *InMemoryQueue) WorkDepth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.work)), nil
}

// DeadLetterDepth returns the number of dead-lettered items.
func (q *InMemoryQueue) DeadLetterDepth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.dead)), nil
}

// DeadLettered returns a copy of the dead-lettered items.
func (q *InMemoryQueue) DeadLettered() []DeadLetteredItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetteredItem, len(q.dead))
	copy(out, q.dead)
	return out
}

// PublishCompletion enqueues a completion event.
func (q *InMemoryQueue) PublishCompletion(ctx context.Context, event model.CompletionEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completions = append(q.completions, event)
	return nil
}

// DequeueCompletion returns the next completion event or (nil, nil).
func (q *InMemoryQueue) DequeueCompletion(ctx context.Context) (*model.CompletionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.completions) == 0 {
		return nil, nil
	}
	event := q.completions[0]
	q.completions = q.completions[1:]
	return &event, nil
}

// Close is a no-op.
func (q *InMemoryQueue) Close() error {
	return nil
}

// Verify interface.
var _ Queue = (*InMemoryQueue)(nil)
