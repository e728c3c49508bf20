// Package queue provides the message transport between the coordinator and
// the elastic worker pool: the work queue with delayed redelivery and a
// dead-letter destination, and the completion queue driving the tracker.
package queue

import (
	"context"
	"math"
	"time"

	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

// Queue is the transport contract. Implementations must be safe for
// concurrent use from many worker instances; delivery is at-least-once and
// consumers are expected to be idempotent.
type Queue interface {
	// PublishWork enqueues one work item for immediate delivery.
	PublishWork(ctx context.Context, item model.WorkItem) error
	// DequeueWork returns the next deliverable work item, first promoting any
	// delayed redeliveries that have come due. It returns (nil, nil) when
	// nothing is deliverable within the poll window.
	DequeueWork(ctx context.Context) (*model.WorkItem, error)
	// RequeueWork schedules a redelivery of the item after the given delay,
	// with its delivery attempt already incremented by the caller.
	RequeueWork(ctx context.Context, item model.WorkItem, delay time.Duration) error
	// DeadLetter moves an exhausted or fatally failed item to the dead-letter
	// destination for manual inspection.
	DeadLetter(ctx context.Context, item model.WorkItem, reason string) error
	// WorkDepth returns the number of immediately deliverable work items.
	WorkDepth(ctx context.Context) (int64, error)
	// DeadLetterDepth returns the number of dead-lettered items.
	DeadLetterDepth(ctx context.Context) (int64, error)

	// PublishCompletion enqueues a completion event.
	PublishCompletion(ctx context.Context, event model.CompletionEvent) error
	// DequeueCompletion returns the next completion event, or (nil, nil) when
	// none arrives within the poll window.
	DequeueCompletion(ctx context.Context) (*model.CompletionEvent, error)

	// Close releases the underlying connections.
	Close() error
}

// RecommendInstances implements the platform's elastic scaling formula:
// ceil(queueDepth / (perInstanceConcurrency * targetUtilization)), clamped to
// [minInstances, maxInstances]. The platform owns the behavior; this helper
// only surfaces the same number for operators and metrics.
func RecommendInstances(queueDepth int64, perInstanceConcurrency int, targetUtilization float64, minInstances, maxInstances int) int {
	if perInstanceConcurrency <= 0 || targetUtilization <= 0 {
		return minInstances
	}

	divisor := float64(perInstanceConcurrency) * targetUtilization
	target := int(math.Ceil(float64(queueDepth) / divisor))

	if target < minInstances {
		return minInstances
	}
	if target > maxInstances {
		return maxInstances
	}
	return target
}
