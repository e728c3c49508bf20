package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
)

const moduleName = "queue"

// pollTimeout bounds each blocking pop so consumers can observe context
// cancellation between deliveries.
const pollTimeout = 2 * time.Second

// RedisQueue is the Redis-backed Queue implementation. Work items live on a
// list; delayed redeliveries sit in a sorted set scored by their due time and
// are promoted back onto the list on dequeue; dead-lettered items land on a
// separate list as annotated JSON.
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(cfg config.QueueConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to connect to Redis at %s", cfg.Addr), err, false, true)
	}

	logger.Infof("Queue: connected to Redis at %s (prefix: %q).", cfg.Addr, cfg.Prefix)
	return &RedisQueue{client: client, prefix: cfg.Prefix}, nil
}

func (q *RedisQueue) workKey() string        { return q.prefix + "work" }
func (q *RedisQueue) delayedKey() string     { return q.prefix + "work:delayed" }
func (q *RedisQueue) deadLetterKey() string  { return q.prefix + "work:dead" }
func (q *RedisQueue) completionsKey() string { return q.prefix + "completions" }

// PublishWork enqueues one work item for immediate delivery.
func (q *RedisQueue) PublishWork(ctx context.Context, item model.WorkItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to marshal work item", err, false, false)
	}
	if err := q.client.LPush(ctx, q.workKey(), payload).Err(); err != nil {
		return exception.NewBatchError(moduleName, "failed to publish work item", err, false, true)
	}
	return nil
}

// DequeueWork promotes due delayed items, then blocks briefly for the next
// work item. A poll window with no delivery returns (nil, nil).
func (q *RedisQueue) DequeueWork(ctx context.Context) (*model.WorkItem, error) {
	if err := q.promoteDue(ctx); err != nil {
		logger.Warnf("Queue: failed to promote delayed work items: %v", err)
	}

	vals, err := q.client.BRPop(ctx, pollTimeout, q.workKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, exception.NewBatchError(moduleName, "failed to dequeue work item", err, false, true)
	}

	var item model.WorkItem
	if err := json.Unmarshal([]byte(vals[1]), &item); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal work item", err, false, false)
	}
	return &item, nil
}

// promoteDue moves delayed redeliveries whose due time has passed back onto
// the work list.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	members, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil || len(members) == 0 {
		return err
	}

	pipe := q.client.TxPipeline()
	for _, m := range members {
		pipe.LPush(ctx, q.workKey(), m)
		pipe.ZRem(ctx, q.delayedKey(), m)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// RequeueWork schedules a redelivery after the given delay.
func (q *RedisQueue) RequeueWork(ctx context.Context, item model.WorkItem, delay time.Duration) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to marshal work item for requeue", err, false, false)
	}
	due := float64(time.Now().Add(delay).Unix())
	if err := q.client.ZAdd(ctx, q.delayedKey(), redis.Z{Score: due, Member: payload}).Err(); err != nil {
		return exception.NewBatchError(moduleName, "failed to schedule work item redelivery", err, false, true)
	}
	return nil
}

// deadLetterEnvelope annotates a dead-lettered item for manual inspection.
type deadLetterEnvelope struct {
	Item         model.WorkItem `json:"item"`
	Reason       string         `json:"reason"`
	DeadLetterAt time.Time      `json:"dead_letter_at"`
}

// DeadLetter moves an item to the dead-letter list.
func (q *RedisQueue) DeadLetter(ctx context.Context, item model.WorkItem, reason string) error {
	payload, err := json.Marshal(deadLetterEnvelope{Item: item, Reason: reason, DeadLetterAt: time.Now().UTC()})
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to marshal dead-letter envelope", err, false, false)
	}
	if err := q.client.LPush(ctx, q.deadLetterKey(), payload).Err(); err != nil {
		return exception.NewBatchError(moduleName, "failed to dead-letter work item", err, false, true)
	}
	logger.Warnf("Queue: dead-lettered work item for player %s (attempt %d): %s", item.PlayerID, item.DeliveryAttempt, reason)
	return nil
}

// WorkDepth returns the number of immediately deliverable work items.
func (q *RedisQueue) WorkDepth(ctx context.Context) (int64, error) {
	depth, err := q.client.LLen(ctx, q.workKey()).Result()
	if err != nil {
		return 0, exception.NewBatchError(moduleName, "failed to read work queue depth", err, false, true)
	}
	return depth, nil
}

// DeadLetterDepth returns the number of dead-lettered items.
func (q *RedisQueue) DeadLetterDepth(ctx context.Context) (int64, error) {
	depth, err := q.client.LLen(ctx, q.deadLetterKey()).Result()
	if err != nil {
		return 0, exception.NewBatchError(moduleName, "failed to read dead-letter depth", err, false, true)
	}
	return depth, nil
}

// PublishCompletion enqueues a completion event.
func (q *RedisQueue) PublishCompletion(ctx context.Context, event model.CompletionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to marshal completion event", err, false, false)
	}
	if err := q.client.LPush(ctx, q.completionsKey(), payload).Err(); err != nil {
		return exception.NewBatchError(moduleName, "failed to publish completion event", err, false, true)
	}
	return nil
}

// DequeueCompletion blocks briefly for the next completion event.
func (q *RedisQueue) DequeueCompletion(ctx context.Context) (*model.CompletionEvent, error) {
	vals, err := q.client.BRPop(ctx, pollTimeout, q.completionsKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, exception.NewBatchError(moduleName, "failed to dequeue completion event", err, false, true)
	}

	var event model.CompletionEvent
	if err := json.Unmarshal([]byte(vals[1]), &event); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal completion event", err, false, false)
	}
	return &event, nil
}

// Close releases the underlying Redis connections.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Verify interface.
var _ Queue = (*RedisQueue)(nil)
