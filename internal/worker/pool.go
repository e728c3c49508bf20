package worker

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/exception"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
	"github.com/najicham/nba-stats-scraper-sub021/internal/metrics"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
	"github.com/najicham/nba-stats-scraper-sub021/internal/queue"
)

// depthSampleInterval is how often the pool samples queue depth for the
// scaling metrics.
const depthSampleInterval = 30 * time.Second

// Pool drives the handler from the work queue with a fixed number of
// concurrent consumers per instance. Message-level redelivery and
// dead-lettering live here, one tier above the handler.
type Pool struct {
	queue      queue.Queue
	handler    *Handler
	recorder   metrics.Recorder
	workerCfg  config.WorkerConfig
	messageCfg config.MessageRetryConfig
	instanceID string
}

// NewPool creates a Pool.
func NewPool(
	q queue.Queue,
	handler *Handler,
	recorder metrics.Recorder,
	workerCfg config.WorkerConfig,
	messageCfg config.MessageRetryConfig,
	instanceID string,
) *Pool {
	return &Pool{
		queue:      q,
		handler:    handler,
		recorder:   recorder,
		workerCfg:  workerCfg,
		messageCfg: messageCfg,
		instanceID: instanceID,
	}
}

// Run consumes work items until ctx is cancelled. It starts the configured
// per-instance concurrency plus one depth sampler and returns when all
// consumers have drained.
func (p *Pool) Run(ctx context.Context) error {
	logger.Infof("Worker: instance %s starting %d consumers.", p.instanceID, p.workerCfg.Concurrency)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workerCfg.Concurrency; i++ {
		g.Go(func() error {
			return p.consume(ctx)
		})
	}
	g.Go(func() error {
		return p.sampleDepth(ctx)
	})

	err := g.Wait()
	logger.Infof("Worker: instance %s stopped.", p.instanceID)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// consume is one consumer loop: dequeue, process, repeat.
func (p *Pool) consume(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		item, err := p.queue.DequeueWork(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Errorf("Worker: dequeue failed, backing off: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		if item == nil {
			continue
		}

		p.process(ctx, *item)
	}
}

// process runs the handler for one delivery and applies the message-level
// retry tier to its outcome: retryable failures are requeued on the backoff
// schedule until deliveries are exhausted, everything else that fails is
// dead-lettered and accounted as a failed item.
func (p *Pool) process(ctx context.Context, item model.WorkItem) {
	start := time.Now()
	err := p.handler.Handle(ctx, item)
	if err == nil {
		p.recorder.RecordItemProcessed(time.Since(start), metrics.OutcomeOK)
		return
	}

	if exception.IsTemporary(err) {
		p.recorder.RecordItemProcessed(time.Since(start), metrics.OutcomeRetryable)
		if item.DeliveryAttempt < p.messageCfg.MaxAttempts {
			delay := p.redeliveryDelay(item.DeliveryAttempt)
			logger.Warnf("Worker: item %s/%s delivery %d failed, requeueing in %s: %v",
				item.BatchID, item.PlayerID, item.DeliveryAttempt, delay, err)

			item.DeliveryAttempt++
			if reqErr := p.queue.RequeueWork(ctx, item, delay); reqErr != nil {
				logger.Errorf("Worker: requeue failed for %s/%s, dead-lettering: %v",
					item.BatchID, item.PlayerID, reqErr)
				p.deadLetter(ctx, item, "requeue failed: "+reqErr.Error())
			}
			return
		}
		p.deadLetter(ctx, item, "deliveries exhausted: "+exception.ExtractErrorMessage(err))
		return
	}

	p.recorder.RecordItemProcessed(time.Since(start), metrics.OutcomeFatal)
	logger.Errorf("Worker: item %s/%s failed fatally: %v", item.BatchID, item.PlayerID, err)
	p.deadLetter(ctx, item, exception.ExtractErrorMessage(err))
}

// deadLetter parks the item for inspection and emits a failed completion
// event so the batch still accounts for it.
func (p *Pool) deadLetter(ctx context.Context, item model.WorkItem, reason string) {
	if err := p.queue.DeadLetter(ctx, item, reason); err != nil {
		logger.Errorf("Worker: dead-letter failed for %s/%s: %v", item.BatchID, item.PlayerID, err)
	}

	event := model.CompletionEvent{
		BatchID:          item.BatchID,
		PlayerID:         item.PlayerID,
		Failed:           true,
		Reason:           reason,
		WorkerInstanceID: p.instanceID,
		EmittedAt:        time.Now().UTC(),
	}
	if err := p.queue.PublishCompletion(ctx, event); err != nil {
		// The tracker's deadline closes the batch even if this event is
		// lost.
		logger.Errorf("Worker: failed completion event lost for %s/%s: %v", item.BatchID, item.PlayerID, err)
	}
}

// redeliveryDelay returns the schedule entry for the delivery that just
// failed, reusing the last entry past the end of the schedule.
func (p *Pool) redeliveryDelay(deliveryAttempt int) time.Duration {
	schedule := p.messageCfg.BackoffSeconds
	if len(schedule) == 0 {
		return 0
	}
	idx := deliveryAttempt - 1
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return time.Duration(schedule[idx]) * time.Second
}

// sampleDepth periodically records queue depth and the instance count the
// platform's scaling formula would pick for it.
func (p *Pool) sampleDepth(ctx context.Context) error {
	ticker := time.NewTicker(depthSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			depth, err := p.queue.WorkDepth(ctx)
			if err != nil {
				logger.Debugf("Worker: depth sample failed: %v", err)
				continue
			}
			p.recorder.RecordQueueDepth(depth)
			p.recorder.RecordScaleRecommendation(queue.RecommendInstances(
				depth,
				p.workerCfg.Concurrency,
				p.workerCfg.TargetUtilization,
				p.workerCfg.MinInstances,
				p.workerCfg.MaxInstances,
			))
		}
	}
}
