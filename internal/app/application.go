// Package app assembles the Fx application graph for the batch system's
// run modes: a one-shot coordinator run, a long-running worker instance and
// the scheduled daily service.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/coordinator"
	"github.com/najicham/nba-stats-scraper-sub021/internal/dispatch"
	"github.com/najicham/nba-stats-scraper-sub021/internal/gate"
	"github.com/najicham/nba-stats-scraper-sub021/internal/logger"
	"github.com/najicham/nba-stats-scraper-sub021/internal/metrics"
	"github.com/najicham/nba-stats-scraper-sub021/internal/model"
	"github.com/najicham/nba-stats-scraper-sub021/internal/notify"
	"github.com/najicham/nba-stats-scraper-sub021/internal/predict"
	"github.com/najicham/nba-stats-scraper-sub021/internal/queue"
	"github.com/najicham/nba-stats-scraper-sub021/internal/repository"
	"github.com/najicham/nba-stats-scraper-sub021/internal/scheduler"
	"github.com/najicham/nba-stats-scraper-sub021/internal/tracker"
	"github.com/najicham/nba-stats-scraper-sub021/internal/upstream"
	"github.com/najicham/nba-stats-scraper-sub021/internal/worker"
)

// coreOptions builds the module set shared by every run mode.
func coreOptions(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) fx.Option {
	return fx.Options(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
		),
		config.Module,
		repository.Module,
		queue.Module,
		upstream.Module,
		predict.Module,
		metrics.Module,
		notify.Module,
		gate.Module,
		dispatch.Module,
		worker.Module,
		tracker.Module,
		coordinator.Module,
		scheduler.Module,
	)
}

// newApp builds an Fx application with the shared modules plus the run
// mode's own invocations, silencing Fx's own event log in favor of ours.
func newApp(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, invokes ...fx.Option) *fx.App {
	opts := []fx.Option{
		coreOptions(appCtx, envFilePath, embeddedConfig),
		fx.NopLogger,
	}
	opts = append(opts, invokes...)
	return fx.New(opts...)
}

// RunCoordinator executes one full pipeline pass for the target date and
// exits. The job-level retry tier is applied around the run.
func RunCoordinator(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, targetDate string) error {
	var runErr error

	app := newApp(appCtx, envFilePath, embeddedConfig,
		fx.Invoke(fx.Annotate(
			func(lc fx.Lifecycle, shutdowner fx.Shutdowner, co *coordinator.Coordinator, appCtx context.Context) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						go func() {
							defer func() {
								if r := recover(); r != nil {
									logger.Errorf("Panic recovered in coordinator run: %v", r)
								}
								if err := shutdowner.Shutdown(); err != nil {
									logger.Errorf("Failed to shutdown application: %v", err)
								}
							}()

							batch, err := co.RunWithRetry(appCtx, targetDate)
							if err != nil {
								runErr = err
								return
							}
							if batch == nil {
								logger.Infof("Coordinator: nothing to do for %s.", targetDate)
								return
							}
							logger.Infof("Coordinator: batch '%s' finished %s (%d/%d completed).",
								batch.ID, batch.Status, batch.CompletedCount, batch.TotalItems)
						}()
						return nil
					},
				})
			},
			fx.ParamTags("", "", "", `name:"appCtx"`),
		)),
	)

	app.Run()
	if err := app.Err(); err != nil {
		return err
	}
	return runErr
}

// RunWorker starts a worker instance consuming the work queue until the
// process is signalled.
func RunWorker(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) error {
	app := newApp(appCtx, envFilePath, embeddedConfig,
		fx.Invoke(fx.Annotate(
			func(lc fx.Lifecycle, shutdowner fx.Shutdowner, pool *worker.Pool, appCtx context.Context) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						go func() {
							if err := pool.Run(appCtx); err != nil {
								logger.Errorf("Worker pool stopped with error: %v", err)
							}
							if err := shutdowner.Shutdown(); err != nil {
								logger.Errorf("Failed to shutdown application: %v", err)
							}
						}()
						return nil
					},
				})
			},
			fx.ParamTags("", "", "", `name:"appCtx"`),
		)),
	)

	app.Run()
	return app.Err()
}

// RunScheduled starts the daily trigger and keeps the process alive until
// signalled. Worker instances run separately; this process only gates,
// dispatches and tracks.
func RunScheduled(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) error {
	app := newApp(appCtx, envFilePath, embeddedConfig,
		fx.Invoke(func(lc fx.Lifecycle, sched *scheduler.Scheduler, cfg *config.Config) error {
			if !cfg.Props.Scheduler.Enabled {
				logger.Warnf("Scheduler: disabled in configuration; enable props.scheduler.enabled to trigger runs.")
			}
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return sched.Start(appCtx)
				},
				OnStop: func(ctx context.Context) error {
					sched.Stop()
					return nil
				},
			})
			return nil
		}),
	)

	app.Run()
	return app.Err()
}

// PrintStatus reports the latest batch for a date together with the queue
// depths and the platform scaling recommendation for the current backlog.
func PrintStatus(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, targetDate string) error {
	var statusErr error

	app := newApp(appCtx, envFilePath, embeddedConfig,
		fx.Invoke(func(lc fx.Lifecycle, shutdowner fx.Shutdowner, batches repository.BatchRepository, predictions repository.PredictionRepository, q queue.Queue, cfg *config.Config) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						defer func() {
							if err := shutdowner.Shutdown(); err != nil {
								logger.Errorf("Failed to shutdown application: %v", err)
							}
						}()
						statusErr = printStatus(appCtx, batches, predictions, q, cfg, targetDate)
					}()
					return nil
				},
			})
		}),
	)

	app.Run()
	if err := app.Err(); err != nil {
		return err
	}
	return statusErr
}

func printStatus(ctx context.Context, batches repository.BatchRepository, predictions repository.PredictionRepository, q queue.Queue, cfg *config.Config, targetDate string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	batch, err := batches.FindLatestBatchByDate(ctx, targetDate)
	if err != nil {
		fmt.Printf("No batch found for %s.\n", targetDate)
	} else {
		fmt.Printf("Batch %s for %s\n", batch.ID, batch.TargetDate)
		fmt.Printf("  mode:      %s\n", batch.Mode)
		fmt.Printf("  status:    %s\n", batch.Status)
		fmt.Printf("  items:     %d total, %d completed, %d failed\n",
			batch.TotalItems, batch.CompletedCount, batch.FailedCount)
		if batch.Status == model.BatchStatusComplete || batch.Status == model.BatchStatusTimedOut {
			fmt.Printf("  success:   %.1f%%\n", batch.SuccessRate()*100)
		}
		count, err := predictions.CountPredictions(ctx, targetDate)
		if err != nil {
			return err
		}
		fmt.Printf("  records:   %d prediction records stored\n", count)
	}

	depth, err := q.WorkDepth(ctx)
	if err != nil {
		return err
	}
	deadDepth, err := q.DeadLetterDepth(ctx)
	if err != nil {
		return err
	}

	wc := cfg.Props.Worker
	fmt.Printf("Queue\n")
	fmt.Printf("  work depth:    %d\n", depth)
	fmt.Printf("  dead letters:  %d\n", deadDepth)
	fmt.Printf("  recommended:   %d instances (concurrency %d, utilization %.2f)\n",
		queue.RecommendInstances(depth, wc.Concurrency, wc.TargetUtilization, wc.MinInstances, wc.MaxInstances),
		wc.Concurrency, wc.TargetUtilization)
	return nil
}
