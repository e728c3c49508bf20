package tracker

import (
	"go.uber.org/fx"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/metrics"
	"github.com/najicham/nba-stats-scraper-sub021/internal/notify"
	"github.com/najicham/nba-stats-scraper-sub021/internal/queue"
	"github.com/najicham/nba-stats-scraper-sub021/internal/repository"
)

// Module provides the completion tracker.
var Module = fx.Options(
	fx.Provide(func(
		batches repository.BatchRepository,
		q queue.Queue,
		notifier notify.Notifier,
		recorder metrics.Recorder,
		cfg *config.Config,
	) *Tracker {
		return New(batches, q, notifier, recorder, cfg.Props.Tracker)
	}),
)
