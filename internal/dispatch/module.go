package dispatch

import (
	"go.uber.org/fx"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/metrics"
	"github.com/najicham/nba-stats-scraper-sub021/internal/queue"
	"github.com/najicham/nba-stats-scraper-sub021/internal/repository"
	"github.com/najicham/nba-stats-scraper-sub021/internal/upstream"
)

// Module provides the line resolver and the dispatcher.
var Module = fx.Options(
	fx.Provide(NewLineResolver),
	fx.Provide(func(
		players upstream.PlayerSource,
		resolver *LineResolver,
		batches repository.BatchRepository,
		q queue.Queue,
		recorder metrics.Recorder,
		cfg *config.Config,
	) *Dispatcher {
		return New(players, resolver, batches, q, recorder, cfg.Props.Dispatch)
	}),
)
