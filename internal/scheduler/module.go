package scheduler

import (
	"go.uber.org/fx"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/coordinator"
)

// Module provides the daily trigger.
var Module = fx.Options(
	fx.Provide(func(co *coordinator.Coordinator, cfg *config.Config) (*Scheduler, error) {
		return New(co, cfg.Props.System, cfg.Props.Scheduler)
	}),
)
