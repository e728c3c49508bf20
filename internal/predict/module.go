package predict

import (
	"go.uber.org/fx"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
)

// Module provides the prediction system registry and the ensemble aggregator.
var Module = fx.Module("predict",
	fx.Provide(NewRegistry),
	fx.Provide(func(cfg *config.Config) *Aggregator {
		return NewAggregator(cfg.Props.Ensemble)
	}),
)
