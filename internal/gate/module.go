package gate

import (
	"go.uber.org/fx"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
	"github.com/najicham/nba-stats-scraper-sub021/internal/upstream"
)

// Module provides the dependency gate.
var Module = fx.Options(
	fx.Provide(func(readiness upstream.ReadinessClient, cfg *config.Config) *Gate {
		return New(readiness, cfg.Props.Gate)
	}),
)
