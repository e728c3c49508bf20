package queue

import (
	"context"

	"go.uber.org/fx"

	"github.com/najicham/nba-stats-scraper-sub021/internal/config"
)

// Module provides the Redis-backed Queue to the Fx graph and closes it on
// shutdown.
var Module = fx.Module("queue",
	fx.Provide(
		fx.Annotate(
			func(lc fx.Lifecycle, cfg *config.Config) (*RedisQueue, error) {
				q, err := NewRedisQueue(cfg.Props.Queue)
				if err != nil {
					return nil, err
				}
				lc.Append(fx.Hook{
					OnStop: func(ctx context.Context) error {
						return q.Close()
					},
				})
				return q, nil
			},
			fx.As(new(Queue)),
		),
	),
)
