package upstream

import (
	"go.uber.org/fx"
)

// Module provides the gorm-backed upstream store under each of its
// interface roles.
var Module = fx.Module("upstream",
	fx.Provide(
		fx.Annotate(NewGormStore,
			fx.As(new(ReadinessClient)),
			fx.As(new(FeatureClient)),
			fx.As(new(HistoryClient)),
			fx.As(new(PlayerSource)),
			fx.As(new(LineProvider)),
		),
	),
)
