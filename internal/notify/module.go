package notify

import (
	"go.uber.org/fx"
)

// Module provides the Notifier implementation.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLogNotifier,
		fx.As(new(Notifier)),
	)),
)
