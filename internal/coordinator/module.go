package coordinator

import (
	"go.uber.org/fx"
)

// Module provides the coordinator.
var Module = fx.Options(
	fx.Provide(New),
)
