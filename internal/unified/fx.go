package unified

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/tillway/internal/unified/service"
)

// Module wires the unified-collection service.
var Module = fx.Module("unified",
	fx.Provide(
		service.NewService,
	),
)
