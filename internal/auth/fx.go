package auth

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/tillway/internal/auth/service"
)

// Module wires store-scoped authentication.
var Module = fx.Module("auth",
	fx.Provide(
		service.NewService,
	),
)
