package loyalty

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/tillway/internal/config"
	"github.com/smallbiznis/tillway/internal/loyalty/service"
)

// Module wires the cross-store loyalty ledger.
var Module = fx.Module("loyalty",
	fx.Provide(
		func(cfg config.Config) service.Config {
			return service.Config{
				MinPurchase:    cfg.LoyaltyMinPurchase,
				MaxPointsPerTx: cfg.LoyaltyMaxPointsPerTx,
				EarnPercent:    cfg.LoyaltyEarnPercent,
				PointValue:     cfg.LoyaltyPointValue,
				ExpiryDays:     cfg.PointsExpiryDays,
			}
		},
		service.NewService,
	),
)
