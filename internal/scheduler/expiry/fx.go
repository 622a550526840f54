package expiry

import (
	"context"

	"go.uber.org/fx"

	"github.com/smallbiznis/tillway/internal/config"
)

// Module runs the points expiry sweep for the lifetime of the process.
var Module = fx.Module("loyalty.expiry",
	fx.Provide(newConfig),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func newConfig(cfg config.Config) Config {
	c := DefaultConfig()
	c.PointValue = cfg.LoyaltyPointValue
	return c.withDefaults()
}

func runWorker(lc fx.Lifecycle, worker *Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
