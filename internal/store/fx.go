package store

import (
	"github.com/smallbiznis/tillway/internal/config"
	"github.com/smallbiznis/tillway/internal/store/service"
	"go.uber.org/fx"
)

// Module provides the store directory.
var Module = fx.Module("store.directory",
	fx.Provide(func(cfg config.Config) service.Config {
		return service.Config{
			ShardCount:       cfg.ShardCount,
			StoresPerShard:   cfg.StoresPerShard,
			PrefixRepairMode: cfg.PrefixRepairMode,
		}
	}),
	fx.Provide(service.NewService),
)
