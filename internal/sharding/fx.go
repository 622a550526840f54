package sharding

import (
	"context"

	"github.com/smallbiznis/tillway/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Module provides the shard connection registry.
var Module = fx.Module("sharding",
	fx.Provide(newRegistry),
	fx.Invoke(closeOnShutdown),
)

func newRegistry(cfg config.Config, log *zap.Logger) *Registry {
	return NewRegistry(Config{
		BaseURI:        cfg.ShardBaseURI,
		DatabasePrefix: cfg.ShardDatabasePrefix,
		ShardCount:     cfg.ShardCount,
		MaxPoolSize:    cfg.ShardMaxPoolSize,
		ConnectTimeout: cfg.ShardConnectTimeout,
		SocketTimeout:  cfg.ShardSocketTimeout,
		SelectTimeout:  cfg.ShardSelectTimeout,
		ConnectRetries: cfg.ShardConnectRetries,
		ConnectBackoff: cfg.ShardConnectBackoff,
	}, func(dsn string) gorm.Dialector {
		return postgres.Open(dsn)
	}, log)
}

func closeOnShutdown(lc fx.Lifecycle, registry *Registry) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			registry.Close()
			return nil
		},
	})
}
