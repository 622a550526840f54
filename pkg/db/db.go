package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/smallbiznis/tillway/internal/config"
)

// Module provides the control-plane database connection under the name
// "control". Shard connections are managed separately by the shard registry.
var Module = fx.Module("db",
	fx.Provide(
		fx.Annotate(
			Open,
			fx.ResultTags(`name:"control"`),
		),
	),
	fx.Invoke(closeOnShutdown),
)

// Open connects to the control-plane database. Postgres is the production
// driver; sqlite URIs are accepted for local development.
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector := dialectorFor(cfg.ControlDatabaseURI)

	conn, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open control database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("control database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping control database: %w", err)
	}

	log.Info("control database connected")
	return conn, nil
}

func dialectorFor(uri string) gorm.Dialector {
	lowered := strings.ToLower(uri)
	if strings.HasPrefix(lowered, "sqlite://") {
		return sqlite.Open(strings.TrimPrefix(uri, "sqlite://"))
	}
	if strings.HasPrefix(lowered, "file:") || strings.HasSuffix(lowered, ".db") {
		return sqlite.Open(uri)
	}
	return postgres.Open(uri)
}

type shutdownParam struct {
	fx.In

	DB  *gorm.DB `name:"control"`
	Log *zap.Logger
}

func closeOnShutdown(lc fx.Lifecycle, p shutdownParam) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := p.DB.DB()
			if err != nil {
				return err
			}
			p.Log.Info("closing control database")
			return sqlDB.Close()
		},
	})
}
