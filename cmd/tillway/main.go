package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/tillway/internal/auth"
	"github.com/smallbiznis/tillway/internal/catalog"
	"github.com/smallbiznis/tillway/internal/config"
	"github.com/smallbiznis/tillway/internal/customer"
	"github.com/smallbiznis/tillway/internal/loyalty"
	"github.com/smallbiznis/tillway/internal/observability/logger"
	"github.com/smallbiznis/tillway/internal/observability/metrics"
	"github.com/smallbiznis/tillway/internal/observability/tracing"
	"github.com/smallbiznis/tillway/internal/sales"
	"github.com/smallbiznis/tillway/internal/scheduler/expiry"
	"github.com/smallbiznis/tillway/internal/seed"
	"github.com/smallbiznis/tillway/internal/server"
	"github.com/smallbiznis/tillway/internal/settings"
	"github.com/smallbiznis/tillway/internal/sharding"
	"github.com/smallbiznis/tillway/internal/store"
	storedomain "github.com/smallbiznis/tillway/internal/store/domain"
	"github.com/smallbiznis/tillway/internal/tenant"
	"github.com/smallbiznis/tillway/internal/unified"
	"github.com/smallbiznis/tillway/pkg/db"
)

var version = "dev"

type bootstrapParam struct {
	fx.In

	DB  *gorm.DB `name:"control"`
	Dir storedomain.Directory
	Cfg config.Config
	Log *zap.Logger
}

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		sharding.Module,
		store.Module,
		tenant.Module,
		catalog.Module,
		sales.Module,
		customer.Module,
		settings.Module,
		unified.Module,
		loyalty.Module,
		expiry.Module,
		auth.Module,
		fx.Invoke(func(cfg config.Config) {
			metrics.RoutingWithConfig(metrics.Config{
				ServiceName: "tillway",
				Environment: cfg.Environment,
			})
		}),
		fx.Invoke(func(p bootstrapParam) error {
			if err := seed.MigrateControlPlane(p.DB); err != nil {
				return err
			}
			if p.Cfg.Bootstrap.EnsureDefaultStore {
				return seed.EnsureDefaultStore(context.Background(), p.Dir, p.DB, p.Cfg.Bootstrap.DefaultStoreName, p.Log)
			}
			return nil
		}),
		server.Module,
	)
	app.Run()
}
