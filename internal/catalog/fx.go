package catalog

import (
	"time"

	"github.com/smallbiznis/tillway/internal/cache"
	catalogdomain "github.com/smallbiznis/tillway/internal/catalog/domain"
	"github.com/smallbiznis/tillway/internal/catalog/service"
	"github.com/smallbiznis/tillway/internal/config"
	"github.com/smallbiznis/tillway/internal/tenant"
	"go.uber.org/fx"
)

// Module provides the catalog service and registers its sharded entity
// schemas with the tenant resolver.
var Module = fx.Module("catalog.service",
	tenant.ProvideSchema(tenant.EntityProducts, func() any { return &catalogdomain.Product{} }),
	tenant.ProvideSchema(tenant.EntityBrands, func() any { return &catalogdomain.Brand{} }),
	tenant.ProvideSchema(tenant.EntityCategories, func() any { return &catalogdomain.Category{} }),
	tenant.ProvideSchema(tenant.EntityUnits, func() any { return &catalogdomain.Unit{} }),
	fx.Provide(func() cache.Cache[string, catalogdomain.Product] {
		return cache.NewTTLCache[string, catalogdomain.Product]()
	}),
	fx.Provide(fx.Annotate(
		func(cfg config.Config) time.Duration { return cfg.ProductCacheTTL },
		fx.ResultTags(`name:"product_cache_ttl"`),
	)),
	fx.Provide(service.NewService),
)
