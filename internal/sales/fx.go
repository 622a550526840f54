package sales

import (
	salesdomain "github.com/smallbiznis/tillway/internal/sales/domain"
	"github.com/smallbiznis/tillway/internal/sales/service"
	"github.com/smallbiznis/tillway/internal/tenant"
	"go.uber.org/fx"
)

// Module provides the sales service and registers its sharded schema.
var Module = fx.Module("sales.service",
	tenant.ProvideSchema(tenant.EntitySales, func() any { return &salesdomain.Sale{} }),
	fx.Provide(service.NewService),
)
