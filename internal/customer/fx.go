package customer

import (
	customerdomain "github.com/smallbiznis/tillway/internal/customer/domain"
	"github.com/smallbiznis/tillway/internal/customer/service"
	"github.com/smallbiznis/tillway/internal/tenant"
	"go.uber.org/fx"
)

// Module provides the customer service and registers its sharded schemas.
var Module = fx.Module("customer.service",
	tenant.ProvideSchema(tenant.EntityCustomers, func() any { return &customerdomain.Customer{} }),
	tenant.ProvideSchema(tenant.EntityCustomerPayments, func() any { return &customerdomain.CustomerPayment{} }),
	fx.Provide(service.NewService),
)
