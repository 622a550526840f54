package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	authdomain "github.com/smallbiznis/tillway/internal/auth/domain"
	catalogdomain "github.com/smallbiznis/tillway/internal/catalog/domain"
	"github.com/smallbiznis/tillway/internal/config"
	customerdomain "github.com/smallbiznis/tillway/internal/customer/domain"
	loyaltydomain "github.com/smallbiznis/tillway/internal/loyalty/domain"
	"github.com/smallbiznis/tillway/internal/observability/logger"
	"github.com/smallbiznis/tillway/internal/observability/tracing"
	salesdomain "github.com/smallbiznis/tillway/internal/sales/domain"
	"github.com/smallbiznis/tillway/internal/settings"
	storedomain "github.com/smallbiznis/tillway/internal/store/domain"
	"github.com/smallbiznis/tillway/internal/tenant"
	unifieddomain "github.com/smallbiznis/tillway/internal/unified/domain"
)

// Params declares the dependencies of the HTTP server.
type Params struct {
	fx.In

	Config      config.Config
	Log         *zap.Logger
	StoreSvc    storedomain.Directory
	Resolver    *tenant.Resolver
	CatalogSvc  catalogdomain.Service
	SalesSvc    salesdomain.Service
	CustomerSvc customerdomain.Service
	SettingsSvc *settings.Service
	UnifiedSvc  unifieddomain.Service
	LoyaltySvc  loyaltydomain.Service
	AuthSvc     authdomain.Service
}

// Server holds the gin engine and the services the handlers call.
type Server struct {
	cfg         config.Config
	log         *zap.Logger
	storeSvc    storedomain.Directory
	resolver    *tenant.Resolver
	catalogSvc  catalogdomain.Service
	salesSvc    salesdomain.Service
	customerSvc customerdomain.Service
	settingsSvc *settings.Service
	unifiedSvc  unifieddomain.Service
	loyaltySvc  loyaltydomain.Service
	authSvc     authdomain.Service
}

// NewServer constructs the HTTP server.
func NewServer(p Params) *Server {
	return &Server{
		cfg:         p.Config,
		log:         p.Log,
		storeSvc:    p.StoreSvc,
		resolver:    p.Resolver,
		catalogSvc:  p.CatalogSvc,
		salesSvc:    p.SalesSvc,
		customerSvc: p.CustomerSvc,
		settingsSvc: p.SettingsSvc,
		unifiedSvc:  p.UnifiedSvc,
		loyaltySvc:  p.LoyaltySvc,
		authSvc:     p.AuthSvc,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(tracing.Middleware("tillway"))
	r.Use(s.requestLogger())

	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	v1.POST("/auth/login", s.Login)

	// Store onboarding and directory lookups are admin surface, outside the
	// per-store session scope.
	admin := v1.Group("/admin")
	{
		admin.POST("/stores", s.CreateStore)
		admin.GET("/stores", s.ListStores)
		admin.GET("/stores/:id", s.GetStore)
		admin.DELETE("/stores/:id", s.DeleteStore)
		admin.GET("/warehouses", s.ListAllWarehouses)
	}

	// Everything below operates on the store bound to the caller's session.
	authed := v1.Group("", s.SessionRequired())
	{
		authed.POST("/auth/logout", s.Logout)

		authed.POST("/products", s.CreateProduct)
		authed.GET("/products", s.ListProducts)
		authed.GET("/products/barcode/:barcode", s.GetProductByBarcode)
		authed.PATCH("/products/:id", s.UpdateProduct)
		authed.POST("/products/:id/stock", s.AdjustStock)
		authed.DELETE("/products/:id", s.DeleteProduct)

		authed.POST("/brands", s.CreateBrand)
		authed.GET("/brands", s.ListBrands)
		authed.POST("/categories", s.CreateCategory)
		authed.GET("/categories", s.ListCategories)
		authed.POST("/units", s.CreateUnit)
		authed.GET("/units", s.ListUnits)

		authed.POST("/sales", s.CreateSale)
		authed.GET("/sales", s.ListSales)
		authed.GET("/sales/:invoice", s.GetSaleByInvoice)
		authed.POST("/sales/:invoice/return", s.ProcessReturn)

		authed.POST("/customers", s.CreateCustomer)
		authed.GET("/customers", s.ListCustomers)
		authed.GET("/customers/:id", s.GetCustomer)
		authed.DELETE("/customers/:id", s.DeleteCustomer)
		authed.POST("/customers/:id/payments", s.RecordCustomerPayment)
		authed.GET("/customers/:id/payments", s.ListCustomerPayments)

		authed.GET("/settings", s.GetSettings)
		authed.PUT("/settings", s.UpdateSettings)

		authed.POST("/warehouses", s.CreateWarehouse)
		authed.GET("/warehouses", s.ListWarehouses)
		authed.POST("/merchants", s.CreateMerchant)
		authed.GET("/merchants", s.ListMerchants)
		authed.POST("/payments", s.RecordPayment)
		authed.GET("/payments", s.ListPayments)
		authed.GET("/account", s.GetStoreAccount)

		authed.POST("/loyalty/earn", s.EarnPoints)
		authed.POST("/loyalty/redeem", s.RedeemPoints)
		authed.GET("/loyalty/balance", s.LoyaltyBalance)
		authed.GET("/loyalty/history", s.LoyaltyHistory)
		authed.GET("/loyalty/account", s.LoyaltyStoreAccount)
	}

	return r
}

// Health reports liveness.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		// Pick the logger off the request context so entries carry the
		// trace and span ids of the surrounding server span.
		logger.FromContext(c.Request.Context()).Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("authorization", logger.MaskAuthorization(c.GetHeader("Authorization"))),
		)
	}
}

// Module runs the HTTP server for the lifetime of the process.
var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(runServer),
)

func runServer(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
