package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/tillway/internal/catalog/domain"
	salesdomain "github.com/smallbiznis/tillway/internal/sales/domain"
	"github.com/smallbiznis/tillway/internal/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ServiceParam collects sales dependencies.
type ServiceParam struct {
	fx.In

	Resolver *tenant.Resolver
	Catalog  catalogdomain.Service
	Log      *zap.Logger
	GenID    *snowflake.Node
}

// Service implements sales over per-store sharded collections. A sale and
// its stock decrements live on the same shard, so both run in one
// transaction on the store's connection.
type Service struct {
	resolver *tenant.Resolver
	catalog  catalogdomain.Service
	log      *zap.Logger
	genID    *snowflake.Node

	// genInvoice is swappable so collision handling can be exercised
	// deterministically in tests.
	genInvoice func(prefix string) string
}

// NewService builds the sales service.
func NewService(p ServiceParam) salesdomain.Service {
	return &Service{
		resolver:   p.Resolver,
		catalog:    p.Catalog,
		log:        p.Log.Named("sales.service"),
		genID:      p.GenID,
		genInvoice: generateInvoiceNumber,
	}
}

// CreateSale prices the requested lines from the store's product collection,
// decrements stock and writes the sale, retrying invoice-number collisions a
// bounded number of times.
func (s *Service) CreateSale(ctx context.Context, storeID string, req salesdomain.CreateSaleRequest) (*salesdomain.Sale, error) {
	if len(req.Lines) == 0 {
		return nil, salesdomain.ErrEmptySale
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, salesdomain.ErrInvalidQuantity
		}
	}

	saleModel, err := s.resolver.Model(ctx, tenant.EntitySales, storeID)
	if err != nil {
		return nil, err
	}
	productModel, err := s.resolver.Model(ctx, tenant.EntityProducts, storeID)
	if err != nil {
		return nil, err
	}
	prefix, err := s.resolverPrefix(ctx, storeID)
	if err != nil {
		return nil, err
	}

	var sale salesdomain.Sale
	err = saleModel.Conn(ctx).Transaction(func(tx *gorm.DB) error {
		items := make([]salesdomain.SaleItem, 0, len(req.Lines))
		subtotal := decimal.Zero
		invalidated := make([]string, 0, len(req.Lines))

		for _, line := range req.Lines {
			var product catalogdomain.Product
			if err := tx.Table(productModel.Table()).Where("id = ?", line.ProductID).First(&product).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return catalogdomain.ErrProductNotFound
				}
				return err
			}

			result := tx.Table(productModel.Table()).
				Where("id = ? AND stock >= ?", line.ProductID, line.Quantity).
				Updates(map[string]any{
					"stock":      gorm.Expr("stock - ?", line.Quantity),
					"updated_at": time.Now().UTC(),
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return catalogdomain.ErrInsufficientStock
			}

			lineTotal := product.Price.Mul(decimal.NewFromInt(line.Quantity))
			items = append(items, salesdomain.SaleItem{
				ProductID: product.ID,
				Barcode:   product.Barcode,
				Name:      product.Name,
				Quantity:  line.Quantity,
				UnitPrice: product.Price,
				LineTotal: lineTotal,
			})
			subtotal = subtotal.Add(lineTotal)
			invalidated = append(invalidated, product.Barcode)
		}

		payload, err := json.Marshal(items)
		if err != nil {
			return err
		}

		grandTotal := subtotal.Sub(req.Discount).Add(req.Tax)
		now := time.Now().UTC()
		sale = salesdomain.Sale{
			ID:         s.genID.Generate(),
			CustomerID: req.CustomerID,
			Items:      datatypes.JSON(payload),
			Subtotal:   subtotal,
			Discount:   req.Discount,
			Tax:        req.Tax,
			GrandTotal: grandTotal,
			Status:     salesdomain.SaleStatusCompleted,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := s.insertWithInvoiceRetry(ctx, tx, saleModel.Table(), prefix, &sale); err != nil {
			return err
		}

		// Stock changed; drop stale barcode cache entries. Failure here
		// cannot abort the sale, and Delete cannot fail.
		for _, barcode := range invalidated {
			s.catalog.InvalidateProductCache(storeID, barcode)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// insertWithInvoiceRetry attempts the insert with freshly generated invoice
// numbers, regenerating on duplicate-key failures, and falls back to a
// timestamp-derived number once the retries are used up.
func (s *Service) insertWithInvoiceRetry(ctx context.Context, tx *gorm.DB, table, prefix string, sale *salesdomain.Sale) error {
	for attempt := 0; attempt < invoiceAttempts; attempt++ {
		sale.InvoiceNumber = s.genInvoice(prefix)

		var count int64
		if err := tx.Table(table).Where("invoice_number = ?", sale.InvoiceNumber).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		err := tx.Table(table).Create(sale).Error
		if err == nil {
			return nil
		}
		if !isDuplicateKey(err) {
			return err
		}
		s.log.Warn("invoice number collision, regenerating",
			zap.String("invoice_number", sale.InvoiceNumber),
			zap.Int("attempt", attempt+1))
	}

	sale.InvoiceNumber = fallbackInvoiceNumber(prefix)
	return tx.Table(table).Create(sale).Error
}

// GetSaleByInvoice fetches one sale by its store-unique invoice number.
func (s *Service) GetSaleByInvoice(ctx context.Context, storeID, invoiceNumber string) (*salesdomain.Sale, error) {
	model, err := s.resolver.Model(ctx, tenant.EntitySales, storeID)
	if err != nil {
		return nil, err
	}
	var sale salesdomain.Sale
	if err := model.DB(ctx).Where("invoice_number = ?", strings.TrimSpace(invoiceNumber)).First(&sale).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, salesdomain.ErrSaleNotFound
		}
		return nil, err
	}
	return &sale, nil
}

// ListSales pages through a store's sales, newest first.
func (s *Service) ListSales(ctx context.Context, storeID string, limit, offset int) ([]salesdomain.Sale, error) {
	model, err := s.resolver.Model(ctx, tenant.EntitySales, storeID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var sales []salesdomain.Sale
	if err := model.DB(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

// ProcessReturn restores stock for every line of a completed sale and marks
// it returned. Runs on the store's shard in one transaction.
func (s *Service) ProcessReturn(ctx context.Context, storeID, invoiceNumber string) (*salesdomain.Sale, error) {
	saleModel, err := s.resolver.Model(ctx, tenant.EntitySales, storeID)
	if err != nil {
		return nil, err
	}
	productModel, err := s.resolver.Model(ctx, tenant.EntityProducts, storeID)
	if err != nil {
		return nil, err
	}

	var sale salesdomain.Sale
	err = saleModel.Conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(saleModel.Table()).
			Where("invoice_number = ?", strings.TrimSpace(invoiceNumber)).
			First(&sale).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return salesdomain.ErrSaleNotFound
			}
			return err
		}
		if sale.Status == salesdomain.SaleStatusReturned {
			return salesdomain.ErrAlreadyReturned
		}

		var items []salesdomain.SaleItem
		if err := json.Unmarshal(sale.Items, &items); err != nil {
			return err
		}
		for _, item := range items {
			if err := tx.Table(productModel.Table()).
				Where("id = ?", item.ProductID).
				Updates(map[string]any{
					"stock":      gorm.Expr("stock + ?", item.Quantity),
					"updated_at": time.Now().UTC(),
				}).Error; err != nil {
				return err
			}
			s.catalog.InvalidateProductCache(storeID, item.Barcode)
		}

		sale.Status = salesdomain.SaleStatusReturned
		sale.UpdatedAt = time.Now().UTC()
		return tx.Table(saleModel.Table()).
			Where("id = ?", sale.ID).
			Updates(map[string]any{
				"status":     sale.Status,
				"updated_at": sale.UpdatedAt,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Service) resolverPrefix(ctx context.Context, storeID string) (string, error) {
	model, err := s.resolver.Model(ctx, tenant.EntitySales, storeID)
	if err != nil {
		return "", err
	}
	return model.Prefix(), nil
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
