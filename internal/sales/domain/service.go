package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CreateSaleLine is one requested line item.
type CreateSaleLine struct {
	ProductID snowflake.ID
	Quantity  int64
}

// CreateSaleRequest records a completed sale for one store.
type CreateSaleRequest struct {
	CustomerID *snowflake.ID
	Lines      []CreateSaleLine
	Discount   decimal.Decimal
	Tax        decimal.Decimal
}

// Service is the store-scoped sales surface.
type Service interface {
	CreateSale(ctx context.Context, storeID string, req CreateSaleRequest) (*Sale, error)
	GetSaleByInvoice(ctx context.Context, storeID, invoiceNumber string) (*Sale, error)
	ListSales(ctx context.Context, storeID string, limit, offset int) ([]Sale, error)
	// ProcessReturn restores stock for every line and marks the sale returned.
	ProcessReturn(ctx context.Context, storeID, invoiceNumber string) (*Sale, error)
}
