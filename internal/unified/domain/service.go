package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillway/pkg/db/pagination"
)

// CreateWarehouseRequest is the payload for creating a warehouse.
type CreateWarehouseRequest struct {
	StoreID string `json:"store_id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// CreateMerchantRequest is the payload for creating a merchant.
type CreateMerchantRequest struct {
	StoreID string `json:"store_id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
}

// RecordPaymentRequest is the payload for recording a payment.
type RecordPaymentRequest struct {
	StoreID       string          `json:"store_id"`
	MerchantID    string          `json:"merchant_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
}

// Service exposes the unified-collection operations. Per-store calls scope
// every query by store_id; the ListAll* variants are admin-wide.
type Service interface {
	CreateWarehouse(ctx context.Context, req CreateWarehouseRequest) (*Warehouse, error)
	ListWarehouses(ctx context.Context, storeID string, p pagination.Pagination) ([]Warehouse, error)
	ListAllWarehouses(ctx context.Context, p pagination.Pagination) ([]Warehouse, error)

	CreateMerchant(ctx context.Context, req CreateMerchantRequest) (*Merchant, error)
	ListMerchants(ctx context.Context, storeID string, p pagination.Pagination) ([]Merchant, error)

	RecordPayment(ctx context.Context, req RecordPaymentRequest) (*Payment, error)
	ListPayments(ctx context.Context, storeID string, p pagination.Pagination) ([]Payment, error)
	ListPaymentsByMerchant(ctx context.Context, merchantID string, p pagination.Pagination) ([]Payment, error)

	GetStoreAccount(ctx context.Context, storeID string) (*StoreAccount, error)
	AdjustStoreBalance(ctx context.Context, storeID string, delta decimal.Decimal) (*StoreAccount, error)
}
