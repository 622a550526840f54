package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CreateCustomerRequest registers a store-local customer.
type CreateCustomerRequest struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// RecordPaymentRequest stores a customer payment.
type RecordPaymentRequest struct {
	CustomerID    snowflake.ID
	InvoiceNumber string
	Amount        decimal.Decimal
	Method        string
}

// Service is the store-scoped customer surface.
type Service interface {
	Create(ctx context.Context, storeID string, req CreateCustomerRequest) (*Customer, error)
	GetByID(ctx context.Context, storeID string, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, storeID string, limit, offset int) ([]Customer, error)
	Delete(ctx context.Context, storeID string, id snowflake.ID) error

	RecordPayment(ctx context.Context, storeID string, req RecordPaymentRequest) (*CustomerPayment, error)
	ListPayments(ctx context.Context, storeID string, customerID snowflake.ID) ([]CustomerPayment, error)
}
