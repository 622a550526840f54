package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tillway/pkg/db/pagination"
)

var (
	ErrIdentifierRequired  = errors.New("identifier_required")
	ErrCustomerIDRequired  = errors.New("customer_id_required")
	ErrStoreIDRequired     = errors.New("store_id_required")
	ErrInvalidPoints       = errors.New("invalid_points")
	ErrBelowMinPurchase    = errors.New("below_min_purchase")
	ErrInsufficientPoints  = errors.New("insufficient_points")
	ErrCustomerNotEnrolled = errors.New("customer_not_enrolled")
)

// EarnRequest records points for a purchase at one store. CustomerID is the
// store-local customer row; the global identity is resolved from its phone,
// falling back to email. Percentage overrides the configured earn rate when
// positive.
type EarnRequest struct {
	StoreID        string          `json:"store_id"`
	CustomerID     snowflake.ID    `json:"customer_id"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	Percentage     decimal.Decimal `json:"percentage,omitempty"`
	InvoiceNumber  string          `json:"invoice_number,omitempty"`
}

// RedeemRequest spends points at one store, regardless of where they were
// earned.
type RedeemRequest struct {
	Identifier    string `json:"identifier"`
	StoreID       string `json:"store_id"`
	Points        int64  `json:"points"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
}

// EarnResult reports the ledger entry and updated balance of an earn.
type EarnResult struct {
	Customer    *GlobalCustomer    `json:"customer"`
	Transaction *PointsTransaction `json:"transaction"`
	Balance     *PointsBalance     `json:"balance"`
}

// RedeemResult reports the ledger entry and updated balance of a redemption.
type RedeemResult struct {
	Transaction *PointsTransaction `json:"transaction"`
	Balance     *PointsBalance     `json:"balance"`
}

// Service is the cross-store loyalty ledger.
type Service interface {
	Earn(ctx context.Context, req EarnRequest) (*EarnResult, error)
	Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error)
	Balance(ctx context.Context, identifier string) (*GlobalCustomer, *PointsBalance, error)
	History(ctx context.Context, identifier string, p pagination.Pagination) ([]PointsTransaction, error)
	StoreAccount(ctx context.Context, storeID string) (*StorePointsAccount, error)
}
