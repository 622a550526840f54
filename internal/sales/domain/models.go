package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SaleStatus tracks the lifecycle of a sale.
type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusReturned  SaleStatus = "returned"
)

// Sale lives in a per-store sharded collection; the invoice number is unique
// within one store only.
type Sale struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceNumber string          `gorm:"type:text;not null;uniqueIndex" json:"invoice_number"`
	CustomerID    *snowflake.ID   `gorm:"index" json:"customer_id,omitempty"`
	Items         datatypes.JSON  `gorm:"not null" json:"items"`
	Subtotal      decimal.Decimal `gorm:"type:numeric;not null" json:"subtotal"`
	Discount      decimal.Decimal `gorm:"type:numeric;not null" json:"discount"`
	Tax           decimal.Decimal `gorm:"type:numeric;not null" json:"tax"`
	GrandTotal    decimal.Decimal `gorm:"type:numeric;not null" json:"grand_total"`
	Status        SaleStatus      `gorm:"type:text;not null;index" json:"status"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// SaleItem is one line of a sale, serialized into the Items document.
type SaleItem struct {
	ProductID snowflake.ID    `json:"product_id"`
	Barcode   string          `json:"barcode"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

var (
	ErrEmptySale        = errors.New("empty_sale")
	ErrSaleNotFound     = errors.New("sale_not_found")
	ErrAlreadyReturned  = errors.New("sale_already_returned")
	ErrDuplicateInvoice = errors.New("duplicate_invoice_number")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
)
