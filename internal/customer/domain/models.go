package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Customer is the store-local customer record, physically isolated per
// store. Cross-store identity lives in the loyalty GlobalCustomer.
type Customer struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;index" json:"name"`
	Phone     string       `gorm:"type:text;index" json:"phone,omitempty"`
	Email     string       `gorm:"type:text;index" json:"email,omitempty"`
	Address   string       `gorm:"type:text" json:"address,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// CustomerPayment records a payment received from a store-local customer,
// typically settling a credit sale.
type CustomerPayment struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID    snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	InvoiceNumber string          `gorm:"type:text;index" json:"invoice_number,omitempty"`
	Amount        decimal.Decimal `gorm:"type:numeric;not null" json:"amount"`
	Method        string          `gorm:"type:text;not null" json:"method"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrCustomerNotFound = errors.New("customer_not_found")
)
