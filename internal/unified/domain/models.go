package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// The entities in this package deliberately bypass the tenant resolver: they
// live in single global tables carrying a store_id column, because they need
// cross-store querying (payments by merchant, admin-wide warehouse listings)
// that a physically sharded layout would make expensive. Every query against
// them must pass through ForStore; admin-wide reads use the explicit
// AllStores marker instead.

// ForStore is the only sanctioned way to scope a unified-table query to one
// store.
func ForStore(storeID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("store_id = ?", storeID)
	}
}

// AllStores deliberately skips the store filter for admin-wide queries. A
// separate function keeps unscoped access greppable.
func AllStores() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB { return db }
}

// Warehouse is a unified entity: admins list warehouses across stores.
type Warehouse struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	StoreID   string       `gorm:"type:text;not null;index" json:"store_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Address   string       `gorm:"type:text" json:"address,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Warehouse) TableName() string { return "warehouses" }

// Merchant is a unified entity: a merchant can be referenced by payments
// across stores.
type Merchant struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	StoreID   string       `gorm:"type:text;not null;index" json:"store_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Phone     string       `gorm:"type:text" json:"phone,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Merchant) TableName() string { return "merchants" }

// Payment is a unified entity: reconciliation queries payments by merchant
// across stores.
type Payment struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	StoreID       string          `gorm:"type:text;not null;index" json:"store_id"`
	MerchantID    *snowflake.ID   `gorm:"index" json:"merchant_id,omitempty"`
	InvoiceNumber string          `gorm:"type:text;index" json:"invoice_number,omitempty"`
	Amount        decimal.Decimal `gorm:"type:numeric;not null" json:"amount"`
	Method        string          `gorm:"type:text;not null" json:"method"`
	Status        string          `gorm:"type:text;not null;default:completed" json:"status"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// StoreAccount is a unified entity: one financial account row per store.
type StoreAccount struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	StoreID   string          `gorm:"type:text;not null;uniqueIndex" json:"store_id"`
	Balance   decimal.Decimal `gorm:"type:numeric;not null" json:"balance"`
	Currency  string          `gorm:"type:text;not null;default:USD" json:"currency"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (StoreAccount) TableName() string { return "store_accounts" }

var (
	ErrStoreIDRequired = errors.New("store_id_required")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrRecordNotFound  = errors.New("record_not_found")
)
