package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Product lives in a per-store sharded collection; isolation is physical, so
// no store id is stored on the document.
type Product struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name       string          `gorm:"type:text;not null;index" json:"name"`
	Barcode    string          `gorm:"type:text;not null;uniqueIndex" json:"barcode"`
	BrandID    *snowflake.ID   `gorm:"index" json:"brand_id,omitempty"`
	CategoryID *snowflake.ID   `gorm:"index" json:"category_id,omitempty"`
	UnitID     *snowflake.ID   `gorm:"index" json:"unit_id,omitempty"`
	Price      decimal.Decimal `gorm:"type:numeric;not null" json:"price"`
	Cost       decimal.Decimal `gorm:"type:numeric;not null" json:"cost"`
	Stock      int64           `gorm:"not null;default:0" json:"stock"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Brand is a per-store sharded lookup entity with a store-unique name.
type Brand struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Category is a per-store sharded lookup entity with a store-unique name.
type Category struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Unit is a per-store sharded lookup entity with a store-unique name.
type Unit struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex" json:"name"`
	ShortName string       `gorm:"type:text" json:"short_name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

var (
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidBarcode    = errors.New("invalid_barcode")
	ErrProductNotFound   = errors.New("product_not_found")
	ErrRecordNotFound    = errors.New("record_not_found")
	ErrDuplicateName     = errors.New("duplicate_name")
	ErrDuplicateBarcode  = errors.New("duplicate_barcode")
	ErrInsufficientStock = errors.New("insufficient_stock")
)
