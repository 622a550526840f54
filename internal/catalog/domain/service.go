package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CreateProductRequest adds a product to one store's catalog.
type CreateProductRequest struct {
	Name       string
	Barcode    string
	BrandID    *snowflake.ID
	CategoryID *snowflake.ID
	UnitID     *snowflake.ID
	Price      decimal.Decimal
	Cost       decimal.Decimal
	Stock      int64
}

// UpdateProductRequest mutates product fields. Nil pointers leave the field
// unchanged.
type UpdateProductRequest struct {
	Name  *string
	Price *decimal.Decimal
	Cost  *decimal.Decimal
}

// Service is the store-scoped catalog surface. Every call carries the
// resolved store id; the tenant resolver is the only component that maps it
// to a physical collection.
type Service interface {
	CreateProduct(ctx context.Context, storeID string, req CreateProductRequest) (*Product, error)
	GetProductByBarcode(ctx context.Context, storeID, barcode string) (*Product, error)
	UpdateProduct(ctx context.Context, storeID string, id snowflake.ID, req UpdateProductRequest) (*Product, error)
	AdjustStock(ctx context.Context, storeID string, id snowflake.ID, delta int64) (*Product, error)
	ListProducts(ctx context.Context, storeID string, limit, offset int) ([]Product, error)
	DeleteProduct(ctx context.Context, storeID string, id snowflake.ID) error

	CreateBrand(ctx context.Context, storeID, name string) (*Brand, error)
	ListBrands(ctx context.Context, storeID string) ([]Brand, error)
	CreateCategory(ctx context.Context, storeID, name string) (*Category, error)
	ListCategories(ctx context.Context, storeID string) ([]Category, error)
	CreateUnit(ctx context.Context, storeID, name, shortName string) (*Unit, error)
	ListUnits(ctx context.Context, storeID string) ([]Unit, error)

	// InvalidateProductCache drops the cached barcode lookup for one product.
	// Sales return processing calls this after restocking.
	InvalidateProductCache(storeID, barcode string)
}
