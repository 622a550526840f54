package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillway/internal/cache"
	catalogdomain "github.com/smallbiznis/tillway/internal/catalog/domain"
	"github.com/smallbiznis/tillway/internal/tenant"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ServiceParam collects catalog dependencies.
type ServiceParam struct {
	fx.In

	Resolver *tenant.Resolver
	Log      *zap.Logger
	GenID    *snowflake.Node
	Cache    cache.Cache[string, catalogdomain.Product] `optional:"true"`
	CacheTTL time.Duration                              `name:"product_cache_ttl" optional:"true"`
}

// Service implements the catalog over per-store sharded collections.
type Service struct {
	resolver *tenant.Resolver
	log      *zap.Logger
	genID    *snowflake.Node

	// Read-through cache on the hot barcode lookup path, keyed
	// "product:{storeId}:{barcode}".
	cache    cache.Cache[string, catalogdomain.Product]
	cacheTTL time.Duration
}

// NewService builds the catalog service.
func NewService(p ServiceParam) catalogdomain.Service {
	productCache := p.Cache
	if productCache == nil {
		productCache = cache.NoopCache[string, catalogdomain.Product]{}
	}
	ttl := p.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		resolver: p.Resolver,
		log:      p.Log.Named("catalog.service"),
		genID:    p.GenID,
		cache:    productCache,
		cacheTTL: ttl,
	}
}

func productCacheKey(storeID, barcode string) string {
	return fmt.Sprintf("product:%s:%s", storeID, barcode)
}

// CreateProduct inserts a product into the store's product collection.
func (s *Service) CreateProduct(ctx context.Context, storeID string, req catalogdomain.CreateProductRequest) (*catalogdomain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	barcode := strings.TrimSpace(req.Barcode)
	if barcode == "" {
		return nil, catalogdomain.ErrInvalidBarcode
	}

	model, err := s.resolver.Model(ctx, tenant.EntityProducts, storeID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := catalogdomain.Product{
		ID:         s.genID.Generate(),
		Name:       name,
		Barcode:    barcode,
		BrandID:    req.BrandID,
		CategoryID: req.CategoryID,
		UnitID:     req.UnitID,
		Price:      req.Price,
		Cost:       req.Cost,
		Stock:      req.Stock,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := model.DB(ctx).Create(&product).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, catalogdomain.ErrDuplicateBarcode
		}
		return nil, err
	}
	return &product, nil
}

// GetProductByBarcode serves the hot lookup path through the read-through
// cache.
func (s *Service) GetProductByBarcode(ctx context.Context, storeID, barcode string) (*catalogdomain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, catalogdomain.ErrInvalidBarcode
	}

	key := productCacheKey(storeID, barcode)
	if cached, ok := s.cache.Get(key); ok {
		return &cached, nil
	}

	model, err := s.resolver.Model(ctx, tenant.EntityProducts, storeID)
	if err != nil {
		return nil, err
	}

	var product catalogdomain.Product
	if err := model.DB(ctx).Where("barcode = ?", barcode).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogdomain.ErrProductNotFound
		}
		return nil, err
	}

	s.cache.Set(key, product, s.cacheTTL)
	return &product, nil
}

// UpdateProduct applies field changes and invalidates the barcode cache.
func (s *Service) UpdateProduct(ctx context.Context, storeID string, id snowflake.ID, req catalogdomain.UpdateProductRequest) (*catalogdomain.Product, error) {
	model, err := s.resolver.Model(ctx, tenant.EntityProducts, storeID)
	if err != nil {
		return nil, err
	}

	var product catalogdomain.Product
	if err := model.DB(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogdomain.ErrProductNotFound
		}
		return nil, err
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.Cost != nil {
		updates["cost"] = *req.Cost
	}
	if err := model.DB(ctx).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}

	s.cache.Delete(productCacheKey(storeID, product.Barcode))

	if err := model.DB(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// AdjustStock applies a signed stock delta, guarding against negative stock,
// and invalidates the barcode cache.
func (s *Service) AdjustStock(ctx context.Context, storeID string, id snowflake.ID, delta int64) (*catalogdomain.Product, error) {
	model, err := s.resolver.Model(ctx, tenant.EntityProducts, storeID)
	if err != nil {
		return nil, err
	}

	var product catalogdomain.Product
	err = model.Conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(model.Table()).Where("id = ?", id).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return catalogdomain.ErrProductNotFound
			}
			return err
		}
		if product.Stock+delta < 0 {
			return catalogdomain.ErrInsufficientStock
		}
		result := tx.Table(model.Table()).
			Where("id = ? AND stock + ? >= 0", id, delta).
			Updates(map[string]any{
				"stock":      gorm.Expr("stock + ?", delta),
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return catalogdomain.ErrInsufficientStock
		}
		return tx.Table(model.Table()).Where("id = ?", id).First(&product).Error
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(productCacheKey(storeID, product.Barcode))
	return &product, nil
}

// ListProducts pages through the store's catalog.
func (s *Service) ListProducts(ctx context.Context, storeID string, limit, offset int) ([]catalogdomain.Product, error) {
	model, err := s.resolver.Model(ctx, tenant.EntityProducts, storeID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var products []catalogdomain.Product
	if err := model.DB(ctx).Order("name ASC").Limit(limit).Offset(offset).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// DeleteProduct removes a product and invalidates its cache entry.
func (s *Service) DeleteProduct(ctx context.Context, storeID string, id snowflake.ID) error {
	model, err := s.resolver.Model(ctx, tenant.EntityProducts, storeID)
	if err != nil {
		return err
	}

	var product catalogdomain.Product
	if err := model.DB(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return catalogdomain.ErrProductNotFound
		}
		return err
	}
	if err := model.DB(ctx).Where("id = ?", id).Delete(&catalogdomain.Product{}).Error; err != nil {
		return err
	}
	s.cache.Delete(productCacheKey(storeID, product.Barcode))
	return nil
}

// CreateBrand inserts a brand; name collisions surface to the caller.
func (s *Service) CreateBrand(ctx context.Context, storeID, name string) (*catalogdomain.Brand, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	model, err := s.resolver.Model(ctx, tenant.EntityBrands, storeID)
	if err != nil {
		return nil, err
	}
	brand := catalogdomain.Brand{
		ID:        s.genID.Generate(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := model.DB(ctx).Create(&brand).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, catalogdomain.ErrDuplicateName
		}
		return nil, err
	}
	return &brand, nil
}

// ListBrands returns the store's brands.
func (s *Service) ListBrands(ctx context.Context, storeID string) ([]catalogdomain.Brand, error) {
	model, err := s.resolver.Model(ctx, tenant.EntityBrands, storeID)
	if err != nil {
		return nil, err
	}
	var brands []catalogdomain.Brand
	if err := model.DB(ctx).Order("name ASC").Find(&brands).Error; err != nil {
		return nil, err
	}
	return brands, nil
}

// CreateCategory inserts a category; name collisions surface to the caller.
func (s *Service) CreateCategory(ctx context.Context, storeID, name string) (*catalogdomain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	model, err := s.resolver.Model(ctx, tenant.EntityCategories, storeID)
	if err != nil {
		return nil, err
	}
	category := catalogdomain.Category{
		ID:        s.genID.Generate(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := model.DB(ctx).Create(&category).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, catalogdomain.ErrDuplicateName
		}
		return nil, err
	}
	return &category, nil
}

// ListCategories returns the store's categories.
func (s *Service) ListCategories(ctx context.Context, storeID string) ([]catalogdomain.Category, error) {
	model, err := s.resolver.Model(ctx, tenant.EntityCategories, storeID)
	if err != nil {
		return nil, err
	}
	var categories []catalogdomain.Category
	if err := model.DB(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateUnit inserts a unit; name collisions surface to the caller.
func (s *Service) CreateUnit(ctx context.Context, storeID, name, shortName string) (*catalogdomain.Unit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	model, err := s.resolver.Model(ctx, tenant.EntityUnits, storeID)
	if err != nil {
		return nil, err
	}
	unit := catalogdomain.Unit{
		ID:        s.genID.Generate(),
		Name:      name,
		ShortName: strings.TrimSpace(shortName),
		CreatedAt: time.Now().UTC(),
	}
	if err := model.DB(ctx).Create(&unit).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, catalogdomain.ErrDuplicateName
		}
		return nil, err
	}
	return &unit, nil
}

// ListUnits returns the store's units.
func (s *Service) ListUnits(ctx context.Context, storeID string) ([]catalogdomain.Unit, error) {
	model, err := s.resolver.Model(ctx, tenant.EntityUnits, storeID)
	if err != nil {
		return nil, err
	}
	var units []catalogdomain.Unit
	if err := model.DB(ctx).Order("name ASC").Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// InvalidateProductCache drops a cached barcode lookup. Return processing
// calls this after restocking.
func (s *Service) InvalidateProductCache(storeID, barcode string) {
	s.cache.Delete(productCacheKey(storeID, barcode))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
