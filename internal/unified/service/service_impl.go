package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smallbiznis/tillway/internal/unified/domain"
	"github.com/smallbiznis/tillway/pkg/db/pagination"
)

// ServiceParam declares the dependencies of the unified service.
type ServiceParam struct {
	fx.In

	DB    *gorm.DB `name:"control"`
	Log   *zap.Logger
	GenID *snowflake.Node
}

// Service implements domain.Service on the control-plane database.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

// NewService constructs the unified service.
func NewService(p ServiceParam) domain.Service {
	return &Service{db: p.DB, log: p.Log, genID: p.GenID}
}

// CreateWarehouse inserts a warehouse row for the store.
func (s *Service) CreateWarehouse(ctx context.Context, req domain.CreateWarehouseRequest) (*domain.Warehouse, error) {
	if strings.TrimSpace(req.StoreID) == "" {
		return nil, domain.ErrStoreIDRequired
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, domain.ErrInvalidName
	}

	wh := domain.Warehouse{
		ID:      s.genID.Generate(),
		StoreID: req.StoreID,
		Name:    strings.TrimSpace(req.Name),
		Address: strings.TrimSpace(req.Address),
	}
	if err := s.db.WithContext(ctx).Create(&wh).Error; err != nil {
		return nil, fmt.Errorf("create warehouse: %w", err)
	}
	return &wh, nil
}

// ListWarehouses lists the store's warehouses.
func (s *Service) ListWarehouses(ctx context.Context, storeID string, p pagination.Pagination) ([]domain.Warehouse, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, domain.ErrStoreIDRequired
	}

	var out []domain.Warehouse
	err := s.db.WithContext(ctx).
		Scopes(domain.ForStore(storeID)).
		Order("created_at DESC").
		Limit(p.Limit()).Offset(p.Offset()).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	return out, nil
}

// ListAllWarehouses lists warehouses across every store.
func (s *Service) ListAllWarehouses(ctx context.Context, p pagination.Pagination) ([]domain.Warehouse, error) {
	var out []domain.Warehouse
	err := s.db.WithContext(ctx).
		Scopes(domain.AllStores()).
		Order("store_id, created_at DESC").
		Limit(p.Limit()).Offset(p.Offset()).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list all warehouses: %w", err)
	}
	return out, nil
}

// CreateMerchant inserts a merchant row for the store.
func (s *Service) CreateMerchant(ctx context.Context, req domain.CreateMerchantRequest) (*domain.Merchant, error) {
	if strings.TrimSpace(req.StoreID) == "" {
		return nil, domain.ErrStoreIDRequired
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, domain.ErrInvalidName
	}

	m := domain.Merchant{
		ID:      s.genID.Generate(),
		StoreID: req.StoreID,
		Name:    strings.TrimSpace(req.Name),
		Phone:   strings.TrimSpace(req.Phone),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, fmt.Errorf("create merchant: %w", err)
	}
	return &m, nil
}

// ListMerchants lists the store's merchants.
func (s *Service) ListMerchants(ctx context.Context, storeID string, p pagination.Pagination) ([]domain.Merchant, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, domain.ErrStoreIDRequired
	}

	var out []domain.Merchant
	err := s.db.WithContext(ctx).
		Scopes(domain.ForStore(storeID)).
		Order("created_at DESC").
		Limit(p.Limit()).Offset(p.Offset()).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	return out, nil
}

// RecordPayment inserts a payment row for the store.
func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (*domain.Payment, error) {
	if strings.TrimSpace(req.StoreID) == "" {
		return nil, domain.ErrStoreIDRequired
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}

	pay := domain.Payment{
		ID:            s.genID.Generate(),
		StoreID:       req.StoreID,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		Amount:        req.Amount,
		Method:        strings.TrimSpace(req.Method),
		Status:        "completed",
	}
	if req.MerchantID != "" {
		mid, err := snowflake.ParseString(req.MerchantID)
		if err != nil {
			return nil, fmt.Errorf("%w: merchant_id", domain.ErrRecordNotFound)
		}
		var m domain.Merchant
		err = s.db.WithContext(ctx).
			Scopes(domain.ForStore(req.StoreID)).
			First(&m, "id = ?", mid).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: merchant %s", domain.ErrRecordNotFound, req.MerchantID)
			}
			return nil, fmt.Errorf("lookup merchant: %w", err)
		}
		pay.MerchantID = &m.ID
	}

	if err := s.db.WithContext(ctx).Create(&pay).Error; err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	return &pay, nil
}

// ListPayments lists the store's payments.
func (s *Service) ListPayments(ctx context.Context, storeID string, p pagination.Pagination) ([]domain.Payment, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, domain.ErrStoreIDRequired
	}

	var out []domain.Payment
	err := s.db.WithContext(ctx).
		Scopes(domain.ForStore(storeID)).
		Order("created_at DESC").
		Limit(p.Limit()).Offset(p.Offset()).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}

// ListPaymentsByMerchant lists payments for one merchant across stores.
func (s *Service) ListPaymentsByMerchant(ctx context.Context, merchantID string, p pagination.Pagination) ([]domain.Payment, error) {
	mid, err := snowflake.ParseString(merchantID)
	if err != nil {
		return nil, fmt.Errorf("%w: merchant_id", domain.ErrRecordNotFound)
	}

	var out []domain.Payment
	err = s.db.WithContext(ctx).
		Scopes(domain.AllStores()).
		Where("merchant_id = ?", mid).
		Order("created_at DESC").
		Limit(p.Limit()).Offset(p.Offset()).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list payments by merchant: %w", err)
	}
	return out, nil
}

// GetStoreAccount returns the store's financial account, creating a zero
// balance row on first access.
func (s *Service) GetStoreAccount(ctx context.Context, storeID string) (*domain.StoreAccount, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, domain.ErrStoreIDRequired
	}

	var acc domain.StoreAccount
	err := s.db.WithContext(ctx).
		Scopes(domain.ForStore(storeID)).
		First(&acc).Error
	if err == nil {
		return &acc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get store account: %w", err)
	}

	acc = domain.StoreAccount{
		ID:        s.genID.Generate(),
		StoreID:   storeID,
		Balance:   decimal.Zero,
		Currency:  "USD",
		UpdatedAt: time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}},
			DoNothing: true,
		}).
		Create(&acc).Error
	if err != nil {
		return nil, fmt.Errorf("create store account: %w", err)
	}
	// Re-read in case a concurrent create won the conflict.
	err = s.db.WithContext(ctx).
		Scopes(domain.ForStore(storeID)).
		First(&acc).Error
	if err != nil {
		return nil, fmt.Errorf("get store account: %w", err)
	}
	return &acc, nil
}

// AdjustStoreBalance applies a signed delta to the store's balance inside a
// transaction.
func (s *Service) AdjustStoreBalance(ctx context.Context, storeID string, delta decimal.Decimal) (*domain.StoreAccount, error) {
	if _, err := s.GetStoreAccount(ctx, storeID); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.StoreAccount{}).
			Scopes(domain.ForStore(storeID)).
			Updates(map[string]any{
				"balance":    gorm.Expr("balance + ?", delta),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("adjust store balance: %w", err)
	}
	return s.GetStoreAccount(ctx, storeID)
}
