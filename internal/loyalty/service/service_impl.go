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

	customerdomain "github.com/smallbiznis/tillway/internal/customer/domain"
	"github.com/smallbiznis/tillway/internal/loyalty/domain"
	"github.com/smallbiznis/tillway/internal/observability/logger"
	"github.com/smallbiznis/tillway/internal/observability/metrics"
	"github.com/smallbiznis/tillway/pkg/db/pagination"
)

// Config tunes the points program.
type Config struct {
	MinPurchase    decimal.Decimal
	MaxPointsPerTx int64
	EarnPercent    decimal.Decimal
	PointValue     decimal.Decimal
	ExpiryDays     int
}

func (c *Config) withDefaults() {
	if c.MinPurchase.IsZero() {
		c.MinPurchase = decimal.NewFromInt(10)
	}
	if c.MaxPointsPerTx <= 0 {
		c.MaxPointsPerTx = 1000
	}
	if c.EarnPercent.IsZero() {
		c.EarnPercent = decimal.NewFromInt(1)
	}
	if c.PointValue.IsZero() {
		c.PointValue = decimal.NewFromFloat(0.01)
	}
	if c.ExpiryDays <= 0 {
		c.ExpiryDays = 365
	}
}

// ServiceParam declares the dependencies of the loyalty service.
type ServiceParam struct {
	fx.In

	DB        *gorm.DB `name:"control"`
	Log       *zap.Logger
	GenID     *snowflake.Node
	Customers customerdomain.Service
	Config    Config `optional:"true"`
}

// Service implements the cross-store points ledger on the control-plane
// database. Store-local customer rows are read through the customer service,
// which routes to the owning shard.
type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	customers customerdomain.Service
	cfg       Config
}

// NewService constructs the loyalty service.
func NewService(p ServiceParam) domain.Service {
	return New(p.DB, p.Log, p.GenID, p.Customers, p.Config)
}

// New constructs the loyalty service from explicit dependencies.
func New(db *gorm.DB, log *zap.Logger, genID *snowflake.Node, customers customerdomain.Service, cfg Config) domain.Service {
	cfg.withDefaults()
	return &Service{db: db, log: log, genID: genID, customers: customers, cfg: cfg}
}

// Earn records loyalty points for a purchase. The store-local customer is
// loaded from its shard and its phone (falling back to email) keys the global
// identity. The store link is appended if missing, and the ledger entry plus
// balance update commit in one transaction.
func (s *Service) Earn(ctx context.Context, req domain.EarnRequest) (*domain.EarnResult, error) {
	if strings.TrimSpace(req.StoreID) == "" {
		return nil, domain.ErrStoreIDRequired
	}
	if req.CustomerID == 0 {
		return nil, domain.ErrCustomerIDRequired
	}
	if req.PurchaseAmount.LessThan(s.cfg.MinPurchase) {
		return nil, fmt.Errorf("%w: purchase %s below minimum %s",
			domain.ErrBelowMinPurchase, req.PurchaseAmount, s.cfg.MinPurchase)
	}

	local, err := s.customers.GetByID(ctx, req.StoreID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	identifier, idType := domain.ResolveIdentifier(local.Phone, local.Email)
	if identifier == "" {
		return nil, fmt.Errorf("%w: customer %s has no phone or email", domain.ErrIdentifierRequired, local.ID)
	}

	percentage := req.Percentage
	if percentage.LessThanOrEqual(decimal.Zero) {
		percentage = s.cfg.EarnPercent
	}
	points := domain.ComputeEarnedPoints(req.PurchaseAmount, percentage, s.cfg.MaxPointsPerTx)
	if points <= 0 {
		return nil, domain.ErrInvalidPoints
	}

	now := time.Now().UTC()
	expiresAt := now.AddDate(0, 0, s.cfg.ExpiryDays)
	result := &domain.EarnResult{}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.resolveOrCreateCustomer(tx, identifier, idType, local, req.StoreID, now)
		if err != nil {
			return err
		}

		txn := domain.PointsTransaction{
			ID:             s.genID.Generate(),
			CustomerID:     customer.ID,
			StoreID:        req.StoreID,
			Type:           domain.TransactionEarned,
			Points:         points,
			PointsValue:    s.pointsValue(points),
			PurchaseAmount: req.PurchaseAmount,
			InvoiceNumber:  req.InvoiceNumber,
			ExpiresAt:      &expiresAt,
			CreatedAt:      now,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return fmt.Errorf("insert earn transaction: %w", err)
		}

		balance, err := s.applyBalanceDelta(tx, customer.ID, points, 0, now)
		if err != nil {
			return err
		}

		if err := s.applyStoreAccountDelta(tx, req.StoreID, points, 0, now); err != nil {
			return err
		}

		result.Customer = customer
		result.Transaction = &txn
		result.Balance = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Routing().ObservePointsIssued(req.StoreID, points)
	s.log.Info("points earned",
		zap.String("identifier", logger.MaskIdentifier(identifier)),
		zap.String("store_id", req.StoreID),
		zap.Int64("points", points),
	)
	return result, nil
}

// Redeem spends points at the given store. The balance check and decrement
// are one conditional update so concurrent redemptions cannot overspend.
func (s *Service) Redeem(ctx context.Context, req domain.RedeemRequest) (*domain.RedeemResult, error) {
	identifier := domain.NormalizeIdentifier(req.Identifier)
	if identifier == "" {
		return nil, domain.ErrIdentifierRequired
	}
	if strings.TrimSpace(req.StoreID) == "" {
		return nil, domain.ErrStoreIDRequired
	}
	if req.Points <= 0 {
		return nil, domain.ErrInvalidPoints
	}

	now := time.Now().UTC()
	result := &domain.RedeemResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.findCustomer(tx, identifier)
		if err != nil {
			return err
		}

		res := tx.Model(&domain.PointsBalance{}).
			Where("customer_id = ? AND available_points >= ?", customer.ID, req.Points).
			Updates(map[string]any{
				"available_points": gorm.Expr("available_points - ?", req.Points),
				"total_points":     gorm.Expr("total_points - ?", req.Points),
				"lifetime_spent":   gorm.Expr("lifetime_spent + ?", req.Points),
				"updated_at":       now,
			})
		if res.Error != nil {
			return fmt.Errorf("decrement balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrInsufficientPoints
		}

		// Spent entries carry a negative delta; the sign encodes direction.
		txn := domain.PointsTransaction{
			ID:            s.genID.Generate(),
			CustomerID:    customer.ID,
			StoreID:       req.StoreID,
			Type:          domain.TransactionSpent,
			Points:        -req.Points,
			PointsValue:   s.pointsValue(-req.Points),
			InvoiceNumber: req.InvoiceNumber,
			CreatedAt:     now,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return fmt.Errorf("insert redeem transaction: %w", err)
		}

		if err := s.applyStoreAccountDelta(tx, req.StoreID, 0, req.Points, now); err != nil {
			return err
		}

		var balance domain.PointsBalance
		if err := tx.First(&balance, "customer_id = ?", customer.ID).Error; err != nil {
			return fmt.Errorf("reload balance: %w", err)
		}

		result.Transaction = &txn
		result.Balance = &balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Routing().ObservePointsRedeemed(req.StoreID, req.Points)
	s.log.Info("points redeemed",
		zap.String("identifier", logger.MaskIdentifier(identifier)),
		zap.String("store_id", req.StoreID),
		zap.Int64("points", req.Points),
	)
	return result, nil
}

// Balance returns the customer and their current points balance.
func (s *Service) Balance(ctx context.Context, identifier string) (*domain.GlobalCustomer, *domain.PointsBalance, error) {
	normalized := domain.NormalizeIdentifier(identifier)
	if normalized == "" {
		return nil, nil, domain.ErrIdentifierRequired
	}

	customer, err := s.findCustomer(s.db.WithContext(ctx), normalized)
	if err != nil {
		return nil, nil, err
	}

	var balance domain.PointsBalance
	err = s.db.WithContext(ctx).First(&balance, "customer_id = ?", customer.ID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			balance = domain.PointsBalance{CustomerID: customer.ID}
			return customer, &balance, nil
		}
		return nil, nil, fmt.Errorf("load balance: %w", err)
	}
	return customer, &balance, nil
}

// History lists the customer's ledger entries, newest first.
func (s *Service) History(ctx context.Context, identifier string, p pagination.Pagination) ([]domain.PointsTransaction, error) {
	normalized := domain.NormalizeIdentifier(identifier)
	if normalized == "" {
		return nil, domain.ErrIdentifierRequired
	}

	customer, err := s.findCustomer(s.db.WithContext(ctx), normalized)
	if err != nil {
		return nil, err
	}

	var out []domain.PointsTransaction
	err = s.db.WithContext(ctx).
		Where("customer_id = ?", customer.ID).
		Order("created_at DESC, id DESC").
		Limit(p.Limit()).Offset(p.Offset()).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// StoreAccount returns the store's points settlement account.
func (s *Service) StoreAccount(ctx context.Context, storeID string) (*domain.StorePointsAccount, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, domain.ErrStoreIDRequired
	}

	var acc domain.StorePointsAccount
	err := s.db.WithContext(ctx).First(&acc, "store_id = ?", storeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			acc = domain.StorePointsAccount{StoreID: storeID}
			acc.Recalculate(s.cfg.PointValue)
			return &acc, nil
		}
		return nil, fmt.Errorf("load store account: %w", err)
	}
	return &acc, nil
}

func (s *Service) pointsValue(points int64) decimal.Decimal {
	return decimal.NewFromInt(points).Mul(s.cfg.PointValue)
}

func (s *Service) findCustomer(tx *gorm.DB, identifier string) (*domain.GlobalCustomer, error) {
	var customer domain.GlobalCustomer
	err := tx.First(&customer, "identifier = ?", identifier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCustomerNotEnrolled
		}
		return nil, fmt.Errorf("lookup customer: %w", err)
	}
	return &customer, nil
}

func (s *Service) resolveOrCreateCustomer(tx *gorm.DB, identifier string, idType domain.IdentifierType, local *customerdomain.Customer, storeID string, now time.Time) (*domain.GlobalCustomer, error) {
	link := domain.StoreLink{
		StoreID:      storeID,
		CustomerID:   local.ID,
		CustomerName: local.Name,
		RegisteredAt: now,
	}

	var customer domain.GlobalCustomer
	err := tx.First(&customer, "identifier = ?", identifier).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		customer = domain.GlobalCustomer{
			ID:             s.genID.Generate(),
			Identifier:     identifier,
			IdentifierType: idType,
			Name:           strings.TrimSpace(local.Name),
			Phone:          strings.TrimSpace(local.Phone),
			Email:          strings.TrimSpace(local.Email),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := customer.AppendStoreLink(link); err != nil {
			return nil, fmt.Errorf("encode store links: %w", err)
		}
		if err := tx.Create(&customer).Error; err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		return &customer, nil
	default:
		return nil, fmt.Errorf("lookup customer: %w", err)
	}

	changed, err := customer.AppendStoreLink(link)
	if err != nil {
		return nil, fmt.Errorf("encode store links: %w", err)
	}
	if changed {
		err = tx.Model(&domain.GlobalCustomer{}).
			Where("id = ?", customer.ID).
			Updates(map[string]any{"stores": customer.Stores, "updated_at": now}).Error
		if err != nil {
			return nil, fmt.Errorf("append store link: %w", err)
		}
	}
	return &customer, nil
}

func (s *Service) applyBalanceDelta(tx *gorm.DB, customerID snowflake.ID, earned, spent int64, now time.Time) (*domain.PointsBalance, error) {
	balance := domain.PointsBalance{
		ID:              s.genID.Generate(),
		CustomerID:      customerID,
		AvailablePoints: earned - spent,
		TotalPoints:     earned - spent,
		LifetimeEarned:  earned,
		LifetimeSpent:   spent,
		UpdatedAt:       now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "customer_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"available_points": gorm.Expr("available_points + ?", earned-spent),
			"total_points":     gorm.Expr("total_points + ?", earned-spent),
			"lifetime_earned":  gorm.Expr("lifetime_earned + ?", earned),
			"lifetime_spent":   gorm.Expr("lifetime_spent + ?", spent),
			"updated_at":       now,
		}),
	}).Create(&balance).Error
	if err != nil {
		return nil, fmt.Errorf("upsert balance: %w", err)
	}

	var fresh domain.PointsBalance
	if err := tx.First(&fresh, "customer_id = ?", customerID).Error; err != nil {
		return nil, fmt.Errorf("reload balance: %w", err)
	}
	return &fresh, nil
}

func (s *Service) applyStoreAccountDelta(tx *gorm.DB, storeID string, issued, redeemed int64, now time.Time) error {
	var acc domain.StorePointsAccount
	err := tx.First(&acc, "store_id = ?", storeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acc = domain.StorePointsAccount{
			ID:      s.genID.Generate(),
			StoreID: storeID,
		}
	} else if err != nil {
		return fmt.Errorf("load store account: %w", err)
	}

	acc.PointsIssued += issued
	acc.PointsRedeemed += redeemed
	acc.Recalculate(s.cfg.PointValue)
	acc.UpdatedAt = now

	if err := tx.Save(&acc).Error; err != nil {
		return fmt.Errorf("save store account: %w", err)
	}
	return nil
}
