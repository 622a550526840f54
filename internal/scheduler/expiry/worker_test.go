package expiry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	customerdomain "github.com/smallbiznis/tillway/internal/customer/domain"
	loyaltydomain "github.com/smallbiznis/tillway/internal/loyalty/domain"
	loyaltyservice "github.com/smallbiznis/tillway/internal/loyalty/service"
)

// stubCustomers serves store-local customer rows from memory.
type stubCustomers struct {
	customerdomain.Service
	node    *snowflake.Node
	byStore map[string][]customerdomain.Customer
}

func (s *stubCustomers) GetByID(_ context.Context, storeID string, id snowflake.ID) (*customerdomain.Customer, error) {
	for _, c := range s.byStore[storeID] {
		if c.ID == id {
			found := c
			return &found, nil
		}
	}
	return nil, customerdomain.ErrCustomerNotFound
}

func (s *stubCustomers) enroll(storeID, name, email string) snowflake.ID {
	c := customerdomain.Customer{ID: s.node.Generate(), Name: name, Email: email}
	s.byStore[storeID] = append(s.byStore[storeID], c)
	return c.ID
}

type harness struct {
	worker    *Worker
	loyalty   loyaltydomain.Service
	customers *stubCustomers
	db        *gorm.DB
}

func setupHarness(t *testing.T) *harness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&loyaltydomain.GlobalCustomer{},
		&loyaltydomain.PointsBalance{},
		&loyaltydomain.PointsTransaction{},
		&loyaltydomain.StorePointsAccount{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	customers := &stubCustomers{node: node, byStore: make(map[string][]customerdomain.Customer)}
	svc := loyaltyservice.New(db, zap.NewNop(), node, customers, loyaltyservice.Config{
		MinPurchase:    decimal.NewFromInt(10),
		MaxPointsPerTx: 1000,
		EarnPercent:    decimal.NewFromInt(1),
		PointValue:     decimal.NewFromFloat(0.01),
		ExpiryDays:     365,
	})

	worker := &Worker{
		db:    db,
		log:   zap.NewNop(),
		genID: node,
		cfg:   DefaultConfig(),
	}
	return &harness{worker: worker, loyalty: svc, customers: customers, db: db}
}

func (h *harness) earn(t *testing.T, storeID string, amount int64) {
	t.Helper()
	localID := h.customers.enroll(storeID, "Jane", "jane@example.com")
	_, err := h.loyalty.Earn(context.Background(), loyaltydomain.EarnRequest{
		StoreID:        storeID,
		CustomerID:     localID,
		PurchaseAmount: decimal.NewFromInt(amount),
	})
	if err != nil {
		t.Fatalf("earn: %v", err)
	}
}

// forceExpiry backdates every earned transaction so the sweep sees it.
func (h *harness) forceExpiry(t *testing.T) {
	t.Helper()
	past := time.Now().UTC().Add(-time.Hour)
	err := h.db.Model(&loyaltydomain.PointsTransaction{}).
		Where("type = ?", loyaltydomain.TransactionEarned).
		Update("expires_at", past).Error
	if err != nil {
		t.Fatalf("backdate expiry: %v", err)
	}
}

func TestSweepExpiresEarnedPoints(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()

	h.earn(t, "store-a", 1000)
	h.forceExpiry(t)

	processed, err := h.worker.ProcessBatch(ctx, 10)
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed transaction, got %d", processed)
	}

	_, balance, err := h.loyalty.Balance(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.AvailablePoints != 0 {
		t.Fatalf("expected 0 available after expiry, got %d", balance.AvailablePoints)
	}
	if balance.TotalPoints != balance.LifetimeEarned-balance.LifetimeSpent {
		t.Fatalf("ledger broken after expiry: total=%d earned=%d spent=%d",
			balance.TotalPoints, balance.LifetimeEarned, balance.LifetimeSpent)
	}

	// The offsetting entry deducts, so its delta is negative.
	var offset loyaltydomain.PointsTransaction
	err = h.db.First(&offset, "type = ?", loyaltydomain.TransactionExpired).Error
	if err != nil {
		t.Fatalf("load expired entry: %v", err)
	}
	if offset.Points != -10 {
		t.Fatalf("expected expired delta -10, got %d", offset.Points)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()

	h.earn(t, "store-a", 500)
	h.forceExpiry(t)

	if _, err := h.worker.ProcessBatch(ctx, 10); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	processed, err := h.worker.ProcessBatch(ctx, 10)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if processed != 0 {
		t.Fatalf("second sweep should find nothing, processed %d", processed)
	}

	_, balance, err := h.loyalty.Balance(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.LifetimeSpent != 5 {
		t.Fatalf("expected 5 points expired exactly once, spent=%d", balance.LifetimeSpent)
	}
}

func TestSweepCapsAtAvailablePoints(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()

	// Earn 10, redeem 7: only 3 remain to expire.
	h.earn(t, "store-a", 1000)
	if _, err := h.loyalty.Redeem(ctx, loyaltydomain.RedeemRequest{
		Identifier: "jane@example.com",
		StoreID:    "store-b",
		Points:     7,
	}); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	h.forceExpiry(t)

	if _, err := h.worker.ProcessBatch(ctx, 10); err != nil {
		t.Fatalf("process batch: %v", err)
	}

	_, balance, err := h.loyalty.Balance(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.AvailablePoints != 0 {
		t.Fatalf("expected 0 available, got %d", balance.AvailablePoints)
	}
	// 7 redeemed + 3 expired.
	if balance.LifetimeSpent != 10 {
		t.Fatalf("expected lifetime spent 10, got %d", balance.LifetimeSpent)
	}
	if balance.TotalPoints != 0 {
		t.Fatalf("expected total 0, got %d", balance.TotalPoints)
	}
}

func TestSweepSkipsUnexpiredPoints(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()

	h.earn(t, "store-a", 500)

	processed, err := h.worker.ProcessBatch(ctx, 10)
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if processed != 0 {
		t.Fatalf("unexpired points swept: processed %d", processed)
	}
}
