package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	customerdomain "github.com/smallbiznis/tillway/internal/customer/domain"
	"github.com/smallbiznis/tillway/internal/loyalty/domain"
	"github.com/smallbiznis/tillway/pkg/db/pagination"
)

// stubCustomers serves store-local customer rows from memory, standing in
// for the shard-routed customer service.
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

func (s *stubCustomers) enroll(storeID, name, phone, email string) snowflake.ID {
	c := customerdomain.Customer{
		ID:    s.node.Generate(),
		Name:  name,
		Phone: phone,
		Email: email,
	}
	s.byStore[storeID] = append(s.byStore[storeID], c)
	return c.ID
}

func setupService(t *testing.T) (*Service, *stubCustomers) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&domain.GlobalCustomer{},
		&domain.PointsBalance{},
		&domain.PointsTransaction{},
		&domain.StorePointsAccount{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	customers := &stubCustomers{node: node, byStore: make(map[string][]customerdomain.Customer)}
	cfg := Config{
		MinPurchase:    decimal.NewFromInt(10),
		MaxPointsPerTx: 1000,
		EarnPercent:    decimal.NewFromInt(1),
		PointValue:     decimal.NewFromFloat(0.01),
		ExpiryDays:     365,
	}
	return &Service{db: db, log: zap.NewNop(), genID: node, customers: customers, cfg: cfg}, customers
}

// assertLedgerConserved checks the balance invariant
// total == lifetime_earned - lifetime_spent and that available never exceeds
// total.
func assertLedgerConserved(t *testing.T, b *domain.PointsBalance) {
	t.Helper()
	if b.TotalPoints != b.LifetimeEarned-b.LifetimeSpent {
		t.Fatalf("ledger broken: total=%d earned=%d spent=%d",
			b.TotalPoints, b.LifetimeEarned, b.LifetimeSpent)
	}
	if b.AvailablePoints > b.TotalPoints {
		t.Fatalf("available %d exceeds total %d", b.AvailablePoints, b.TotalPoints)
	}
	if b.AvailablePoints < 0 {
		t.Fatalf("available went negative: %d", b.AvailablePoints)
	}
}

func TestEarnCreatesCustomerAndBalance(t *testing.T) {
	svc, customers := setupService(t)
	ctx := context.Background()
	localID := customers.enroll("store-a", "Jane Doe", "", " Jane.Doe@Example.COM ")

	res, err := svc.Earn(ctx, domain.EarnRequest{
		StoreID:        "store-a",
		CustomerID:     localID,
		PurchaseAmount: decimal.NewFromInt(250),
	})
	if err != nil {
		t.Fatalf("earn: %v", err)
	}
	// 1% of 250, floored.
	if res.Transaction.Points != 2 {
		t.Fatalf("expected 2 points, got %d", res.Transaction.Points)
	}
	if !res.Transaction.PointsValue.Equal(decimal.NewFromFloat(0.02)) {
		t.Fatalf("expected points value 0.02, got %s", res.Transaction.PointsValue)
	}
	if res.Customer.Identifier != "jane.doe@example.com" {
		t.Fatalf("identifier not normalized: %q", res.Customer.Identifier)
	}
	if res.Customer.IdentifierType != domain.IdentifierEmail {
		t.Fatalf("expected email identifier type, got %q", res.Customer.IdentifierType)
	}
	links, err := res.Customer.StoreLinks()
	if err != nil {
		t.Fatalf("store links: %v", err)
	}
	if len(links) != 1 || links[0].StoreID != "store-a" {
		t.Fatalf("unexpected links: %+v", links)
	}
	if links[0].CustomerID != localID || links[0].CustomerName != "Jane Doe" {
		t.Fatalf("link missing local customer: %+v", links[0])
	}
	if links[0].RegisteredAt.IsZero() {
		t.Fatalf("link missing registration time")
	}
	if res.Transaction.ExpiresAt == nil {
		t.Fatalf("earned transaction missing expiry")
	}
	assertLedgerConserved(t, res.Balance)
}

func TestEarnAcrossStoresAppendsLinksOnce(t *testing.T) {
	svc, customers := setupService(t)
	ctx := context.Background()

	// The same person exists as a separate local record in each store; the
	// shared phone number unifies them.
	ids := map[string]snowflake.ID{
		"store-a": customers.enroll("store-a", "Jane", "+1 (555) 010-2030", ""),
		"store-b": customers.enroll("store-b", "Jane D.", "+1 (555) 010-2030", ""),
	}

	for _, store := range []string{"store-a", "store-b", "store-a"} {
		_, err := svc.Earn(ctx, domain.EarnRequest{
			StoreID:        store,
			CustomerID:     ids[store],
			PurchaseAmount: decimal.NewFromInt(100),
		})
		if err != nil {
			t.Fatalf("earn at %s: %v", store, err)
		}
	}

	customer, balance, err := svc.Balance(ctx, "+15550102030")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if customer.IdentifierType != domain.IdentifierPhone {
		t.Fatalf("expected phone identifier type, got %q", customer.IdentifierType)
	}
	links, err := customer.StoreLinks()
	if err != nil {
		t.Fatalf("store links: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 store links, got %d", len(links))
	}
	for _, link := range links {
		if link.CustomerID != ids[link.StoreID] {
			t.Fatalf("link for %s carries wrong local customer: %+v", link.StoreID, link)
		}
	}
	if balance.AvailablePoints != 3 {
		t.Fatalf("expected 3 points across stores, got %d", balance.AvailablePoints)
	}
	assertLedgerConserved(t, balance)
}

func TestEarnPrefersPhoneOverEmail(t *testing.T) {
	svc, customers := setupService(t)
	localID := customers.enroll("store-a", "Jane", "+1 555 010 2030", "jane@example.com")

	res, err := svc.Earn(context.Background(), domain.EarnRequest{
		StoreID:        "store-a",
		CustomerID:     localID,
		PurchaseAmount: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("earn: %v", err)
	}
	if res.Customer.Identifier != "+15550102030" {
		t.Fatalf("expected phone identifier, got %q", res.Customer.Identifier)
	}
	if res.Customer.IdentifierType != domain.IdentifierPhone {
		t.Fatalf("expected phone identifier type, got %q", res.Customer.IdentifierType)
	}
	if res.Customer.Email != "jane@example.com" {
		t.Fatalf("email not kept on global record: %q", res.Customer.Email)
	}
}

func TestEarnRequiresContactInfo(t *testing.T) {
	svc, customers := setupService(t)
	localID := customers.enroll("store-a", "Walk-in", "", "")

	_, err := svc.Earn(context.Background(), domain.EarnRequest{
		StoreID:        "store-a",
		CustomerID:     localID,
		PurchaseAmount: decimal.NewFromInt(100),
	})
	if !errors.Is(err, domain.ErrIdentifierRequired) {
		t.Fatalf("expected ErrIdentifierRequired, got %v", err)
	}
}

func TestEarnUnknownLocalCustomer(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Earn(context.Background(), domain.EarnRequest{
		StoreID:        "store-a",
		CustomerID:     snowflake.ID(12345),
		PurchaseAmount: decimal.NewFromInt(100),
	})
	if !errors.Is(err, customerdomain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestEarnRejectsBelowMinPurchase(t *testing.T) {
	svc, customers := setupService(t)
	localID := customers.enroll("store-a", "Jane", "", "jane@example.com")

	_, err := svc.Earn(context.Background(), domain.EarnRequest{
		StoreID:        "store-a",
		CustomerID:     localID,
		PurchaseAmount: decimal.NewFromInt(5),
	})
	if !errors.Is(err, domain.ErrBelowMinPurchase) {
		t.Fatalf("expected ErrBelowMinPurchase, got %v", err)
	}
}

func TestEarnClampsToMaxPointsPerTx(t *testing.T) {
	svc, customers := setupService(t)
	localID := customers.enroll("store-a", "Whale", "", "whale@example.com")

	res, err := svc.Earn(context.Background(), domain.EarnRequest{
		StoreID:        "store-a",
		CustomerID:     localID,
		PurchaseAmount: decimal.NewFromInt(500000),
	})
	if err != nil {
		t.Fatalf("earn: %v", err)
	}
	if res.Transaction.Points != 1000 {
		t.Fatalf("expected clamp to 1000 points, got %d", res.Transaction.Points)
	}
}

func TestEarnUsesPerCallPercentage(t *testing.T) {
	svc, customers := setupService(t)
	localID := customers.enroll("store-a", "Jane", "", "jane@example.com")

	// Promotional 5% rate overrides the configured 1%.
	res, err := svc.Earn(context.Background(), domain.EarnRequest{
		StoreID:        "store-a",
		CustomerID:     localID,
		PurchaseAmount: decimal.NewFromInt(250),
		Percentage:     decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("earn: %v", err)
	}
	if res.Transaction.Points != 12 {
		t.Fatalf("expected 12 points at 5%%, got %d", res.Transaction.Points)
	}
}

func TestRedeemAtAnotherStore(t *testing.T) {
	svc, customers := setupService(t)
	ctx := context.Background()
	localID := customers.enroll("store-a", "Jane", "", "jane@example.com")

	if _, err := svc.Earn(ctx, domain.EarnRequest{
		StoreID:        "store-a",
		CustomerID:     localID,
		PurchaseAmount: decimal.NewFromInt(1000),
	}); err != nil {
		t.Fatalf("earn: %v", err)
	}

	// Points earned at store-a are spendable at store-b.
	res, err := svc.Redeem(ctx, domain.RedeemRequest{
		Identifier: "JANE@example.com",
		StoreID:    "store-b",
		Points:     6,
	})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.Balance.AvailablePoints != 4 {
		t.Fatalf("expected 4 points left, got %d", res.Balance.AvailablePoints)
	}
	if res.Transaction.Type != domain.TransactionSpent {
		t.Fatalf("expected spent entry, got %q", res.Transaction.Type)
	}
	if res.Transaction.Points != -6 {
		t.Fatalf("spent entry must carry a negative delta, got %d", res.Transaction.Points)
	}
	if !res.Transaction.PointsValue.Equal(decimal.NewFromFloat(-0.06)) {
		t.Fatalf("expected points value -0.06, got %s", res.Transaction.PointsValue)
	}
	assertLedgerConserved(t, res.Balance)

	// Settlement: both sides carry the magnitude of their net position.
	redeemer, err := svc.StoreAccount(ctx, "store-b")
	if err != nil {
		t.Fatalf("store account: %v", err)
	}
	if redeemer.PointsRedeemed != 6 || redeemer.PointsIssued != 0 {
		t.Fatalf("unexpected store-b counters: issued=%d redeemed=%d", redeemer.PointsIssued, redeemer.PointsRedeemed)
	}
	if redeemer.NetPointsBalance != -6 {
		t.Fatalf("expected net points -6, got %d", redeemer.NetPointsBalance)
	}
	if !redeemer.NetFinancialBalance.Equal(decimal.NewFromFloat(-0.06)) {
		t.Fatalf("expected net financial -0.06, got %s", redeemer.NetFinancialBalance)
	}
	if !redeemer.AmountOwed.Equal(decimal.NewFromFloat(0.06)) {
		t.Fatalf("expected amount owed 0.06, got %s", redeemer.AmountOwed)
	}

	issuer, err := svc.StoreAccount(ctx, "store-a")
	if err != nil {
		t.Fatalf("store account: %v", err)
	}
	if issuer.NetPointsBalance != 10 {
		t.Fatalf("expected net points 10, got %d", issuer.NetPointsBalance)
	}
	if !issuer.TotalPointsValueIssued.Equal(decimal.NewFromFloat(0.10)) {
		t.Fatalf("expected issued value 0.10, got %s", issuer.TotalPointsValueIssued)
	}
	if !issuer.AmountOwed.Equal(issuer.NetFinancialBalance.Abs()) {
		t.Fatalf("amount owed %s is not |net %s|", issuer.AmountOwed, issuer.NetFinancialBalance)
	}
	if !issuer.AmountOwed.Equal(decimal.NewFromFloat(0.10)) {
		t.Fatalf("expected amount owed 0.10, got %s", issuer.AmountOwed)
	}
}

func TestStoreAccountOwedIsAbsoluteAfterEarn(t *testing.T) {
	svc, customers := setupService(t)
	ctx := context.Background()
	localID := customers.enroll("store-a", "Jane", "", "jane@example.com")

	if _, err := svc.Earn(ctx, domain.EarnRequest{
		StoreID:        "store-a",
		CustomerID:     localID,
		PurchaseAmount: decimal.NewFromInt(1000),
	}); err != nil {
		t.Fatalf("earn: %v", err)
	}

	acc, err := svc.StoreAccount(ctx, "store-a")
	if err != nil {
		t.Fatalf("store account: %v", err)
	}
	if !acc.NetFinancialBalance.Equal(decimal.NewFromFloat(0.10)) {
		t.Fatalf("expected net 0.10, got %s", acc.NetFinancialBalance)
	}
	if !acc.AmountOwed.Equal(decimal.NewFromFloat(0.10)) {
		t.Fatalf("expected amount owed 0.10 after issuing only, got %s", acc.AmountOwed)
	}
}

func TestRedeemRejectsOverspend(t *testing.T) {
	svc, customers := setupService(t)
	ctx := context.Background()
	localID := customers.enroll("store-a", "Jane", "", "jane@example.com")

	if _, err := svc.Earn(ctx, domain.EarnRequest{
		StoreID:        "store-a",
		CustomerID:     localID,
		PurchaseAmount: decimal.NewFromInt(500),
	}); err != nil {
		t.Fatalf("earn: %v", err)
	}

	_, err := svc.Redeem(ctx, domain.RedeemRequest{
		Identifier: "jane@example.com",
		StoreID:    "store-a",
		Points:     6,
	})
	if !errors.Is(err, domain.ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}

	// Balance and ledger untouched by the rejected redemption.
	_, balance, err := svc.Balance(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.AvailablePoints != 5 {
		t.Fatalf("expected balance 5 after rejected redeem, got %d", balance.AvailablePoints)
	}
	assertLedgerConserved(t, balance)

	history, err := svc.History(ctx, "jane@example.com", pagination.Pagination{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected only the earn entry in history, got %d", len(history))
	}
}

func TestRedeemUnknownCustomer(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Redeem(context.Background(), domain.RedeemRequest{
		Identifier: "nobody@example.com",
		StoreID:    "store-a",
		Points:     1,
	})
	if !errors.Is(err, domain.ErrCustomerNotEnrolled) {
		t.Fatalf("expected ErrCustomerNotEnrolled, got %v", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	svc, customers := setupService(t)
	ctx := context.Background()
	localID := customers.enroll("store-a", "Jane", "", "jane@example.com")

	for i := 0; i < 3; i++ {
		if _, err := svc.Earn(ctx, domain.EarnRequest{
			StoreID:        "store-a",
			CustomerID:     localID,
			PurchaseAmount: decimal.NewFromInt(100),
		}); err != nil {
			t.Fatalf("earn: %v", err)
		}
	}
	if _, err := svc.Redeem(ctx, domain.RedeemRequest{
		Identifier: "jane@example.com",
		StoreID:    "store-b",
		Points:     2,
	}); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	history, err := svc.History(ctx, "jane@example.com", pagination.Pagination{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(history))
	}
	if history[0].Type != domain.TransactionSpent {
		t.Fatalf("expected newest entry to be the redemption, got %s", history[0].Type)
	}
	if history[0].Points != -2 {
		t.Fatalf("expected signed delta -2, got %d", history[0].Points)
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{" Jane.Doe@Example.COM ", "jane.doe@example.com"},
		{"+1 (555) 010-2030", "+15550102030"},
		{"555 010 2030", "5550102030"},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := domain.NormalizeIdentifier(tc.in); got != tc.want {
			t.Fatalf("NormalizeIdentifier(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolveIdentifier(t *testing.T) {
	cases := []struct {
		phone, email string
		want         string
		wantType     domain.IdentifierType
	}{
		{"+1 555 010 2030", "jane@example.com", "+15550102030", domain.IdentifierPhone},
		{"", "Jane@Example.com", "jane@example.com", domain.IdentifierEmail},
		{"", "", "", ""},
	}
	for _, tc := range cases {
		got, gotType := domain.ResolveIdentifier(tc.phone, tc.email)
		if got != tc.want || gotType != tc.wantType {
			t.Fatalf("ResolveIdentifier(%q, %q) = (%q, %q), want (%q, %q)",
				tc.phone, tc.email, got, gotType, tc.want, tc.wantType)
		}
	}
}

func TestComputeEarnedPoints(t *testing.T) {
	onePct := decimal.NewFromInt(1)

	if got := domain.ComputeEarnedPoints(decimal.NewFromInt(250), onePct, 1000); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	// Floors, never rounds up.
	if got := domain.ComputeEarnedPoints(decimal.NewFromFloat(199.99), onePct, 1000); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := domain.ComputeEarnedPoints(decimal.NewFromInt(500000), onePct, 1000); got != 1000 {
		t.Fatalf("expected clamp to 1000, got %d", got)
	}
	if got := domain.ComputeEarnedPoints(decimal.Zero, onePct, 1000); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
