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
	"github.com/smallbiznis/tillway/internal/sharding"
	storedomain "github.com/smallbiznis/tillway/internal/store/domain"
	"github.com/smallbiznis/tillway/internal/tenant"
)

type stubDirectory struct {
	storedomain.Directory
	records map[string]storedomain.Store
}

func (d *stubDirectory) ResolvePrefix(_ context.Context, storeID string) (string, error) {
	record, ok := d.records[storeID]
	if !ok {
		return "", storedomain.ErrStoreNotFound
	}
	return record.Prefix, nil
}

func (d *stubDirectory) ResolveShardID(_ context.Context, storeID string) (int, error) {
	record, ok := d.records[storeID]
	if !ok {
		return 0, storedomain.ErrStoreNotFound
	}
	return record.ShardID, nil
}

func setupService(t *testing.T) customerdomain.Service {
	t.Helper()
	registry := sharding.NewRegistry(sharding.Config{
		BaseURI:        "postgres://u:p@db.internal:5432/till",
		DatabasePrefix: "pos_db",
		ShardCount:     5,
	}, func(dsn string) gorm.Dialector {
		return sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	}, zap.NewNop())
	t.Cleanup(registry.Close)

	dir := &stubDirectory{records: map[string]storedomain.Store{
		"store-a": {StoreID: "store-a", Prefix: "acme", ShardID: 1},
	}}
	resolver := tenant.NewResolver(registry, dir, []tenant.Schema{
		{Entity: tenant.EntityCustomers, Prototype: func() any { return &customerdomain.Customer{} }},
		{Entity: tenant.EntityCustomerPayments, Prototype: func() any { return &customerdomain.CustomerPayment{} }},
	}, zap.NewNop())
	t.Cleanup(resolver.Reset)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	return NewService(ServiceParam{Resolver: resolver, Log: zap.NewNop(), GenID: node})
}

func TestCreateAndGetCustomer(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "store-a", customerdomain.CreateCustomerRequest{
		Name:  "Jane Doe",
		Phone: "+15550102030",
		Email: " Jane@Example.COM ",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Email != "jane@example.com" {
		t.Fatalf("email not normalized: %q", created.Email)
	}

	got, err := svc.GetByID(ctx, "store-a", created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Jane Doe" {
		t.Fatalf("unexpected name: %q", got.Name)
	}
}

func TestCreateCustomerRequiresName(t *testing.T) {
	svc := setupService(t)

	_, err := svc.Create(context.Background(), "store-a", customerdomain.CreateCustomerRequest{Name: "  "})
	if !errors.Is(err, customerdomain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestDeleteCustomer(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "store-a", customerdomain.CreateCustomerRequest{Name: "Jane"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, "store-a", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetByID(ctx, "store-a", created.ID); !errors.Is(err, customerdomain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestRecordPayment(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "store-a", customerdomain.CreateCustomerRequest{Name: "Jane"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.RecordPayment(ctx, "store-a", customerdomain.RecordPaymentRequest{
		CustomerID: created.ID,
		Amount:     decimal.Zero,
		Method:     "cash",
	})
	if !errors.Is(err, customerdomain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	payment, err := svc.RecordPayment(ctx, "store-a", customerdomain.RecordPaymentRequest{
		CustomerID: created.ID,
		Amount:     decimal.NewFromInt(25),
		Method:     "cash",
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if !payment.Amount.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("unexpected amount: %s", payment.Amount)
	}

	payments, err := svc.ListPayments(ctx, "store-a", created.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(payments))
	}
}

func TestPaymentForUnknownCustomer(t *testing.T) {
	svc := setupService(t)

	_, err := svc.RecordPayment(context.Background(), "store-a", customerdomain.RecordPaymentRequest{
		CustomerID: snowflake.ID(12345),
		Amount:     decimal.NewFromInt(10),
		Method:     "cash",
	})
	if !errors.Is(err, customerdomain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}
