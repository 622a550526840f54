package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/smallbiznis/tillway/internal/sharding"
	storedomain "github.com/smallbiznis/tillway/internal/store/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testProduct struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"type:text"`
}

// stubDirectory resolves from a fixed map, standing in for the control-plane
// store directory.
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
	if record.ShardID < 1 {
		return 0, storedomain.ErrShardNotAssigned
	}
	return record.ShardID, nil
}

func setupResolver(t *testing.T, records map[string]storedomain.Store) *Resolver {
	t.Helper()
	registry := sharding.NewRegistry(sharding.Config{
		BaseURI:        "postgres://u:p@db.internal:5432/till",
		DatabasePrefix: "pos_db",
		ShardCount:     5,
	}, func(dsn string) gorm.Dialector {
		// One named in-memory database per shard DSN.
		name := strings.NewReplacer("/", "_", ":", "_", "?", "_").Replace(dsn)
		return sqlite.Open(fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", t.Name(), name))
	}, zap.NewNop())
	t.Cleanup(registry.Close)

	resolver := NewResolver(registry, &stubDirectory{records: records}, []Schema{
		{Entity: EntityProducts, Prototype: func() any { return &testProduct{} }},
		{Entity: EntitySales, Prototype: func() any { return &testProduct{} }},
	}, zap.NewNop())
	t.Cleanup(resolver.Reset)
	return resolver
}

func twoStoreRecords() map[string]storedomain.Store {
	return map[string]storedomain.Store{
		"store-a": {StoreID: "store-a", Prefix: "acme", ShardID: 1},
		"store-b": {StoreID: "store-b", Prefix: "bravo", ShardID: 2},
	}
}

func TestModelRequiresStoreID(t *testing.T) {
	resolver := setupResolver(t, twoStoreRecords())
	if _, err := resolver.Model(context.Background(), EntityProducts, ""); !errors.Is(err, ErrStoreIDRequired) {
		t.Fatalf("expected ErrStoreIDRequired, got %v", err)
	}
}

func TestModelPropagatesDirectoryErrors(t *testing.T) {
	resolver := setupResolver(t, twoStoreRecords())
	if _, err := resolver.Model(context.Background(), EntityProducts, "ghost"); !errors.Is(err, storedomain.ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound, got %v", err)
	}
}

func TestModelRejectsUnknownEntity(t *testing.T) {
	resolver := setupResolver(t, twoStoreRecords())
	if _, err := resolver.Model(context.Background(), Entity("widgets"), "store-a"); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestModelCacheIdempotence(t *testing.T) {
	resolver := setupResolver(t, twoStoreRecords())
	ctx := context.Background()

	first, err := resolver.Model(ctx, EntityProducts, "store-a")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := resolver.Model(ctx, EntityProducts, "store-a")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first != second {
		t.Fatal("expected the same model handle while the connection is live")
	}
	if first.Table() != "acme_products" {
		t.Fatalf("unexpected table %q", first.Table())
	}
	if first.Prefix() != "acme" {
		t.Fatalf("unexpected prefix %q", first.Prefix())
	}
}

func TestModelRecoversFromDroppedConnection(t *testing.T) {
	resolver := setupResolver(t, twoStoreRecords())
	ctx := context.Background()

	first, err := resolver.Model(ctx, EntityProducts, "store-a")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	sqlDB, err := first.conn.DB()
	if err != nil {
		t.Fatalf("underlying db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	replacement, err := resolver.Model(ctx, EntityProducts, "store-a")
	if err != nil {
		t.Fatalf("resolve after drop: %v", err)
	}
	if replacement == first {
		t.Fatal("expected a fresh model handle after the connection dropped")
	}
	if err := replacement.DB(ctx).Create(&testProduct{ID: 1, Name: "after"}).Error; err != nil {
		t.Fatalf("fresh handle unusable: %v", err)
	}
}

func TestTenantIsolationAcrossStores(t *testing.T) {
	resolver := setupResolver(t, twoStoreRecords())
	ctx := context.Background()

	aProducts, err := resolver.Model(ctx, EntityProducts, "store-a")
	if err != nil {
		t.Fatalf("store-a model: %v", err)
	}
	bProducts, err := resolver.Model(ctx, EntityProducts, "store-b")
	if err != nil {
		t.Fatalf("store-b model: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := aProducts.DB(ctx).Create(&testProduct{ID: int64(i + 1), Name: "espresso"}).Error; err != nil {
			t.Fatalf("store-a insert: %v", err)
		}
	}
	if err := bProducts.DB(ctx).Create(&testProduct{ID: 1, Name: "espresso"}).Error; err != nil {
		t.Fatalf("store-b insert: %v", err)
	}

	var aCount, bCount int64
	if err := aProducts.DB(ctx).Count(&aCount).Error; err != nil {
		t.Fatalf("store-a count: %v", err)
	}
	if err := bProducts.DB(ctx).Count(&bCount).Error; err != nil {
		t.Fatalf("store-b count: %v", err)
	}
	if aCount != 3 || bCount != 1 {
		t.Fatalf("expected independent counts 3 and 1, got %d and %d", aCount, bCount)
	}
}

func TestModelValidatesPrefixAndLength(t *testing.T) {
	resolver := setupResolver(t, map[string]storedomain.Store{
		"bad":  {StoreID: "bad", Prefix: "Bad-Prefix", ShardID: 1},
		"long": {StoreID: "long", Prefix: strings.Repeat("a", 260), ShardID: 1},
	})
	ctx := context.Background()

	if _, err := resolver.Model(ctx, EntityProducts, "bad"); !errors.Is(err, ErrInvalidPrefix) {
		t.Fatalf("expected ErrInvalidPrefix, got %v", err)
	}
	if _, err := resolver.Model(ctx, EntityProducts, "long"); !errors.Is(err, ErrCollectionNameTooLong) {
		t.Fatalf("expected ErrCollectionNameTooLong, got %v", err)
	}
}

func TestCollectionName(t *testing.T) {
	name, err := CollectionName("acme", EntitySales)
	if err != nil {
		t.Fatalf("collection name: %v", err)
	}
	if name != "acme_sales" {
		t.Fatalf("unexpected name %q", name)
	}
}
