package seed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/smallbiznis/tillway/internal/auth/domain"
	loyaltydomain "github.com/smallbiznis/tillway/internal/loyalty/domain"
	storedomain "github.com/smallbiznis/tillway/internal/store/domain"
	unifieddomain "github.com/smallbiznis/tillway/internal/unified/domain"
)

// MigrateControlPlane creates the control-plane tables: the store directory,
// unified collections, the global points ledger and auth. Shard-resident
// tables are provisioned lazily by the tenant resolver.
func MigrateControlPlane(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	return db.AutoMigrate(
		&storedomain.Store{},
		&unifieddomain.Warehouse{},
		&unifieddomain.Merchant{},
		&unifieddomain.Payment{},
		&unifieddomain.StoreAccount{},
		&loyaltydomain.GlobalCustomer{},
		&loyaltydomain.PointsBalance{},
		&loyaltydomain.PointsTransaction{},
		&loyaltydomain.StorePointsAccount{},
		&authdomain.User{},
		&authdomain.Session{},
	)
}

// EnsureDefaultStore creates the bootstrap store when the directory is
// empty, so a fresh install is usable without an onboarding call.
func EnsureDefaultStore(ctx context.Context, dir storedomain.Directory, db *gorm.DB, name string, log *zap.Logger) error {
	if dir == nil || db == nil {
		return errors.New("seed dependencies are required")
	}

	var count int64
	if err := db.WithContext(ctx).Model(&storedomain.Store{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count stores: %w", err)
	}
	if count > 0 {
		return nil
	}

	store, err := dir.Create(ctx, storedomain.CreateStoreRequest{Name: name})
	if err != nil {
		return fmt.Errorf("create default store: %w", err)
	}

	log.Info("default store created",
		zap.String("store_id", store.StoreID),
		zap.String("prefix", store.Prefix),
		zap.Int("shard_id", store.ShardID),
	)
	return nil
}
