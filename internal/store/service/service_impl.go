package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tillway/internal/cache"
	storedomain "github.com/smallbiznis/tillway/internal/store/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const directoryCacheTTL = 5 * time.Minute

// Config controls directory behavior.
type Config struct {
	ShardCount     int
	StoresPerShard int

	// PrefixRepairMode treats an unknown but syntactically valid identifier
	// as a literal prefix instead of failing. Off by default: it can paper
	// over missing directory records.
	PrefixRepairMode bool
}

func (c Config) withDefaults() Config {
	if c.ShardCount <= 0 {
		c.ShardCount = 5
	}
	if c.StoresPerShard <= 0 {
		c.StoresPerShard = 20
	}
	return c
}

// ServiceParam collects directory dependencies.
type ServiceParam struct {
	fx.In

	DB     *gorm.DB `name:"control"`
	Log    *zap.Logger
	GenID  *snowflake.Node
	Config Config `optional:"true"`
}

// Service implements the store directory over the control-plane database.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	cfg   Config

	lookups *cache.TTLCache[string, storedomain.Store]
}

// NewService builds the directory service.
func NewService(p ServiceParam) storedomain.Directory {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("store.directory"),
		genID:   p.GenID,
		cfg:     p.Config.withDefaults(),
		lookups: cache.NewTTLCache[string, storedomain.Store](),
	}
}

// Create onboards a store: derives a unique prefix, assigns a shard and
// writes the directory record. The count-then-insert shard assignment runs
// inside one transaction, which narrows but does not remove the concurrent
// onboarding race; see AssignShard.
func (s *Service) Create(ctx context.Context, req storedomain.CreateStoreRequest) (*storedomain.Store, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, storedomain.ErrInvalidName
	}

	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		prefix = storedomain.SlugifyPrefix(name)
	}
	if !storedomain.ValidPrefix(prefix) {
		return nil, storedomain.ErrInvalidPrefix
	}

	storeID := strings.TrimSpace(req.StoreID)
	if storeID == "" {
		storeID = prefix
	}

	var created storedomain.Store
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		finalPrefix, err := s.uniquePrefix(ctx, tx, prefix)
		if err != nil {
			return err
		}
		if storeID == prefix {
			storeID = finalPrefix
		}

		var count int64
		if err := tx.Model(&storedomain.Store{}).
			Where("store_id = ? OR prefix = ?", storeID, finalPrefix).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return storedomain.ErrDuplicateStore
		}

		shardID, err := s.assignShardTx(ctx, tx)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		created = storedomain.Store{
			ID:        s.genID.Generate(),
			StoreID:   storeID,
			Name:      name,
			Prefix:    finalPrefix,
			ShardID:   shardID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("store onboarded",
		zap.String("store_id", created.StoreID),
		zap.String("prefix", created.Prefix),
		zap.Int("shard_id", created.ShardID))
	return &created, nil
}

// Get returns the directory record for a store id or prefix.
func (s *Service) Get(ctx context.Context, storeID string) (*storedomain.Store, error) {
	record, err := s.lookup(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// List returns every directory record.
func (s *Service) List(ctx context.Context) ([]storedomain.Store, error) {
	var stores []storedomain.Store
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

// Delete removes the directory record only. Tenant collections stay in
// place; dropping them is an explicit admin operation elsewhere.
func (s *Service) Delete(ctx context.Context, storeID string) error {
	record, err := s.lookup(ctx, storeID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&storedomain.Store{}, "id = ?", record.ID).Error; err != nil {
		return err
	}
	s.lookups.Delete(record.StoreID)
	s.lookups.Delete(record.Prefix)
	return nil
}

// ResolvePrefix maps a store id or prefix to the collection prefix.
func (s *Service) ResolvePrefix(ctx context.Context, storeIDOrPrefix string) (string, error) {
	input := strings.TrimSpace(storeIDOrPrefix)
	if input == "" {
		return "", storedomain.ErrStoreIDRequired
	}

	record, err := s.lookup(ctx, input)
	if err == nil {
		return record.Prefix, nil
	}
	if !errors.Is(err, storedomain.ErrStoreNotFound) {
		return "", err
	}

	if s.cfg.PrefixRepairMode && storedomain.ValidPrefix(input) {
		s.log.Warn("store directory miss, using identifier as literal prefix",
			zap.String("store_id", input))
		return input, nil
	}
	return "", err
}

// ResolveShardID maps a store id or prefix to its assigned shard.
func (s *Service) ResolveShardID(ctx context.Context, storeIDOrPrefix string) (int, error) {
	input := strings.TrimSpace(storeIDOrPrefix)
	if input == "" {
		return 0, storedomain.ErrStoreIDRequired
	}

	record, err := s.lookup(ctx, input)
	if err != nil {
		return 0, err
	}
	if record.ShardID < 1 {
		return 0, fmt.Errorf("%w: store %s", storedomain.ErrShardNotAssigned, record.StoreID)
	}
	return record.ShardID, nil
}

// AssignShard picks the shard for the next onboarded store: round-robin by
// count, with the last shard absorbing overflow. The count is a snapshot;
// two concurrent onboardings may land on the same shard, accepted as
// eventual-balance behavior.
func (s *Service) AssignShard(ctx context.Context) (int, error) {
	return s.assignShardTx(ctx, s.db.WithContext(ctx))
}

func (s *Service) assignShardTx(ctx context.Context, tx *gorm.DB) (int, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&storedomain.Store{}).Count(&count).Error; err != nil {
		return 0, err
	}
	shardID := int(count)/s.cfg.StoresPerShard + 1
	if shardID > s.cfg.ShardCount {
		shardID = s.cfg.ShardCount
	}
	return shardID, nil
}

func (s *Service) lookup(ctx context.Context, input string) (*storedomain.Store, error) {
	if cached, ok := s.lookups.Get(input); ok {
		return &cached, nil
	}

	var record storedomain.Store
	err := s.db.WithContext(ctx).
		Where("prefix = ?", input).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = s.db.WithContext(ctx).
			Where("store_id = ?", input).
			First(&record).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", storedomain.ErrStoreNotFound, input)
		}
		return nil, err
	}

	s.lookups.Set(input, record, directoryCacheTTL)
	return &record, nil
}

// uniquePrefix appends a numeric suffix until the candidate is unused.
func (s *Service) uniquePrefix(ctx context.Context, tx *gorm.DB, candidate string) (string, error) {
	prefix := candidate
	for i := 2; ; i++ {
		var count int64
		if err := tx.WithContext(ctx).Model(&storedomain.Store{}).
			Where("prefix = ?", prefix).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return prefix, nil
		}
		prefix = fmt.Sprintf("%s_%d", candidate, i)
	}
}
