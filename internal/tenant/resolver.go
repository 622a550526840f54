package tenant

import (
	"context"
	"sync"

	"github.com/smallbiznis/tillway/internal/observability/metrics"
	"github.com/smallbiznis/tillway/internal/sharding"
	storedomain "github.com/smallbiznis/tillway/internal/store/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Model is a live handle to one store's collection for one entity, bound to
// the shard connection that owns it.
type Model struct {
	conn    *gorm.DB
	table   string
	prefix  string
	shardID int
	entity  Entity
}

// DB returns the collection-scoped query handle.
func (m *Model) DB(ctx context.Context) *gorm.DB {
	return m.conn.WithContext(ctx).Table(m.table)
}

// Conn returns the underlying shard connection, for multi-collection
// transactions within the same store.
func (m *Model) Conn(ctx context.Context) *gorm.DB {
	return m.conn.WithContext(ctx)
}

// Table returns the physical collection name.
func (m *Model) Table() string { return m.table }

// Prefix returns the store prefix the collection name was built from.
func (m *Model) Prefix() string { return m.prefix }

// ShardID returns the shard the collection lives on.
func (m *Model) ShardID() int { return m.shardID }

type modelKey struct {
	shardID int
	table   string
}

// Resolver maps (entity, store id) to a cached Model bound to the right
// shard connection. One resolver serves every sharded entity type.
type Resolver struct {
	registry *sharding.Registry
	dir      storedomain.Directory
	log      *zap.Logger
	metrics  *metrics.RoutingMetrics

	schemas map[Entity]func() any

	mu     sync.Mutex
	models map[modelKey]*Model
}

// NewResolver builds a resolver over the given schema set.
func NewResolver(registry *sharding.Registry, dir storedomain.Directory, schemas []Schema, log *zap.Logger) *Resolver {
	byEntity := make(map[Entity]func() any, len(schemas))
	for _, schema := range schemas {
		byEntity[schema.Entity] = schema.Prototype
	}
	return &Resolver{
		registry: registry,
		dir:      dir,
		log:      log.Named("tenant.resolver"),
		metrics:  metrics.Routing(),
		schemas:  byEntity,
		models:   make(map[modelKey]*Model),
	}
}

// Model resolves the store and returns a live collection handle. Two calls
// with the same arguments return the same handle while the underlying shard
// connection stays alive; a reopened connection transparently yields a fresh
// handle.
func (r *Resolver) Model(ctx context.Context, entity Entity, storeID string) (*Model, error) {
	if storeID == "" {
		return nil, ErrStoreIDRequired
	}

	prefix, err := r.dir.ResolvePrefix(ctx, storeID)
	if err != nil {
		return nil, err
	}
	shardID, err := r.dir.ResolveShardID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return r.ModelOnShard(ctx, entity, prefix, shardID)
}

// ModelOnShard skips directory resolution for callers that already hold the
// prefix and shard id.
func (r *Resolver) ModelOnShard(ctx context.Context, entity Entity, prefix string, shardID int) (*Model, error) {
	prototype, ok := r.schemas[entity]
	if !ok {
		return nil, ErrUnknownEntity
	}

	table, err := CollectionName(prefix, entity)
	if err != nil {
		return nil, err
	}

	conn, err := r.registry.Connection(ctx, shardID)
	if err != nil {
		return nil, err
	}

	key := modelKey{shardID: shardID, table: table}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The registry hands back the same *gorm.DB while the connection stays
	// alive, so pointer equality doubles as the liveness check for the
	// cached model.
	if cached, ok := r.models[key]; ok && cached.conn == conn {
		r.metrics.ObserveModelCache(true)
		return cached, nil
	}
	r.metrics.ObserveModelCache(false)

	// Idempotent registration: provisioning runs once per model lifetime and
	// again after a reconnect, when the backing database may have changed.
	if err := conn.Table(table).AutoMigrate(prototype()); err != nil {
		return nil, err
	}

	model := &Model{
		conn:    conn,
		table:   table,
		prefix:  prefix,
		shardID: shardID,
		entity:  entity,
	}
	r.models[key] = model
	return model, nil
}

// ProvisionStore eagerly creates every registered entity collection for a
// store. Callers treat failures as non-critical: collections are also
// provisioned lazily on first model resolution.
func (r *Resolver) ProvisionStore(ctx context.Context, store *storedomain.Store) error {
	var firstErr error
	for entity := range r.schemas {
		if _, err := r.ModelOnShard(ctx, entity, store.Prefix, store.ShardID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			r.log.Warn("provisioning tenant collection failed",
				zap.String("store_id", store.StoreID),
				zap.String("entity", string(entity)),
				zap.Error(err))
		}
	}
	return firstErr
}

// Reset drops every cached model. Used on shutdown and in test teardown.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.models = make(map[modelKey]*Model)
	r.mu.Unlock()
}

// Entities lists the registered sharded entity types.
func (r *Resolver) Entities() []Entity {
	entities := make([]Entity, 0, len(r.schemas))
	for entity := range r.schemas {
		entities = append(entities, entity)
	}
	return entities
}
