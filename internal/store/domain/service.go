package domain

import (
	"context"
	"errors"
)

// CreateStoreRequest onboards a new logical store.
type CreateStoreRequest struct {
	StoreID string
	Name    string
	Prefix  string
}

// Directory is the canonical mapping from logical stores to prefixes and
// shard ids. It is the only component allowed to translate a store
// identifier into a physical location.
type Directory interface {
	Create(ctx context.Context, req CreateStoreRequest) (*Store, error)
	Get(ctx context.Context, storeID string) (*Store, error)
	List(ctx context.Context) ([]Store, error)
	// Delete removes the directory record. Tenant collections are not
	// cascade-dropped.
	Delete(ctx context.Context, storeID string) error

	ResolvePrefix(ctx context.Context, storeIDOrPrefix string) (string, error)
	ResolveShardID(ctx context.Context, storeIDOrPrefix string) (int, error)
	AssignShard(ctx context.Context) (int, error)
}

// Service is the package alias for Directory.
type Service = Directory

var (
	ErrStoreIDRequired  = errors.New("store_id_required")
	ErrStoreNotFound    = errors.New("store_not_found")
	ErrShardNotAssigned = errors.New("shard_not_assigned")
	ErrInvalidPrefix    = errors.New("invalid_prefix")
	ErrInvalidName      = errors.New("invalid_name")
	ErrDuplicateStore   = errors.New("duplicate_store")
)
