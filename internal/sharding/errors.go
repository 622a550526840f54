package sharding

import "errors"

var (
	// ErrInvalidShardID is returned when a shard id falls outside [1, ShardCount].
	ErrInvalidShardID = errors.New("invalid_shard_id")

	// ErrShardConnection is returned when a shard database stays unreachable
	// after retries are exhausted, or fails with a non-network error.
	// Callers must not treat this as "store not found".
	ErrShardConnection = errors.New("shard_connection_failed")

	// ErrInvalidBaseURI is returned when the configured base connection
	// string cannot be parsed.
	ErrInvalidBaseURI = errors.New("invalid_base_uri")
)
