package sharding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/tillway/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config controls the shard connection registry.
type Config struct {
	BaseURI        string
	DatabasePrefix string
	ShardCount     int

	MaxPoolSize    int
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
	SelectTimeout  time.Duration
	ConnectRetries int
	ConnectBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.DatabasePrefix == "" {
		c.DatabasePrefix = "pos_db"
	}
	if c.ShardCount <= 0 {
		c.ShardCount = 5
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = 10
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.SocketTimeout <= 0 {
		c.SocketTimeout = 45 * time.Second
	}
	if c.SelectTimeout <= 0 {
		c.SelectTimeout = 30 * time.Second
	}
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = 3
	}
	if c.ConnectBackoff <= 0 {
		c.ConnectBackoff = time.Second
	}
	return c
}

// Dialector turns a per-shard DSN into a gorm dialector. Production wires
// the postgres driver; tests inject sqlite.
type Dialector func(dsn string) gorm.Dialector

// Registry owns the process-wide cache of live shard connections, opened
// lazily and revalidated on every access.
type Registry struct {
	cfg     Config
	open    Dialector
	log     *zap.Logger
	metrics *metrics.RoutingMetrics

	mu    sync.Mutex
	locks map[int]*sync.Mutex
	conns map[int]*gorm.DB
}

// NewRegistry builds a connection registry.
func NewRegistry(cfg Config, open Dialector, log *zap.Logger) *Registry {
	return &Registry{
		cfg:     cfg.withDefaults(),
		open:    open,
		log:     log.Named("sharding.registry"),
		metrics: metrics.Routing(),
		locks:   make(map[int]*sync.Mutex),
		conns:   make(map[int]*gorm.DB),
	}
}

// ShardCount returns the configured number of shards.
func (r *Registry) ShardCount() int { return r.cfg.ShardCount }

// DatabaseName validates the shard id and returns its physical database name.
func (r *Registry) DatabaseName(shardID int) (string, error) {
	if shardID < 1 || shardID > r.cfg.ShardCount {
		return "", ErrInvalidShardID
	}
	return DatabaseName(r.cfg.DatabasePrefix, shardID), nil
}

// DSN validates the shard id and returns its connection string.
func (r *Registry) DSN(shardID int) (string, error) {
	if _, err := r.DatabaseName(shardID); err != nil {
		return "", err
	}
	return ShardDSN(r.cfg.BaseURI, r.cfg.DatabasePrefix, shardID)
}

// Connection returns a live connection for the shard, reusing the cached one
// when it still responds to ping and dialing a fresh one otherwise.
func (r *Registry) Connection(ctx context.Context, shardID int) (*gorm.DB, error) {
	if _, err := r.DatabaseName(shardID); err != nil {
		return nil, err
	}

	lock := r.shardLock(shardID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	cached := r.conns[shardID]
	r.mu.Unlock()

	if cached != nil {
		if r.alive(ctx, cached) {
			return cached, nil
		}
		r.evict(shardID, cached)
	}

	conn, err := r.dial(ctx, shardID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.conns[shardID] = conn
	r.mu.Unlock()
	return conn, nil
}

// Close shuts down every cached connection and clears the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[int]*gorm.DB)
	r.mu.Unlock()

	for shardID, conn := range conns {
		if err := closeConn(conn); err != nil {
			r.log.Warn("closing shard connection failed",
				zap.Int("shard_id", shardID), zap.Error(err))
		}
	}
}

func (r *Registry) shardLock(shardID int) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[shardID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[shardID] = lock
	}
	return lock
}

func (r *Registry) alive(ctx context.Context, conn *gorm.DB) bool {
	sqlDB, err := conn.DB()
	if err != nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, r.cfg.SelectTimeout)
	defer cancel()
	return sqlDB.PingContext(pingCtx) == nil
}

func (r *Registry) evict(shardID int, conn *gorm.DB) {
	r.mu.Lock()
	if r.conns[shardID] == conn {
		delete(r.conns, shardID)
	}
	r.mu.Unlock()

	r.metrics.ObserveShardEviction(strconv.Itoa(shardID))
	r.log.Warn("evicted stale shard connection", zap.Int("shard_id", shardID))

	// Best effort: a half-dead pool may refuse to close.
	if err := closeConn(conn); err != nil {
		r.log.Debug("closing stale connection failed",
			zap.Int("shard_id", shardID), zap.Error(err))
	}
}

func (r *Registry) dial(ctx context.Context, shardID int) (*gorm.DB, error) {
	dsn, err := r.DSN(shardID)
	if err != nil {
		return nil, err
	}

	backoff := r.cfg.ConnectBackoff
	var lastErr error
	for attempt := 0; attempt <= r.cfg.ConnectRetries; attempt++ {
		if attempt > 0 {
			r.log.Warn("retrying shard connection",
				zap.Int("shard_id", shardID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrShardConnection, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		conn, err := r.openConn(ctx, dsn)
		if err == nil {
			r.metrics.ObserveShardConnect(strconv.Itoa(shardID))
			r.log.Info("shard connection established", zap.Int("shard_id", shardID))
			return conn, nil
		}
		if !isTransientNetworkError(err) {
			return nil, fmt.Errorf("%w: shard %d: %v", ErrShardConnection, shardID, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: shard %d after %d retries: %v",
		ErrShardConnection, shardID, r.cfg.ConnectRetries, lastErr)
}

func (r *Registry) openConn(ctx context.Context, dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(r.open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(r.cfg.MaxPoolSize)
	sqlDB.SetMaxIdleConns(r.cfg.MaxPoolSize)
	sqlDB.SetConnMaxIdleTime(r.cfg.SocketTimeout)

	pingCtx, cancel := context.WithTimeout(ctx, r.cfg.ConnectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return conn, nil
}

func closeConn(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isTransientNetworkError reports whether a dial failure looks like a
// network-class problem worth retrying: timeouts, DNS failures, refused
// connections. Anything else (bad credentials, malformed DSN) fails fast.
func isTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network",
		"timeout",
		"timed out",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
