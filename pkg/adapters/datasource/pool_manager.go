package datasource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/logging"
	"github.com/dbdeck/dbdeck-engine/pkg/retry"
)

const (
	DefaultPoolTTLMinutes  = 10
	DefaultCleanupInterval = 1 * time.Minute
	DefaultPoolMaxConns    = 5
	DefaultPoolMinConns    = 1
)

// PoolManagerConfig holds configuration for the pool manager.
type PoolManagerConfig struct {
	TTLMinutes   int
	PoolMaxConns int32
	PoolMinConns int32
}

// PoolManager manages pgx pools for registered external databases with
// TTL-based expiry and automatic cleanup. Pools are keyed by
// "{connectionID}:{database}" since a Postgres pool binds to one database;
// switching databases on the same server yields a separate pool.
type PoolManager struct {
	mu       sync.RWMutex
	pools    map[string]*managedPool
	ttl      time.Duration
	maxConns int32
	minConns int32
	stopped  bool
	stopChan chan struct{}
	logger   *zap.Logger
}

// managedPool tracks a pool together with its last use time.
type managedPool struct {
	pool     *pgxpool.Pool
	lastUsed time.Time
	mu       sync.Mutex
}

// NewPoolManager creates a pool manager with the given configuration and
// starts a background cleanup goroutine that runs until Close() is called.
func NewPoolManager(cfg PoolManagerConfig, logger *zap.Logger) *PoolManager {
	if cfg.TTLMinutes <= 0 {
		cfg.TTLMinutes = DefaultPoolTTLMinutes
	}
	if cfg.PoolMaxConns <= 0 {
		cfg.PoolMaxConns = DefaultPoolMaxConns
	}
	if cfg.PoolMinConns <= 0 {
		cfg.PoolMinConns = DefaultPoolMinConns
	}

	manager := &PoolManager{
		pools:    make(map[string]*managedPool),
		ttl:      time.Duration(cfg.TTLMinutes) * time.Minute,
		maxConns: cfg.PoolMaxConns,
		minConns: cfg.PoolMinConns,
		stopChan: make(chan struct{}),
		logger:   logger,
	}

	go manager.cleanupExpiredPools()
	return manager
}

// poolKey builds the map key for a connection/database pair. An empty
// database selects the connection record's default database.
func poolKey(connectionID uuid.UUID, database string) string {
	return fmt.Sprintf("%s:%s", connectionID, database)
}

// GetOrCreatePool returns the pool for the given connection/database pair,
// creating it on first use. An existing pool is health-checked before reuse
// and transparently recreated when unhealthy.
func (m *PoolManager) GetOrCreatePool(
	ctx context.Context,
	connectionID uuid.UUID,
	database string,
	connString string,
) (*pgxpool.Pool, error) {
	key := poolKey(connectionID, database)

	// Fast path with read lock
	m.mu.RLock()
	managed, exists := m.pools[key]
	m.mu.RUnlock()

	if exists {
		managed.mu.Lock()

		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		err := retry.Do(healthCtx, retry.DefaultConfig(), func() error {
			return managed.pool.Ping(healthCtx)
		})

		if err != nil {
			m.logger.Warn("pool unhealthy, recreating",
				zap.String("key", key),
				zap.String("error", logging.SanitizeError(err)),
			)
			managed.mu.Unlock() // Unlock before calling removePool
			m.removePool(key, managed)
			return m.createNewPool(ctx, key, connString)
		}

		managed.lastUsed = time.Now()
		managed.mu.Unlock()
		return managed.pool, nil
	}

	return m.createNewPool(ctx, key, connString)
}

// createNewPool creates a new pool with retry logic.
// Caller must NOT hold any locks (this method acquires the write lock).
func (m *PoolManager) createNewPool(ctx context.Context, key, connString string) (*pgxpool.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have created it)
	if managed, exists := m.pools[key]; exists && managed != nil {
		managed.mu.Lock()
		defer managed.mu.Unlock()
		managed.lastUsed = time.Now()
		return managed.pool, nil
	}

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		m.logger.Error("failed to parse connection string",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = m.maxConns
	poolConfig.MinConns = m.minConns
	poolConfig.MaxConnIdleTime = m.ttl

	// Retry covers transient failures during pool establishment only;
	// statement execution is never retried.
	pool, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*pgxpool.Pool, error) {
		return pgxpool.NewWithConfig(ctx, poolConfig)
	})
	if err != nil {
		m.logger.Error("failed to create pool after retries",
			zap.String("key", key),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to create pool for %s after retries: %w", key, err)
	}

	m.pools[key] = &managedPool{
		pool:     pool,
		lastUsed: time.Now(),
	}

	m.logger.Info("created new connection pool",
		zap.String("key", key),
		zap.String("target", logging.SanitizeConnectionString(connString)),
		zap.Int("totalPools", len(m.pools)),
	)

	return pool, nil
}

// Invalidate closes and removes all pools belonging to the given connection,
// across every database they were opened against. Called when credentials
// change or the connection record is deleted.
func (m *PoolManager) Invalidate(connectionID uuid.UUID) {
	prefix := connectionID.String() + ":"

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, managed := range m.pools {
		if strings.HasPrefix(key, prefix) {
			if managed != nil && managed.pool != nil {
				managed.pool.Close()
			}
			delete(m.pools, key)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("invalidated connection pools",
			zap.String("connectionID", connectionID.String()),
			zap.Int("count", removed),
		)
	}
}

// TestCredentials verifies a connection string by opening a throwaway pool,
// pinging it, and running a trivial round-trip. The pool is never cached.
func (m *PoolManager) TestCredentials(ctx context.Context, connString string) error {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = 1
	poolConfig.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var one int
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("round-trip query failed: %w", err)
	}

	return nil
}

// removePool closes and removes the observed pool instance. The entry is
// only deleted while the map still holds that exact instance; a stale
// observation (another caller already replaced the pool) is a no-op so a
// freshly created replacement is never closed out from under its users.
// Caller must NOT hold m.mu lock (this method acquires the write lock).
func (m *PoolManager) removePool(key string, observed *managedPool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.pools[key]; exists && current == observed {
		if current.pool != nil {
			current.pool.Close()
		}
		delete(m.pools, key)
		m.logger.Debug("removed pool",
			zap.String("key", key),
		)
	}
}

// cleanupExpiredPools runs periodically to remove expired pools.
// Runs in a background goroutine until stopChan is closed.
func (m *PoolManager) cleanupExpiredPools() {
	ticker := time.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup()
		case <-m.stopChan:
			return
		}
	}
}

// performCleanup removes pools that have not been used within the TTL.
// Lock ordering: manager lock, then pool lock, to prevent deadlocks.
func (m *PoolManager) performCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	now := time.Now()
	expiredKeys := []string{}

	for key, managed := range m.pools {
		if managed != nil {
			managed.mu.Lock()
			expired := now.Sub(managed.lastUsed) > m.ttl
			idleTime := now.Sub(managed.lastUsed)
			managed.mu.Unlock()

			if expired {
				expiredKeys = append(expiredKeys, key)
				m.logger.Debug("marking pool for cleanup",
					zap.String("key", key),
					zap.Duration("idleTime", idleTime),
					zap.Duration("ttl", m.ttl),
				)
			}
		}
	}

	for _, key := range expiredKeys {
		if managed, exists := m.pools[key]; exists && managed != nil {
			if managed.pool != nil {
				managed.pool.Close()
			}
			delete(m.pools, key)
		}
	}

	if len(expiredKeys) > 0 {
		m.logger.Info("cleaned up expired pools",
			zap.Int("count", len(expiredKeys)),
			zap.Int("remaining", len(m.pools)),
		)
	}
}

// Close closes all pools and stops the cleanup goroutine.
// Idempotent and safe to call multiple times.
func (m *PoolManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}

	m.stopped = true
	close(m.stopChan)

	for _, managed := range m.pools {
		if managed != nil && managed.pool != nil {
			managed.pool.Close()
		}
	}

	m.pools = make(map[string]*managedPool)
	m.logger.Info("pool manager closed")
	return nil
}

// Stats returns statistics about the pool manager state.
// Safe to call concurrently.
func (m *PoolManager) Stats() PoolStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	stats := PoolStats{
		TotalPools:        len(m.pools),
		TTLMinutes:        int(m.ttl.Minutes()),
		PoolsByConnection: make(map[string]int),
		OldestIdleSeconds: 0,
	}

	for key, managed := range m.pools {
		// Key format: "{connectionID}:{database}"
		if idx := strings.Index(key, ":"); idx > 0 {
			stats.PoolsByConnection[key[:idx]]++
		}

		if managed != nil {
			managed.mu.Lock()
			idleSeconds := int(now.Sub(managed.lastUsed).Seconds())
			managed.mu.Unlock()
			if idleSeconds > stats.OldestIdleSeconds {
				stats.OldestIdleSeconds = idleSeconds
			}
		}
	}

	return stats
}

// PoolStats contains statistics about the pool manager state.
type PoolStats struct {
	TotalPools        int            `json:"total_pools"`
	TTLMinutes        int            `json:"ttl_minutes"`
	PoolsByConnection map[string]int `json:"pools_by_connection"`
	OldestIdleSeconds int            `json:"oldest_idle_seconds"`
}
