package datasource

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewPoolManager_AppliesDefaults(t *testing.T) {
	m := NewPoolManager(PoolManagerConfig{}, zaptest.NewLogger(t))
	defer m.Close() //nolint:errcheck

	stats := m.Stats()
	assert.Equal(t, 0, stats.TotalPools)
	assert.Equal(t, DefaultPoolTTLMinutes, stats.TTLMinutes)
}

func TestPoolManager_GetOrCreatePool_BadConnString(t *testing.T) {
	m := NewPoolManager(PoolManagerConfig{}, zaptest.NewLogger(t))
	defer m.Close() //nolint:errcheck

	_, err := m.GetOrCreatePool(context.Background(), uuid.New(), "app", "not a conn string")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse connection string")
}

func TestPoolManager_InvalidateUnknownConnection(t *testing.T) {
	m := NewPoolManager(PoolManagerConfig{}, zaptest.NewLogger(t))
	defer m.Close() //nolint:errcheck

	// No pools exist for this id; must not panic or affect state.
	m.Invalidate(uuid.New())
	assert.Equal(t, 0, m.Stats().TotalPools)
}

func TestPoolManager_CloseIsIdempotent(t *testing.T) {
	m := NewPoolManager(PoolManagerConfig{TTLMinutes: 1}, zaptest.NewLogger(t))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestPoolManager_TestCredentials_BadConnString(t *testing.T) {
	m := NewPoolManager(PoolManagerConfig{}, zaptest.NewLogger(t))
	defer m.Close() //nolint:errcheck

	err := m.TestCredentials(context.Background(), "::::")
	require.Error(t, err)
}

func TestPoolKeyFormat(t *testing.T) {
	id := uuid.MustParse("7b1c3f7e-6c1a-4a8e-9f1d-2a3b4c5d6e7f")

	assert.Equal(t, "7b1c3f7e-6c1a-4a8e-9f1d-2a3b4c5d6e7f:app", poolKey(id, "app"))
	// Empty database selects the record's default; still a distinct key.
	assert.Equal(t, "7b1c3f7e-6c1a-4a8e-9f1d-2a3b4c5d6e7f:", poolKey(id, ""))
}

func TestPoolManager_StatsGroupsByConnection(t *testing.T) {
	m := NewPoolManager(PoolManagerConfig{}, zaptest.NewLogger(t))
	defer m.Close() //nolint:errcheck

	id := uuid.New()
	m.mu.Lock()
	m.pools[poolKey(id, "app")] = &managedPool{lastUsed: time.Now().Add(-30 * time.Second)}
	m.pools[poolKey(id, "analytics")] = &managedPool{lastUsed: time.Now()}
	m.mu.Unlock()

	stats := m.Stats()
	assert.Equal(t, 2, stats.TotalPools)
	assert.Equal(t, 2, stats.PoolsByConnection[id.String()])
	assert.GreaterOrEqual(t, stats.OldestIdleSeconds, 29)
}

func TestPoolManager_InvalidateRemovesAllDatabasesForConnection(t *testing.T) {
	m := NewPoolManager(PoolManagerConfig{}, zaptest.NewLogger(t))
	defer m.Close() //nolint:errcheck

	keep := uuid.New()
	drop := uuid.New()
	m.mu.Lock()
	m.pools[poolKey(drop, "app")] = &managedPool{lastUsed: time.Now()}
	m.pools[poolKey(drop, "analytics")] = &managedPool{lastUsed: time.Now()}
	m.pools[poolKey(keep, "app")] = &managedPool{lastUsed: time.Now()}
	m.mu.Unlock()

	m.Invalidate(drop)

	stats := m.Stats()
	assert.Equal(t, 1, stats.TotalPools)
	assert.Equal(t, 1, stats.PoolsByConnection[keep.String()])
	assert.Zero(t, stats.PoolsByConnection[drop.String()])
}

func TestPoolManager_RemovePoolIgnoresStaleObservation(t *testing.T) {
	m := NewPoolManager(PoolManagerConfig{}, zaptest.NewLogger(t))
	defer m.Close() //nolint:errcheck

	key := poolKey(uuid.New(), "app")
	stale := &managedPool{lastUsed: time.Now()}
	replacement := &managedPool{lastUsed: time.Now()}

	m.mu.Lock()
	m.pools[key] = replacement
	m.mu.Unlock()

	// A caller that pinged the old instance must not tear down its
	// replacement.
	m.removePool(key, stale)

	m.mu.RLock()
	current := m.pools[key]
	m.mu.RUnlock()
	assert.Same(t, replacement, current)

	m.removePool(key, replacement)
	assert.Equal(t, 0, m.Stats().TotalPools)
}

func TestPoolManager_CleanupRemovesExpiredPools(t *testing.T) {
	m := NewPoolManager(PoolManagerConfig{TTLMinutes: 1}, zaptest.NewLogger(t))
	defer m.Close() //nolint:errcheck

	id := uuid.New()
	m.mu.Lock()
	m.pools[poolKey(id, "stale")] = &managedPool{lastUsed: time.Now().Add(-2 * time.Minute)}
	m.pools[poolKey(id, "fresh")] = &managedPool{lastUsed: time.Now()}
	m.mu.Unlock()

	m.performCleanup()

	stats := m.Stats()
	assert.Equal(t, 1, stats.TotalPools)
}
