package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbdeck/dbdeck-engine/pkg/apperrors"
	"github.com/dbdeck/dbdeck-engine/pkg/models"
	"github.com/dbdeck/dbdeck-engine/pkg/testhelpers"
)

// uniqueName avoids collisions across tests sharing one database.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String()[:8])
}

func testConnection(name string) *models.Connection {
	return &models.Connection{
		Name:     name,
		Host:     "db.example.com",
		Port:     5432,
		Database: "appdb",
		Username: "reader",
		UseTLS:   true,
	}
}

func TestConnectionRepository_CreateAndGet(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewConnectionRepository(engineDB.DB)
	ctx := context.Background()

	conn := testConnection(uniqueName("create"))
	require.NoError(t, repo.Create(ctx, conn, "enc:secret"))
	assert.NotEqual(t, uuid.Nil, conn.ID)
	assert.False(t, conn.CreatedAt.IsZero())

	got, encrypted, err := repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, conn.Name, got.Name)
	assert.Equal(t, "db.example.com", got.Host)
	assert.Equal(t, 5432, got.Port)
	assert.Equal(t, "appdb", got.Database)
	assert.Equal(t, "reader", got.Username)
	assert.True(t, got.UseTLS)
	assert.Equal(t, "enc:secret", encrypted)
}

func TestConnectionRepository_DuplicateName(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewConnectionRepository(engineDB.DB)
	ctx := context.Background()

	name := uniqueName("dup")
	require.NoError(t, repo.Create(ctx, testConnection(name), "enc:a"))

	err := repo.Create(ctx, testConnection(name), "enc:b")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestConnectionRepository_Update(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewConnectionRepository(engineDB.DB)
	ctx := context.Background()

	conn := testConnection(uniqueName("update"))
	require.NoError(t, repo.Create(ctx, conn, "enc:old"))

	conn.Host = "replica.example.com"
	conn.Port = 5433
	require.NoError(t, repo.Update(ctx, conn, "enc:new"))

	got, encrypted, err := repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "replica.example.com", got.Host)
	assert.Equal(t, 5433, got.Port)
	assert.Equal(t, "enc:new", encrypted)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
}

func TestConnectionRepository_UpdateUnknown(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewConnectionRepository(engineDB.DB)

	conn := testConnection(uniqueName("ghost"))
	conn.ID = uuid.New()
	err := repo.Update(context.Background(), conn, "enc:x")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConnectionRepository_Delete(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewConnectionRepository(engineDB.DB)
	ctx := context.Background()

	conn := testConnection(uniqueName("delete"))
	require.NoError(t, repo.Create(ctx, conn, "enc:x"))
	require.NoError(t, repo.Delete(ctx, conn.ID))

	_, _, err := repo.GetByID(ctx, conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, conn.ID), apperrors.ErrNotFound)
}

func TestConnectionRepository_ListOmitsPasswords(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewConnectionRepository(engineDB.DB)
	ctx := context.Background()

	name := uniqueName("list")
	require.NoError(t, repo.Create(ctx, testConnection(name), "enc:x"))

	connections, err := repo.List(ctx)
	require.NoError(t, err)

	found := false
	for _, c := range connections {
		assert.Empty(t, c.Password)
		if c.Name == name {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHistoryRepository_RecordAndList(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	connRepo := NewConnectionRepository(engineDB.DB)
	repo := NewHistoryRepository(engineDB.DB)
	ctx := context.Background()

	conn := testConnection(uniqueName("history"))
	require.NoError(t, connRepo.Create(ctx, conn, "enc:x"))

	base := time.Now().Add(-time.Minute)
	entries := []*models.HistoryEntry{
		{ConnectionID: conn.ID, Statement: "SELECT 1", Success: true, ElapsedMs: 3, RowCount: 1, CreatedAt: base},
		{ConnectionID: conn.ID, Statement: "SELECT nope", Success: false, ElapsedMs: 1, Error: "column does not exist", CreatedAt: base.Add(time.Second)},
		{ConnectionID: conn.ID, Statement: "SELECT 2", Success: true, ElapsedMs: 2, RowCount: 1, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, repo.Record(ctx, e))
		assert.NotEqual(t, uuid.Nil, e.ID)
	}

	got, err := repo.ListByConnection(ctx, conn.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Oldest first
	assert.Equal(t, "SELECT 1", got[0].Statement)
	assert.False(t, got[1].Success)
	assert.Equal(t, "column does not exist", got[1].Error)
	assert.Equal(t, "SELECT 2", got[2].Statement)

	limited, err := repo.ListByConnection(ctx, conn.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestHistoryRepository_DeleteOlderThan(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	connRepo := NewConnectionRepository(engineDB.DB)
	repo := NewHistoryRepository(engineDB.DB)
	ctx := context.Background()

	conn := testConnection(uniqueName("prune"))
	require.NoError(t, connRepo.Create(ctx, conn, "enc:x"))

	old := &models.HistoryEntry{ConnectionID: conn.ID, Statement: "SELECT 'old'", Success: true, CreatedAt: time.Now().Add(-48 * time.Hour)}
	recent := &models.HistoryEntry{ConnectionID: conn.ID, Statement: "SELECT 'recent'", Success: true, CreatedAt: time.Now()}
	require.NoError(t, repo.Record(ctx, old))
	require.NoError(t, repo.Record(ctx, recent))

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))

	got, err := repo.ListByConnection(ctx, conn.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SELECT 'recent'", got[0].Statement)
}

func TestHistoryRepository_CascadeOnConnectionDelete(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	connRepo := NewConnectionRepository(engineDB.DB)
	repo := NewHistoryRepository(engineDB.DB)
	ctx := context.Background()

	conn := testConnection(uniqueName("cascade"))
	require.NoError(t, connRepo.Create(ctx, conn, "enc:x"))
	require.NoError(t, repo.Record(ctx, &models.HistoryEntry{ConnectionID: conn.ID, Statement: "SELECT 1", Success: true}))

	require.NoError(t, connRepo.Delete(ctx, conn.ID))

	got, err := repo.ListByConnection(ctx, conn.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
