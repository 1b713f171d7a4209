package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
	"github.com/dbdeck/dbdeck-engine/pkg/apperrors"
	"github.com/dbdeck/dbdeck-engine/pkg/audit"
	"github.com/dbdeck/dbdeck-engine/pkg/config"
	"github.com/dbdeck/dbdeck-engine/pkg/crypto"
	"github.com/dbdeck/dbdeck-engine/pkg/models"
	"github.com/dbdeck/dbdeck-engine/pkg/repositories"
	"github.com/dbdeck/dbdeck-engine/pkg/testhelpers"
)

// integrationEnv wires real repositories, a real pool manager, and the
// services under test against the shared containers.
type integrationEnv struct {
	connections ConnectionService
	queries     QueryService
	browser     BrowseService
	exporter    ExportService
	history     repositories.HistoryRepository
	connID      uuid.UUID
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()

	testDB := testhelpers.GetTestDB(t)
	engineDB := testhelpers.GetEngineDB(t)
	logger := zaptest.NewLogger(t)

	cfg := &config.Config{
		Queries: config.QueryConfig{
			StatementTimeoutSeconds: 10,
			MaxBrowseLimit:          1000,
			AllowWrites:             false,
		},
		Pools: config.PoolConfig{
			TTLMinutes:            10,
			MaxConns:              5,
			MinConns:              1,
			ConnectTimeoutSeconds: 10,
		},
	}

	encryptor, err := crypto.NewCredentialEncryptor("integration-test-key")
	require.NoError(t, err)

	pools := datasource.NewPoolManager(datasource.PoolManagerConfig{
		TTLMinutes:   cfg.Pools.TTLMinutes,
		PoolMaxConns: cfg.Pools.MaxConns,
		PoolMinConns: cfg.Pools.MinConns,
	}, logger)
	t.Cleanup(func() { _ = pools.Close() })

	connRepo := repositories.NewConnectionRepository(engineDB.DB)
	historyRepo := repositories.NewHistoryRepository(engineDB.DB)
	auditor := audit.NewSecurityAuditor(logger)

	connections := NewConnectionService(connRepo, pools, encryptor, cfg, logger)

	conn := &models.Connection{
		Name:     fmt.Sprintf("target-%s", uuid.New().String()[:8]),
		Host:     testDB.Host,
		Port:     testDB.Port,
		Database: "test_data",
		Username: "dbdeck",
		Password: "test_password",
	}
	require.NoError(t, connections.Create(context.Background(), conn))

	return &integrationEnv{
		connections: connections,
		queries:     NewQueryService(connections, historyRepo, auditor, cfg, logger),
		browser:     NewBrowseService(connections, historyRepo, auditor, cfg, logger),
		exporter:    NewExportService(connections, historyRepo, cfg, logger),
		history:     historyRepo,
		connID:      conn.ID,
	}
}

func (e *integrationEnv) historyCount(t *testing.T) int {
	t.Helper()
	entries, err := e.history.ListByConnection(context.Background(), e.connID, 0)
	require.NoError(t, err)
	return len(entries)
}

func TestQueryService_ExecuteRecordsHistory(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	before := env.historyCount(t)

	result, err := env.queries.Execute(ctx, env.connID, "", "SELECT username FROM users ORDER BY id")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.RowCount, int64(3))

	entries, err := env.history.ListByConnection(ctx, env.connID, 0)
	require.NoError(t, err)
	require.Len(t, entries, before+1)

	last := entries[len(entries)-1]
	assert.True(t, last.Success)
	assert.Equal(t, "SELECT username FROM users ORDER BY id", last.Statement)
	assert.Equal(t, result.RowCount, last.RowCount)
}

func TestQueryService_FailureRecordsHistory(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	before := env.historyCount(t)

	_, err := env.queries.Execute(ctx, env.connID, "", "SELECT no_such_column FROM users")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStatementFailed)

	entries, listErr := env.history.ListByConnection(ctx, env.connID, 0)
	require.NoError(t, listErr)
	require.Len(t, entries, before+1)

	last := entries[len(entries)-1]
	assert.False(t, last.Success)
	assert.NotEmpty(t, last.Error)
}

func TestQueryService_TimeoutRecordsHistory(t *testing.T) {
	env := newIntegrationEnv(t)

	before := env.historyCount(t)

	// The caller's deadline expires mid-statement; the history write runs
	// on a detached context and must still land.
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	_, err := env.queries.Execute(ctx, env.connID, "", "SELECT pg_sleep(5)")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)

	entries, listErr := env.history.ListByConnection(context.Background(), env.connID, 0)
	require.NoError(t, listErr)
	require.Len(t, entries, before+1)

	last := entries[len(entries)-1]
	assert.False(t, last.Success)
	assert.NotEmpty(t, last.Error)
	assert.Equal(t, "SELECT pg_sleep(5)", last.Statement)
}

func TestQueryService_RejectedStatementLeavesNoHistory(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	before := env.historyCount(t)

	_, err := env.queries.Execute(ctx, env.connID, "", "DROP TABLE users")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.queries.Execute(ctx, env.connID, "", "DELETE FROM users")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	assert.Equal(t, before, env.historyCount(t))
}

func TestBrowseService_RowsEndToEnd(t *testing.T) {
	env := newIntegrationEnv(t)

	result, err := env.browser.Rows(context.Background(), BrowseRequest{
		ConnectionID: env.connID,
		Table:        "users",
		Filters:      map[string]string{"username": "ali"},
		OrderBy:      "id",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.RowCount)
	assert.Equal(t, "alice", result.Rows[0]["username"])
}

func TestBrowseService_UnknownColumnRejected(t *testing.T) {
	env := newIntegrationEnv(t)

	_, err := env.browser.Rows(context.Background(), BrowseRequest{
		ConnectionID: env.connID,
		Table:        "users",
		Filters:      map[string]string{"nope": "x"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestBrowseService_UnknownTableNotFound(t *testing.T) {
	env := newIntegrationEnv(t)

	_, err := env.browser.Rows(context.Background(), BrowseRequest{
		ConnectionID: env.connID,
		Table:        "no_such_table",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestExportService_CSVEndToEnd(t *testing.T) {
	env := newIntegrationEnv(t)

	data, err := env.exporter.Export(context.Background(), env.connID, "", "public", "users", FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(data), "username")
	assert.Contains(t, string(data), "alice")
}

func TestExportService_EmptyTableCSV(t *testing.T) {
	env := newIntegrationEnv(t)

	data, err := env.exporter.Export(context.Background(), env.connID, "", "public", "empty_table", FormatCSV)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestConnectionService_TestStoredCredentials(t *testing.T) {
	env := newIntegrationEnv(t)

	assert.NoError(t, env.connections.Test(context.Background(), env.connID))
}
