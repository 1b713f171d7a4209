package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbdeck/dbdeck-engine/pkg/apperrors"
	"github.com/dbdeck/dbdeck-engine/pkg/testhelpers"
)

func TestExecutor_Select(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	executor := NewExecutor(testDB.Pool)

	result, err := executor.Execute(context.Background(),
		"SELECT id, username, email FROM users ORDER BY id")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "username", "email"}, result.Columns)
	require.GreaterOrEqual(t, result.RowCount, int64(3))
	assert.Equal(t, "admin", result.Rows[0]["username"])
	assert.Greater(t, result.Elapsed, time.Duration(0))
}

func TestExecutor_SelectWithArgs(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	executor := NewExecutor(testDB.Pool)

	result, err := executor.Execute(context.Background(),
		"SELECT username FROM users WHERE username = $1", "alice")
	require.NoError(t, err)

	require.Equal(t, int64(1), result.RowCount)
	assert.Equal(t, "alice", result.Rows[0]["username"])
}

func TestExecutor_ZeroRowsKeepColumns(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	executor := NewExecutor(testDB.Pool)

	result, err := executor.Execute(context.Background(),
		"SELECT id, label FROM empty_table")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "label"}, result.Columns)
	assert.Equal(t, int64(0), result.RowCount)
	assert.Empty(t, result.Rows)
}

func TestExecutor_WriteRowsAffected(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	executor := NewExecutor(testDB.Pool)
	ctx := context.Background()

	_, err := executor.Execute(ctx, "CREATE TABLE IF NOT EXISTS exec_scratch (id INT)")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = testDB.Pool.Exec(context.Background(), "DROP TABLE IF EXISTS exec_scratch")
	})

	result, err := executor.Execute(ctx, "INSERT INTO exec_scratch VALUES (1), (2), (3)")
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.RowCount)
	assert.Nil(t, result.Columns)

	result, err = executor.Execute(ctx, "UPDATE exec_scratch SET id = id + 10 WHERE id > 1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.RowCount)
}

func TestExecutor_StatementError(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	executor := NewExecutor(testDB.Pool)

	_, err := executor.Execute(context.Background(), "SELECT no_such_column FROM users")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStatementFailed)
	assert.Contains(t, err.Error(), "no_such_column")
}

func TestExecutor_Timeout(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	executor := NewExecutor(testDB.Pool)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := executor.Execute(ctx, "SELECT pg_sleep(5)")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}

func TestIntrospector_ListDatabases(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	introspector := NewIntrospector(testDB.Pool)

	databases, err := introspector.ListDatabases(context.Background())
	require.NoError(t, err)

	assert.Contains(t, databases, "test_data")
	assert.NotContains(t, databases, "template0")
}

func TestIntrospector_ListTables(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	introspector := NewIntrospector(testDB.Pool)

	tables, err := introspector.ListTables(context.Background())
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, tbl := range tables {
		assert.Equal(t, "public", tbl.Schema)
		names[tbl.Name] = true
	}
	assert.True(t, names["users"])
	assert.True(t, names["orders"])
	assert.True(t, names["empty_table"])
}

func TestIntrospector_ListColumns(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	introspector := NewIntrospector(testDB.Pool)

	columns, err := introspector.ListColumns(context.Background(), "public", "users")
	require.NoError(t, err)
	require.Len(t, columns, 5)

	byName := make(map[string]int)
	for i, c := range columns {
		byName[c.Name] = i
	}

	id := columns[byName["id"]]
	assert.True(t, id.IsPrimaryKey)
	assert.False(t, id.Nullable)
	assert.NotEmpty(t, id.Default)

	username := columns[byName["username"]]
	assert.False(t, username.IsPrimaryKey)
	assert.True(t, username.IsUnique)
	assert.False(t, username.Nullable)

	// Ordinal order
	assert.Equal(t, "id", columns[0].Name)
}

func TestIntrospector_ListColumnsUnknownTable(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	introspector := NewIntrospector(testDB.Pool)

	columns, err := introspector.ListColumns(context.Background(), "public", "no_such_table")
	require.NoError(t, err)
	assert.Empty(t, columns)
}

func TestBrowseStatement_EndToEnd(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	executor := NewExecutor(testDB.Pool)

	statement, args := BuildBrowseStatement(BrowseOptions{
		Schema:  "public",
		Table:   "users",
		Filters: []ColumnFilter{{Column: "username", Value: "ali"}},
		OrderBy: "id",
		Limit:   10,
	})

	result, err := executor.Execute(context.Background(), statement, args...)
	require.NoError(t, err)
	require.Equal(t, int64(1), result.RowCount)
	assert.Equal(t, "alice", result.Rows[0]["username"])
}

func TestBrowseStatement_SearchAcrossColumns(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	executor := NewExecutor(testDB.Pool)

	statement, args := BuildBrowseStatement(BrowseOptions{
		Schema:        "public",
		Table:         "users",
		Search:        "example.com",
		SearchColumns: []string{"username", "email"},
		Limit:         10,
	})

	result, err := executor.Execute(context.Background(), statement, args...)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.RowCount, int64(3))
}
