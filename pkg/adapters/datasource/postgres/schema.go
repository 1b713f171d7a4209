package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
)

// qualifiedTableName returns a properly quoted table reference.
// If schemaName is empty, returns just the quoted table name.
// Otherwise returns "schema"."table".
func qualifiedTableName(schemaName, tableName string) string {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	if schemaName == "" {
		return quotedTable
	}
	quotedSchema := pgx.Identifier{schemaName}.Sanitize()
	return quotedSchema + "." + quotedTable
}

// Introspector discovers databases, tables, and columns on an external
// PostgreSQL server.
type Introspector struct {
	pool *pgxpool.Pool
}

// NewIntrospector creates an introspector over an existing pool.
func NewIntrospector(pool *pgxpool.Pool) *Introspector {
	return &Introspector{pool: pool}
}

// ListDatabases returns the names of all connectable non-template databases
// on the server, sorted by name.
func (in *Introspector) ListDatabases(ctx context.Context) ([]string, error) {
	const query = `
		SELECT datname
		FROM pg_database
		WHERE datistemplate = false
		  AND datallowconn = true
		ORDER BY datname
	`

	rows, err := in.pool.Query(ctx, query)
	if err != nil {
		return nil, ClassifyError(err)
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan database: %w", err)
		}
		databases = append(databases, name)
	}

	if err := rows.Err(); err != nil {
		return nil, ClassifyError(err)
	}

	return databases, nil
}

// ListTables returns all user tables in the connected database (system
// schemas excluded). Row estimates come from pg_class.reltuples, which may
// lag the true count until the next ANALYZE.
func (in *Introspector) ListTables(ctx context.Context) ([]datasource.TableDescriptor, error) {
	const query = `
		SELECT
			t.table_schema,
			t.table_name,
			COALESCE(c.reltuples::bigint, 0) as row_estimate
		FROM information_schema.tables t
		LEFT JOIN pg_class c ON c.relname = t.table_name
		LEFT JOIN pg_namespace n ON n.oid = c.relnamespace AND n.nspname = t.table_schema
		WHERE t.table_type = 'BASE TABLE'
		  AND t.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY t.table_schema, t.table_name
	`

	rows, err := in.pool.Query(ctx, query)
	if err != nil {
		return nil, ClassifyError(err)
	}
	defer rows.Close()

	var tables []datasource.TableDescriptor
	for rows.Next() {
		var t datasource.TableDescriptor
		if err := rows.Scan(&t.Schema, &t.Name, &t.RowEstimate); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, ClassifyError(err)
	}

	return tables, nil
}

// ListColumns returns the columns of a table in ordinal order.
// Uses pg_index for primary key and unique detection, which correctly
// identifies primary keys even when created as unique indexes (common with
// ORMs that emit "tablename_pkey" indexes).
func (in *Introspector) ListColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnDescriptor, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' as is_nullable,
			COALESCE(c.column_default, '') as column_default,
			COALESCE(pk.is_pk, false) as is_primary_key,
			COALESCE(uq.is_unique, false) as is_unique,
			CASE WHEN c.is_generated = 'ALWAYS' THEN 'generated' ELSE '' END as extra
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT a.attname as column_name, true as is_pk
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisprimary = true
			  AND n.nspname = $1
			  AND t.relname = $2
			  AND array_length(ix.indkey, 1) = 1
		) pk ON c.column_name = pk.column_name
		LEFT JOIN (
			SELECT a.attname as column_name, true as is_unique
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisunique = true
			  AND ix.indisprimary = false
			  AND n.nspname = $1
			  AND t.relname = $2
			  AND array_length(ix.indkey, 1) = 1
		) uq ON c.column_name = uq.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := in.pool.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, ClassifyError(err)
	}
	defer rows.Close()

	var columns []datasource.ColumnDescriptor
	for rows.Next() {
		var c datasource.ColumnDescriptor
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable, &c.Default, &c.IsPrimaryKey, &c.IsUnique, &c.Extra); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, ClassifyError(err)
	}

	return columns, nil
}
