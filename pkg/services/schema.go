package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource/postgres"
	"github.com/dbdeck/dbdeck-engine/pkg/apperrors"
)

// SchemaService introspects databases, tables, and columns on registered
// connections. Results are derived from the live catalogs on every call,
// never cached, so they cannot go stale against concurrent DDL.
type SchemaService interface {
	// ListDatabases returns the connectable databases on the server.
	ListDatabases(ctx context.Context, connectionID uuid.UUID) ([]string, error)

	// ListTables returns user tables in the given database with best-effort
	// row estimates.
	ListTables(ctx context.Context, connectionID uuid.UUID, database string) ([]datasource.TableDescriptor, error)

	// ListColumns returns the columns of one table in ordinal order.
	// Returns apperrors.ErrNotFound when the table does not exist.
	ListColumns(ctx context.Context, connectionID uuid.UUID, database, schema, table string) ([]datasource.ColumnDescriptor, error)
}

type schemaService struct {
	connections ConnectionService
	logger      *zap.Logger
}

// NewSchemaService creates a schema service.
func NewSchemaService(connections ConnectionService, logger *zap.Logger) SchemaService {
	return &schemaService{
		connections: connections,
		logger:      logger.Named("schema-service"),
	}
}

var _ SchemaService = (*schemaService)(nil)

func (s *schemaService) ListDatabases(ctx context.Context, connectionID uuid.UUID) ([]string, error) {
	pool, err := s.connections.AcquirePool(ctx, connectionID, "")
	if err != nil {
		return nil, err
	}

	return postgres.NewIntrospector(pool).ListDatabases(ctx)
}

func (s *schemaService) ListTables(ctx context.Context, connectionID uuid.UUID, database string) ([]datasource.TableDescriptor, error) {
	pool, err := s.connections.AcquirePool(ctx, connectionID, database)
	if err != nil {
		return nil, err
	}

	return postgres.NewIntrospector(pool).ListTables(ctx)
}

func (s *schemaService) ListColumns(ctx context.Context, connectionID uuid.UUID, database, schema, table string) ([]datasource.ColumnDescriptor, error) {
	pool, err := s.connections.AcquirePool(ctx, connectionID, database)
	if err != nil {
		return nil, err
	}

	columns, err := postgres.NewIntrospector(pool).ListColumns(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table %s.%s does not exist", apperrors.ErrNotFound, schema, table)
	}

	return columns, nil
}
