package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
	"github.com/dbdeck/dbdeck-engine/pkg/apperrors"
	"github.com/dbdeck/dbdeck-engine/pkg/audit"
	"github.com/dbdeck/dbdeck-engine/pkg/config"
	"github.com/dbdeck/dbdeck-engine/pkg/repositories"
	enginesql "github.com/dbdeck/dbdeck-engine/pkg/sql"
)

// QueryService executes free-form SQL statements against registered
// connections.
type QueryService interface {
	// Execute runs one user-supplied statement against the given
	// connection/database. The statement is type-gated before execution:
	// DDL and transaction control are always rejected, write statements
	// require the allow_writes setting. Every statement that reaches the
	// database produces exactly one history entry.
	Execute(ctx context.Context, connectionID uuid.UUID, database, statement string) (*datasource.StatementResult, error)
}

type queryService struct {
	connections ConnectionService
	runner      *statementRunner
	auditor     *audit.SecurityAuditor
	cfg         *config.Config
	logger      *zap.Logger
}

// NewQueryService creates a query service.
func NewQueryService(
	connections ConnectionService,
	history repositories.HistoryRepository,
	auditor *audit.SecurityAuditor,
	cfg *config.Config,
	logger *zap.Logger,
) QueryService {
	logger = logger.Named("query-service")
	return &queryService{
		connections: connections,
		runner:      newStatementRunner(history, cfg.Queries.StatementTimeout(), logger),
		auditor:     auditor,
		cfg:         cfg,
		logger:      logger,
	}
}

var _ QueryService = (*queryService)(nil)

func (s *queryService) Execute(ctx context.Context, connectionID uuid.UUID, database, statement string) (*datasource.StatementResult, error) {
	if strings.TrimSpace(statement) == "" {
		return nil, fmt.Errorf("%w: statement is required", apperrors.ErrValidation)
	}

	statementType, err := enginesql.ValidateStatementType(statement, s.cfg.Queries.AllowWrites)
	if err != nil {
		s.auditor.LogStatementRejected(connectionID, err.Error(), clientIPFromContext(ctx))
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}

	pool, err := s.connections.AcquirePool(ctx, connectionID, database)
	if err != nil {
		return nil, err
	}

	result, err := s.runner.run(ctx, connectionID, pool, statement)
	if err != nil {
		return nil, err
	}

	s.auditor.LogStatementExecution(connectionID, string(statementType), clientIPFromContext(ctx))
	return result, nil
}
