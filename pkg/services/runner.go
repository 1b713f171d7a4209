package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource/postgres"
	"github.com/dbdeck/dbdeck-engine/pkg/logging"
	"github.com/dbdeck/dbdeck-engine/pkg/models"
	"github.com/dbdeck/dbdeck-engine/pkg/repositories"
)

// statementRunner executes statements against remote pools and records every
// execution, success or failure, as exactly one history entry. All statement
// paths (free-form queries, browse, export) funnel through it; introspection
// queries against system catalogs do not.
type statementRunner struct {
	history repositories.HistoryRepository
	timeout time.Duration
	logger  *zap.Logger
}

func newStatementRunner(history repositories.HistoryRepository, timeout time.Duration, logger *zap.Logger) *statementRunner {
	return &statementRunner{
		history: history,
		timeout: timeout,
		logger:  logger,
	}
}

// run executes one statement with the configured timeout and appends the
// history entry before returning. The execution error propagates to the
// caller untouched; a history write failure is logged but never masks the
// execution outcome.
func (r *statementRunner) run(
	ctx context.Context,
	connectionID uuid.UUID,
	pool *pgxpool.Pool,
	statement string,
	args ...any,
) (*datasource.StatementResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, execErr := postgres.NewExecutor(pool).Execute(execCtx, statement, args...)

	entry := &models.HistoryEntry{
		ConnectionID: connectionID,
		Statement:    statement,
	}
	if execErr != nil {
		entry.Success = false
		entry.ElapsedMs = time.Since(start).Milliseconds()
		entry.Error = logging.SanitizeError(execErr)
	} else {
		entry.Success = true
		entry.ElapsedMs = result.Elapsed.Milliseconds()
		entry.RowCount = result.RowCount
	}

	// Record against a fresh context so a timed-out execution still gets
	// its history entry.
	recordCtx, recordCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer recordCancel()
	if err := r.history.Record(recordCtx, entry); err != nil {
		r.logger.Error("failed to record history entry",
			zap.String("connection_id", connectionID.String()),
			zap.String("statement", logging.SanitizeStatement(statement)),
			zap.Error(err))
	}

	if execErr != nil {
		r.logger.Warn("statement failed",
			zap.String("connection_id", connectionID.String()),
			zap.String("statement", logging.SanitizeStatement(statement)),
			zap.Int64("elapsed_ms", entry.ElapsedMs),
			zap.String("error", logging.SanitizeError(execErr)))
		return nil, execErr
	}

	r.logger.Debug("statement executed",
		zap.String("connection_id", connectionID.String()),
		zap.String("statement", logging.SanitizeStatement(statement)),
		zap.Int64("row_count", result.RowCount),
		zap.Int64("elapsed_ms", entry.ElapsedMs))
	return result, nil
}
