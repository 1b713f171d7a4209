package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
	"github.com/dbdeck/dbdeck-engine/pkg/apperrors"
)

// Executor runs SQL statements against a pooled external database.
type Executor struct {
	pool *pgxpool.Pool
}

// NewExecutor creates an executor over an existing pool. The pool's lifetime
// is owned by the pool manager, not the executor.
func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{pool: pool}
}

// Execute runs a SQL statement and returns its result with timing. Statements
// that return rows (SELECT, or writes with RETURNING) produce Columns and
// Rows; otherwise RowCount reflects the command tag's rows affected.
func (e *Executor) Execute(ctx context.Context, statement string, args ...any) (*datasource.StatementResult, error) {
	start := time.Now()

	rows, err := e.pool.Query(ctx, statement, args...)
	if err != nil {
		return nil, ClassifyError(err)
	}
	defer rows.Close()

	result := &datasource.StatementResult{}

	fieldDescs := rows.FieldDescriptions()
	if len(fieldDescs) > 0 {
		result.Columns = make([]string, len(fieldDescs))
		for i, fd := range fieldDescs {
			result.Columns[i] = string(fd.Name)
		}

		result.Rows = make([]map[string]any, 0)
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return nil, ClassifyError(fmt.Errorf("failed to read row values: %w", err))
			}

			rowMap := make(map[string]any)
			for i, col := range result.Columns {
				rowMap[col] = values[i]
			}
			result.Rows = append(result.Rows, rowMap)
		}
		result.RowCount = int64(len(result.Rows))
	} else {
		// Statements without a result set must still be consumed to trigger
		// execution and populate errors/CommandTag. pgx defers execution
		// until rows are consumed.
		for rows.Next() {
		}
	}

	if err := rows.Err(); err != nil {
		return nil, ClassifyError(err)
	}

	if len(fieldDescs) == 0 {
		result.RowCount = rows.CommandTag().RowsAffected()
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// ClassifyError maps low-level execution failures onto the application's
// error taxonomy so callers can translate them without inspecting driver
// internals.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: statement exceeded timeout", apperrors.ErrTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: statement canceled", apperrors.ErrTimeout)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Statement was accepted by the server but rejected during
		// parse/plan/execute.
		return fmt.Errorf("%w: %s (%s)", apperrors.ErrStatementFailed, pgErr.Message, pgErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %s", apperrors.ErrTimeout, netErr.Error())
		}
		return fmt.Errorf("%w: %s", apperrors.ErrConnectionFailed, netErr.Error())
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %s", apperrors.ErrConnectionFailed, connectErr.Error())
	}

	return fmt.Errorf("%w: %s", apperrors.ErrStatementFailed, err.Error())
}
