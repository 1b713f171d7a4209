package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dbdeck/dbdeck-engine/pkg/database"
	"github.com/dbdeck/dbdeck-engine/pkg/models"
)

// HistoryRepository defines the interface for query history data access.
type HistoryRepository interface {
	// Record inserts an execution record.
	Record(ctx context.Context, entry *models.HistoryEntry) error

	// ListByConnection retrieves history entries for a connection, oldest
	// first, up to limit entries. A limit of 0 returns all entries.
	ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*models.HistoryEntry, error)

	// DeleteOlderThan removes entries created before the cutoff. Returns the
	// number of entries removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// historyRepository implements HistoryRepository using PostgreSQL.
type historyRepository struct {
	db *database.DB
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db *database.DB) HistoryRepository {
	return &historyRepository{db: db}
}

// Record inserts an execution record.
func (r *historyRepository) Record(ctx context.Context, entry *models.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO engine_query_history (connection_id, statement, success, elapsed_ms, row_count, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.Pool.QueryRow(ctx, query,
		entry.ConnectionID,
		entry.Statement,
		entry.Success,
		entry.ElapsedMs,
		entry.RowCount,
		entry.Error,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to record history entry: %w", err)
	}

	return nil
}

// ListByConnection retrieves history entries for a connection, oldest first.
func (r *historyRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, connection_id, statement, success, elapsed_ms, row_count, error, created_at
		FROM engine_query_history
		WHERE connection_id = $1
		ORDER BY created_at`
	args := []any{connectionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		err := rows.Scan(
			&entry.ID,
			&entry.ConnectionID,
			&entry.Statement,
			&entry.Success,
			&entry.ElapsedMs,
			&entry.RowCount,
			&entry.Error,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return entries, nil
}

// DeleteOlderThan removes entries created before the cutoff.
func (r *historyRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM engine_query_history WHERE created_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old history entries: %w", err)
	}

	return result.RowsAffected(), nil
}

// Ensure historyRepository implements HistoryRepository at compile time.
var _ HistoryRepository = (*historyRepository)(nil)
