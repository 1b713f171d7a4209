package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dbdeck/dbdeck-engine/pkg/apperrors"
	"github.com/dbdeck/dbdeck-engine/pkg/database"
	"github.com/dbdeck/dbdeck-engine/pkg/models"
)

// ConnectionRepository defines the interface for connection record data access.
// Passwords are stored as encrypted TEXT - encryption/decryption is handled by
// the service layer.
type ConnectionRepository interface {
	// Create inserts a new connection. Returns apperrors.ErrConflict if the
	// name is already taken.
	Create(ctx context.Context, conn *models.Connection, encryptedPassword string) error

	// GetByID retrieves a connection by ID. Returns the model and the
	// encrypted password.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Connection, string, error)

	// List retrieves all connections ordered by name. Passwords are not
	// returned.
	List(ctx context.Context) ([]*models.Connection, error)

	// Update modifies an existing connection record.
	Update(ctx context.Context, conn *models.Connection, encryptedPassword string) error

	// Delete removes a connection by ID.
	Delete(ctx context.Context, id uuid.UUID) error
}

// connectionRepository implements ConnectionRepository using PostgreSQL.
type connectionRepository struct {
	db *database.DB
}

// NewConnectionRepository creates a new connection repository.
func NewConnectionRepository(db *database.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

// Create inserts a new connection.
func (r *connectionRepository) Create(ctx context.Context, conn *models.Connection, encryptedPassword string) error {
	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	query := `
		INSERT INTO engine_connections (name, host, port, database_name, username, password_encrypted, use_tls, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.db.Pool.QueryRow(ctx, query,
		conn.Name,
		conn.Host,
		conn.Port,
		conn.Database,
		conn.Username,
		encryptedPassword,
		conn.UseTLS,
		conn.CreatedAt,
		conn.UpdatedAt,
	).Scan(&conn.ID)
	if err != nil {
		// Unique constraint violation (PostgreSQL error code 23505)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create connection: %w", err)
	}

	return nil
}

// GetByID retrieves a connection by ID.
func (r *connectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Connection, string, error) {
	query := `
		SELECT id, name, host, port, database_name, username, password_encrypted, use_tls, created_at, updated_at
		FROM engine_connections
		WHERE id = $1`

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *connectionRepository) scanOne(row pgx.Row) (*models.Connection, string, error) {
	var conn models.Connection
	var encryptedPassword string
	err := row.Scan(
		&conn.ID,
		&conn.Name,
		&conn.Host,
		&conn.Port,
		&conn.Database,
		&conn.Username,
		&encryptedPassword,
		&conn.UseTLS,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", apperrors.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get connection: %w", err)
	}

	return &conn, encryptedPassword, nil
}

// List retrieves all connections ordered by name.
func (r *connectionRepository) List(ctx context.Context) ([]*models.Connection, error) {
	query := `
		SELECT id, name, host, port, database_name, username, use_tls, created_at, updated_at
		FROM engine_connections
		ORDER BY name`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var connections []*models.Connection
	for rows.Next() {
		var conn models.Connection
		err := rows.Scan(
			&conn.ID,
			&conn.Name,
			&conn.Host,
			&conn.Port,
			&conn.Database,
			&conn.Username,
			&conn.UseTLS,
			&conn.CreatedAt,
			&conn.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		connections = append(connections, &conn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}

	return connections, nil
}

// Update modifies an existing connection record.
func (r *connectionRepository) Update(ctx context.Context, conn *models.Connection, encryptedPassword string) error {
	conn.UpdatedAt = time.Now()

	query := `
		UPDATE engine_connections
		SET name = $2, host = $3, port = $4, database_name = $5, username = $6, password_encrypted = $7, use_tls = $8, updated_at = $9
		WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query,
		conn.ID,
		conn.Name,
		conn.Host,
		conn.Port,
		conn.Database,
		conn.Username,
		encryptedPassword,
		conn.UseTLS,
		conn.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update connection: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a connection by ID.
func (r *connectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM engine_connections WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure connectionRepository implements ConnectionRepository at compile time.
var _ ConnectionRepository = (*connectionRepository)(nil)
