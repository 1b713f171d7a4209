package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource/postgres"
	"github.com/dbdeck/dbdeck-engine/pkg/apperrors"
	"github.com/dbdeck/dbdeck-engine/pkg/config"
	"github.com/dbdeck/dbdeck-engine/pkg/crypto"
	"github.com/dbdeck/dbdeck-engine/pkg/models"
	"github.com/dbdeck/dbdeck-engine/pkg/repositories"
)

// ConnectionService manages registered external database connections and
// resolves pools for them.
type ConnectionService interface {
	// Create registers a new connection. The password is encrypted before
	// storage.
	Create(ctx context.Context, conn *models.Connection) error

	// Get retrieves a connection by ID. The returned record never carries
	// the plaintext password.
	Get(ctx context.Context, id uuid.UUID) (*models.Connection, error)

	// List retrieves all registered connections ordered by name.
	List(ctx context.Context) ([]*models.Connection, error)

	// Update applies a partial update. Any change to credential fields
	// invalidates the connection's live pools before they can serve a
	// statement with stale credentials.
	Update(ctx context.Context, id uuid.UUID, update *models.ConnectionUpdate) (*models.Connection, error)

	// Delete removes a connection record after invalidating its pools.
	Delete(ctx context.Context, id uuid.UUID) error

	// Test verifies that a stored connection's credentials still work.
	Test(ctx context.Context, id uuid.UUID) error

	// TestCandidate verifies candidate credentials without persisting them.
	TestCandidate(ctx context.Context, conn *models.Connection) error

	// AcquirePool resolves the pool for a connection/database pair, creating
	// it lazily. An empty database selects the record's default database.
	AcquirePool(ctx context.Context, id uuid.UUID, database string) (*pgxpool.Pool, error)

	// PoolStats reports the current pool manager state.
	PoolStats() datasource.PoolStats
}

type connectionService struct {
	repo      repositories.ConnectionRepository
	pools     *datasource.PoolManager
	encryptor *crypto.CredentialEncryptor
	cfg       *config.Config
	logger    *zap.Logger
}

// NewConnectionService creates a connection service.
func NewConnectionService(
	repo repositories.ConnectionRepository,
	pools *datasource.PoolManager,
	encryptor *crypto.CredentialEncryptor,
	cfg *config.Config,
	logger *zap.Logger,
) ConnectionService {
	return &connectionService{
		repo:      repo,
		pools:     pools,
		encryptor: encryptor,
		cfg:       cfg,
		logger:    logger.Named("connection-service"),
	}
}

var _ ConnectionService = (*connectionService)(nil)

// validateConnection checks required fields and applies the port default.
func validateConnection(conn *models.Connection) error {
	if strings.TrimSpace(conn.Name) == "" {
		return fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if strings.TrimSpace(conn.Host) == "" {
		return fmt.Errorf("%w: host is required", apperrors.ErrValidation)
	}
	if strings.TrimSpace(conn.Username) == "" {
		return fmt.Errorf("%w: username is required", apperrors.ErrValidation)
	}
	if strings.TrimSpace(conn.Database) == "" {
		return fmt.Errorf("%w: database is required", apperrors.ErrValidation)
	}
	if conn.Port == 0 {
		conn.Port = models.DefaultPort
	}
	if conn.Port < 0 || conn.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535", apperrors.ErrValidation)
	}
	return nil
}

func (s *connectionService) Create(ctx context.Context, conn *models.Connection) error {
	if err := validateConnection(conn); err != nil {
		return err
	}

	encrypted, err := s.encryptor.Encrypt(conn.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}

	if err := s.repo.Create(ctx, conn, encrypted); err != nil {
		return err
	}

	s.logger.Info("registered connection",
		zap.String("id", conn.ID.String()),
		zap.String("name", conn.Name),
		zap.String("host", conn.Host))
	return nil
}

func (s *connectionService) Get(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	conn, _, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *connectionService) List(ctx context.Context) ([]*models.Connection, error) {
	return s.repo.List(ctx)
}

func (s *connectionService) Update(ctx context.Context, id uuid.UUID, update *models.ConnectionUpdate) (*models.Connection, error) {
	conn, encrypted, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	update.Apply(conn)
	if err := validateConnection(conn); err != nil {
		return nil, err
	}

	if update.Password != nil {
		encrypted, err = s.encryptor.Encrypt(*update.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt password: %w", err)
		}
	}

	// Drop stale pools before the new record is visible so no statement
	// runs against the old credentials.
	if update.TouchesCredentials() {
		s.pools.Invalidate(id)
	}

	if err := s.repo.Update(ctx, conn, encrypted); err != nil {
		return nil, err
	}

	s.logger.Info("updated connection",
		zap.String("id", id.String()),
		zap.Bool("credentials_changed", update.TouchesCredentials()))
	return conn, nil
}

func (s *connectionService) Delete(ctx context.Context, id uuid.UUID) error {
	s.pools.Invalidate(id)

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("deleted connection", zap.String("id", id.String()))
	return nil
}

func (s *connectionService) Test(ctx context.Context, id uuid.UUID) error {
	connStr, _, err := s.connString(ctx, id, "")
	if err != nil {
		return err
	}

	if err := s.pools.TestCredentials(ctx, connStr); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrConnectionFailed, err.Error())
	}
	return nil
}

func (s *connectionService) TestCandidate(ctx context.Context, conn *models.Connection) error {
	if err := validateConnection(conn); err != nil {
		return err
	}

	connStr := postgres.BuildConnectionString(postgres.Config{
		Host:                  conn.Host,
		Port:                  conn.Port,
		Database:              conn.Database,
		User:                  conn.Username,
		Password:              conn.Password,
		UseTLS:                conn.UseTLS,
		ConnectTimeoutSeconds: s.cfg.Pools.ConnectTimeoutSeconds,
	})

	if err := s.pools.TestCredentials(ctx, connStr); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrConnectionFailed, err.Error())
	}
	return nil
}

func (s *connectionService) AcquirePool(ctx context.Context, id uuid.UUID, database string) (*pgxpool.Pool, error) {
	connStr, resolved, err := s.connString(ctx, id, database)
	if err != nil {
		return nil, err
	}

	pool, err := s.pools.GetOrCreatePool(ctx, id, resolved, connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrConnectionFailed, err.Error())
	}
	return pool, nil
}

func (s *connectionService) PoolStats() datasource.PoolStats {
	return s.pools.Stats()
}

// connString materializes the connection string for a stored record,
// decrypting the password. An empty database selects the record's default;
// the resolved database name is returned so pool keys never alias.
func (s *connectionService) connString(ctx context.Context, id uuid.UUID, database string) (string, string, error) {
	conn, encrypted, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", "", err
	}

	password, err := s.encryptor.Decrypt(encrypted)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return "", "", fmt.Errorf("%w: %s", apperrors.ErrCredentialsKeyMismatch, conn.Name)
		}
		return "", "", fmt.Errorf("failed to decrypt password: %w", err)
	}

	if database == "" {
		database = conn.Database
	}

	return postgres.BuildConnectionString(postgres.Config{
		Host:                  conn.Host,
		Port:                  conn.Port,
		Database:              database,
		User:                  conn.Username,
		Password:              password,
		UseTLS:                conn.UseTLS,
		ConnectTimeoutSeconds: s.cfg.Pools.ConnectTimeoutSeconds,
	}), database, nil
}
