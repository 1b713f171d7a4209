package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
	"github.com/dbdeck/dbdeck-engine/pkg/models"
	"github.com/dbdeck/dbdeck-engine/pkg/services"
)

// fakeConnectionService implements services.ConnectionService for handler tests.
type fakeConnectionService struct {
	connections []*models.Connection
	createErr   error
	getErr      error
	updateErr   error
	deleteErr   error
	testErr     error
	deleted     []uuid.UUID
}

func (f *fakeConnectionService) Create(_ context.Context, conn *models.Connection) error {
	if f.createErr != nil {
		return f.createErr
	}
	conn.ID = uuid.New()
	conn.CreatedAt = time.Now()
	conn.UpdatedAt = conn.CreatedAt
	f.connections = append(f.connections, conn)
	return nil
}

func (f *fakeConnectionService) Get(_ context.Context, id uuid.UUID) (*models.Connection, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, conn := range f.connections {
		if conn.ID == id {
			return conn, nil
		}
	}
	return nil, f.getErr
}

func (f *fakeConnectionService) List(_ context.Context) ([]*models.Connection, error) {
	return f.connections, nil
}

func (f *fakeConnectionService) Update(_ context.Context, id uuid.UUID, update *models.ConnectionUpdate) (*models.Connection, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for _, conn := range f.connections {
		if conn.ID == id {
			update.Apply(conn)
			return conn, nil
		}
	}
	return nil, f.updateErr
}

func (f *fakeConnectionService) Delete(_ context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeConnectionService) Test(_ context.Context, _ uuid.UUID) error {
	return f.testErr
}

func (f *fakeConnectionService) TestCandidate(_ context.Context, _ *models.Connection) error {
	return f.testErr
}

func (f *fakeConnectionService) AcquirePool(_ context.Context, _ uuid.UUID, _ string) (*pgxpool.Pool, error) {
	return nil, nil
}

func (f *fakeConnectionService) PoolStats() datasource.PoolStats {
	return datasource.PoolStats{PoolsByConnection: map[string]int{}}
}

var _ services.ConnectionService = (*fakeConnectionService)(nil)

// fakeQueryService implements services.QueryService for handler tests.
type fakeQueryService struct {
	result *datasource.StatementResult
	err    error

	gotConnectionID uuid.UUID
	gotDatabase     string
	gotStatement    string
}

func (f *fakeQueryService) Execute(_ context.Context, connectionID uuid.UUID, database, statement string) (*datasource.StatementResult, error) {
	f.gotConnectionID = connectionID
	f.gotDatabase = database
	f.gotStatement = statement
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

var _ services.QueryService = (*fakeQueryService)(nil)

// fakeHistoryService implements services.HistoryService for handler tests.
type fakeHistoryService struct {
	entries  []*models.HistoryEntry
	err      error
	gotLimit int
}

func (f *fakeHistoryService) List(_ context.Context, _ uuid.UUID, limit int) ([]*models.HistoryEntry, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func (f *fakeHistoryService) Prune(_ context.Context, _ int) (int64, error) {
	return 0, nil
}

func (f *fakeHistoryService) RunScheduler(_ context.Context, _ time.Duration, _ int) {}

var _ services.HistoryService = (*fakeHistoryService)(nil)
