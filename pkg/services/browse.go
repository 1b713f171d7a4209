package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource/postgres"
	"github.com/dbdeck/dbdeck-engine/pkg/apperrors"
	"github.com/dbdeck/dbdeck-engine/pkg/audit"
	"github.com/dbdeck/dbdeck-engine/pkg/config"
	"github.com/dbdeck/dbdeck-engine/pkg/logging"
	"github.com/dbdeck/dbdeck-engine/pkg/repositories"
	enginesql "github.com/dbdeck/dbdeck-engine/pkg/sql"
)

// DefaultBrowseLimit is the page size applied when a browse request omits one.
const DefaultBrowseLimit = 100

// DefaultSchema is assumed when a browse request omits the schema.
const DefaultSchema = "public"

// BrowseRequest describes a structured row browse over one table.
type BrowseRequest struct {
	ConnectionID uuid.UUID
	Database     string
	Schema       string
	Table        string
	Filters      map[string]string
	Search       string
	SearchColumn string
	OrderBy      string
	OrderDesc    bool
	Limit        int
	Offset       int
}

// BrowseService translates declarative browse requests into parameterized
// statements. Table, column, and sort identifiers are validated against a
// freshly fetched column listing for that exact connection and database
// immediately before use; filter and search values are always bound as
// parameters, never interpolated.
type BrowseService interface {
	// Rows returns one page of table rows. The result's RowCount is the
	// page size actually returned, not the table's total.
	Rows(ctx context.Context, req BrowseRequest) (*datasource.StatementResult, error)
}

type browseService struct {
	connections ConnectionService
	runner      *statementRunner
	auditor     *audit.SecurityAuditor
	cfg         *config.Config
	logger      *zap.Logger
}

// NewBrowseService creates a browse service.
func NewBrowseService(
	connections ConnectionService,
	history repositories.HistoryRepository,
	auditor *audit.SecurityAuditor,
	cfg *config.Config,
	logger *zap.Logger,
) BrowseService {
	logger = logger.Named("browse-service")
	return &browseService{
		connections: connections,
		runner:      newStatementRunner(history, cfg.Queries.StatementTimeout(), logger),
		auditor:     auditor,
		cfg:         cfg,
		logger:      logger,
	}
}

var _ BrowseService = (*browseService)(nil)

func (s *browseService) Rows(ctx context.Context, req BrowseRequest) (*datasource.StatementResult, error) {
	if req.Table == "" {
		return nil, fmt.Errorf("%w: table is required", apperrors.ErrValidation)
	}
	if req.Schema == "" {
		req.Schema = DefaultSchema
	}
	if req.Limit <= 0 {
		req.Limit = DefaultBrowseLimit
	}
	if req.Limit > s.cfg.Queries.MaxBrowseLimit {
		req.Limit = s.cfg.Queries.MaxBrowseLimit
	}
	if req.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", apperrors.ErrValidation)
	}

	pool, err := s.connections.AcquirePool(ctx, req.ConnectionID, req.Database)
	if err != nil {
		return nil, err
	}

	// Fetch the table's real columns right before building the statement.
	// Identifiers are only interpolated after they match this listing.
	columns, err := postgres.NewIntrospector(pool).ListColumns(ctx, req.Schema, req.Table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table %s.%s does not exist", apperrors.ErrNotFound, req.Schema, req.Table)
	}

	known := make(map[string]bool, len(columns))
	allColumns := make([]string, 0, len(columns))
	for _, c := range columns {
		known[c.Name] = true
		allColumns = append(allColumns, c.Name)
	}

	opts := postgres.BrowseOptions{
		Schema:    req.Schema,
		Table:     req.Table,
		OrderBy:   req.OrderBy,
		OrderDesc: req.OrderDesc,
		Limit:     req.Limit,
		Offset:    req.Offset,
	}

	for column, value := range req.Filters {
		if !known[column] {
			return nil, fmt.Errorf("%w: unknown filter column %q", apperrors.ErrValidation, column)
		}
		if err := s.checkValue(ctx, req.ConnectionID, column, value); err != nil {
			return nil, err
		}
		opts.Filters = append(opts.Filters, postgres.ColumnFilter{Column: column, Value: value})
	}

	if req.Search != "" {
		if err := s.checkValue(ctx, req.ConnectionID, "search", req.Search); err != nil {
			return nil, err
		}
		opts.Search = req.Search
		if req.SearchColumn != "" {
			if !known[req.SearchColumn] {
				return nil, fmt.Errorf("%w: unknown search column %q", apperrors.ErrValidation, req.SearchColumn)
			}
			opts.SearchColumns = []string{req.SearchColumn}
		} else {
			opts.SearchColumns = allColumns
		}
	}

	if req.OrderBy != "" && !known[req.OrderBy] {
		return nil, fmt.Errorf("%w: unknown sort column %q", apperrors.ErrValidation, req.OrderBy)
	}

	statement, args := postgres.BuildBrowseStatement(opts)
	return s.runner.run(ctx, req.ConnectionID, pool, statement, args...)
}

// checkValue screens a user-supplied value for injection payloads. Values are
// bound, not interpolated, so this is defense in depth; hits are audited.
func (s *browseService) checkValue(ctx context.Context, connectionID uuid.UUID, name, value string) error {
	if result := enginesql.CheckValueForInjection(name, value); result != nil {
		s.auditor.LogInjectionAttempt(connectionID, audit.SQLInjectionDetails{
			ParamName:   result.ParamName,
			ParamValue:  logging.TruncateString(value, logging.MaxStatementLogLength),
			Fingerprint: result.Fingerprint,
		}, clientIPFromContext(ctx))
		return fmt.Errorf("%w: value for %q rejected by injection screening", apperrors.ErrValidation, name)
	}
	return nil
}
