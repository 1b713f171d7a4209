package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource/postgres"
	"github.com/dbdeck/dbdeck-engine/pkg/apperrors"
	"github.com/dbdeck/dbdeck-engine/pkg/config"
	"github.com/dbdeck/dbdeck-engine/pkg/repositories"
)

// ExportFormat selects the serialization for a table export.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseExportFormat validates a format string from the request.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(s) {
	case "csv", "":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", apperrors.ErrValidation, s)
	}
}

// ContentType returns the MIME type for HTTP responses.
func (f ExportFormat) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// ExportService serializes full tables to CSV or JSON. Exports run through
// the same executor path as queries, so each export is recorded in history.
type ExportService interface {
	// Export fetches all rows of a table and serializes them.
	// An empty table yields an empty string for CSV and "[]" for JSON.
	Export(ctx context.Context, connectionID uuid.UUID, database, schema, table string, format ExportFormat) ([]byte, error)
}

type exportService struct {
	connections ConnectionService
	runner      *statementRunner
	logger      *zap.Logger
}

// NewExportService creates an export service.
func NewExportService(
	connections ConnectionService,
	history repositories.HistoryRepository,
	cfg *config.Config,
	logger *zap.Logger,
) ExportService {
	logger = logger.Named("export-service")
	return &exportService{
		connections: connections,
		runner:      newStatementRunner(history, cfg.Queries.StatementTimeout(), logger),
		logger:      logger,
	}
}

var _ ExportService = (*exportService)(nil)

func (s *exportService) Export(ctx context.Context, connectionID uuid.UUID, database, schema, table string, format ExportFormat) ([]byte, error) {
	if table == "" {
		return nil, fmt.Errorf("%w: table is required", apperrors.ErrValidation)
	}
	if schema == "" {
		schema = DefaultSchema
	}

	pool, err := s.connections.AcquirePool(ctx, connectionID, database)
	if err != nil {
		return nil, err
	}

	// Confirm the table exists before interpolating its name.
	columns, err := postgres.NewIntrospector(pool).ListColumns(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table %s.%s does not exist", apperrors.ErrNotFound, schema, table)
	}

	statement, args := postgres.BuildBrowseStatement(postgres.BrowseOptions{
		Schema: schema,
		Table:  table,
	})

	result, err := s.runner.run(ctx, connectionID, pool, statement, args...)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		return encodeJSON(result)
	default:
		return encodeCSV(result)
	}
}

// encodeCSV writes a header line followed by one line per row, preserving
// result-set column order. An empty table produces an empty string, not a
// lone header.
func encodeCSV(result *datasource.StatementResult) ([]byte, error) {
	if len(result.Rows) == 0 {
		return []byte{}, nil
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(result.Columns); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i, col := range result.Columns {
			record[i] = formatCSVValue(row[col])
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return []byte(sb.String()), nil
}

// formatCSVValue renders one cell. NULL becomes an empty field.
func formatCSVValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// encodeJSON serializes rows as an array of objects preserving result-set
// column order, which map marshaling would discard. An empty table is "[]".
func encodeJSON(result *datasource.StatementResult) ([]byte, error) {
	rows := make([]orderedRow, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = orderedRow{columns: result.Columns, values: row}
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return data, nil
}

// orderedRow marshals one row with its keys in result-set column order
// instead of the alphabetical order encoding/json uses for maps.
type orderedRow struct {
	columns []string
	values  map[string]any
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(r.values[col])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
