package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
	"github.com/dbdeck/dbdeck-engine/pkg/services"
)

// ListDatabasesResponse wraps the database name listing.
type ListDatabasesResponse struct {
	Databases []string `json:"databases"`
}

// ListTablesResponse wraps the table listing.
type ListTablesResponse struct {
	Tables []datasource.TableDescriptor `json:"tables"`
}

// ListColumnsResponse wraps the column listing.
type ListColumnsResponse struct {
	Columns []datasource.ColumnDescriptor `json:"columns"`
}

// RowsResponse is one page of browsed rows.
type RowsResponse struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int64            `json:"row_count"`
	Offset   int              `json:"offset"`
	Limit    int              `json:"limit"`
}

// SchemaHandler handles introspection, browse, and export HTTP requests.
type SchemaHandler struct {
	schema  services.SchemaService
	browser services.BrowseService
	export  services.ExportService
	logger  *zap.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(
	schema services.SchemaService,
	browser services.BrowseService,
	export services.ExportService,
	logger *zap.Logger,
) *SchemaHandler {
	return &SchemaHandler{
		schema:  schema,
		browser: browser,
		export:  export,
		logger:  logger,
	}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/connections/{id}/databases", h.ListDatabases)
	mux.HandleFunc("GET /api/connections/{id}/databases/{db}/tables", h.ListTables)
	mux.HandleFunc("GET /api/connections/{id}/databases/{db}/tables/{table}/columns", h.ListColumns)
	mux.HandleFunc("GET /api/connections/{id}/databases/{db}/tables/{table}/rows", h.Rows)
	mux.HandleFunc("GET /api/connections/{id}/databases/{db}/tables/{table}/export", h.Export)
}

// ListDatabases handles GET /api/connections/{id}/databases.
func (h *SchemaHandler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	databases, err := h.schema.ListDatabases(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to list databases",
			zap.String("connection_id", id.String()),
			zap.Error(err))
		h.writeError(w, err)
		return
	}

	if databases == nil {
		databases = []string{}
	}
	if err := WriteJSON(w, http.StatusOK, ListDatabasesResponse{Databases: databases}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListTables handles GET /api/connections/{id}/databases/{db}/tables.
func (h *SchemaHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	tables, err := h.schema.ListTables(r.Context(), id, r.PathValue("db"))
	if err != nil {
		h.logger.Error("Failed to list tables",
			zap.String("connection_id", id.String()),
			zap.Error(err))
		h.writeError(w, err)
		return
	}

	if tables == nil {
		tables = []datasource.TableDescriptor{}
	}
	if err := WriteJSON(w, http.StatusOK, ListTablesResponse{Tables: tables}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListColumns handles GET /api/connections/{id}/databases/{db}/tables/{table}/columns.
// The schema defaults to "public" and can be overridden with ?schema=.
func (h *SchemaHandler) ListColumns(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	schema := r.URL.Query().Get("schema")
	if schema == "" {
		schema = services.DefaultSchema
	}

	columns, err := h.schema.ListColumns(r.Context(), id, r.PathValue("db"), schema, r.PathValue("table"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ListColumnsResponse{Columns: columns}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Rows handles GET /api/connections/{id}/databases/{db}/tables/{table}/rows.
// Query parameters: offset, limit, search, column (narrows search), sort,
// dir=desc, schema, and filter.<column>=<value> pairs.
func (h *SchemaHandler) Rows(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	req := services.BrowseRequest{
		ConnectionID: id,
		Database:     r.PathValue("db"),
		Schema:       q.Get("schema"),
		Table:        r.PathValue("table"),
		Search:       q.Get("search"),
		SearchColumn: q.Get("column"),
		OrderBy:      q.Get("sort"),
		OrderDesc:    q.Get("dir") == "desc",
	}

	var err error
	if req.Offset, err = parseIntParam(q.Get("offset"), 0); err != nil {
		h.writeBadRequest(w, "invalid_offset", "offset must be an integer")
		return
	}
	if req.Limit, err = parseIntParam(q.Get("limit"), 0); err != nil {
		h.writeBadRequest(w, "invalid_limit", "limit must be an integer")
		return
	}

	for key, values := range q {
		if len(key) > 7 && key[:7] == "filter." && len(values) > 0 {
			if req.Filters == nil {
				req.Filters = make(map[string]string)
			}
			req.Filters[key[7:]] = values[0]
		}
	}

	result, err := h.browser.Rows(services.WithClientIP(r.Context(), r.RemoteAddr), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := RowsResponse{
		Columns:  result.Columns,
		Rows:     result.Rows,
		RowCount: result.RowCount,
		Offset:   req.Offset,
		Limit:    req.Limit,
	}
	if resp.Rows == nil {
		resp.Rows = []map[string]any{}
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Export handles GET /api/connections/{id}/databases/{db}/tables/{table}/export.
func (h *SchemaHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	format, err := services.ParseExportFormat(q.Get("format"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	schema := q.Get("schema")
	table := r.PathValue("table")

	data, err := h.export.Export(r.Context(), id, r.PathValue("db"), schema, table, format)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+table+`.`+string(format)+`"`)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("Failed to write export body", zap.Error(err))
	}
}

func parseIntParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (h *SchemaHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeBadRequest(w, "invalid_connection_id", "Invalid connection ID format")
		return uuid.Nil, false
	}
	return id, true
}

func (h *SchemaHandler) writeBadRequest(w http.ResponseWriter, code, message string) {
	if err := ErrorResponse(w, http.StatusBadRequest, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *SchemaHandler) writeError(w http.ResponseWriter, err error) {
	if werr := WriteServiceError(w, err); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}
