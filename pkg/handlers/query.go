package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/services"
)

// ExecuteQueryRequest is the POST body for ad hoc SQL execution.
type ExecuteQueryRequest struct {
	Database  string `json:"database,omitempty"`
	Statement string `json:"statement"`
}

// ExecuteQueryResponse carries the normalized result of one statement.
type ExecuteQueryResponse struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int64            `json:"row_count"`
	ElapsedMs int64            `json:"elapsed_ms"`
}

// QueryHandler handles ad hoc SQL execution HTTP requests.
type QueryHandler struct {
	queries services.QueryService
	logger  *zap.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(queries services.QueryService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		queries: queries,
		logger:  logger,
	}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/connections/{id}/query", h.Execute)
}

// Execute handles POST /api/connections/{id}/query.
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_connection_id", "Invalid connection ID format"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	var req ExecuteQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	ctx := services.WithClientIP(r.Context(), r.RemoteAddr)
	result, err := h.queries.Execute(ctx, id, req.Database, req.Statement)
	if err != nil {
		if werr := WriteServiceError(w, err); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	resp := ExecuteQueryResponse{
		Columns:   result.Columns,
		Rows:      result.Rows,
		RowCount:  result.RowCount,
		ElapsedMs: result.Elapsed.Milliseconds(),
	}
	if resp.Columns == nil {
		resp.Columns = []string{}
	}
	if resp.Rows == nil {
		resp.Rows = []map[string]any{}
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
