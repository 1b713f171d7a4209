package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/models"
	"github.com/dbdeck/dbdeck-engine/pkg/services"
)

// HistoryResponse wraps the execution history for a connection, oldest first.
type HistoryResponse struct {
	Entries []*models.HistoryEntry `json:"entries"`
}

// HistoryHandler handles query history HTTP requests.
type HistoryHandler struct {
	history services.HistoryService
	logger  *zap.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(history services.HistoryService, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger,
	}
}

// RegisterRoutes registers the history handler's routes on the given mux.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/connections/{id}/history", h.List)
}

// List handles GET /api/connections/{id}/history. Accepts ?limit=.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_connection_id", "Invalid connection ID format"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer"); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
			return
		}
	}

	entries, err := h.history.List(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("Failed to list history",
			zap.String("connection_id", id.String()),
			zap.Error(err))
		if werr := WriteServiceError(w, err); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	if entries == nil {
		entries = []*models.HistoryEntry{}
	}
	if err := WriteJSON(w, http.StatusOK, HistoryResponse{Entries: entries}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
