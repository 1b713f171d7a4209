package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/models"
	"github.com/dbdeck/dbdeck-engine/pkg/services"
)

// CreateConnectionRequest is the POST body for registering a connection.
type CreateConnectionRequest struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	UseTLS   bool   `json:"use_tls"`
}

// TestResultResponse reports the outcome of a credential test.
type TestResultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListConnectionsResponse wraps the connection list.
type ListConnectionsResponse struct {
	Connections []*models.Connection `json:"connections"`
}

// ConnectionsHandler handles connection registry HTTP requests.
type ConnectionsHandler struct {
	connections services.ConnectionService
	logger      *zap.Logger
}

// NewConnectionsHandler creates a new connections handler.
func NewConnectionsHandler(connections services.ConnectionService, logger *zap.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{
		connections: connections,
		logger:      logger,
	}
}

// RegisterRoutes registers the connections handler's routes on the given mux.
func (h *ConnectionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/connections", h.List)
	mux.HandleFunc("POST /api/connections", h.Create)
	mux.HandleFunc("POST /api/connections/test", h.TestCandidate)
	mux.HandleFunc("GET /api/connections/{id}", h.Get)
	mux.HandleFunc("PUT /api/connections/{id}", h.Update)
	mux.HandleFunc("DELETE /api/connections/{id}", h.Delete)
	mux.HandleFunc("POST /api/connections/{id}/test", h.Test)
}

// List handles GET /api/connections.
func (h *ConnectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	connections, err := h.connections.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list connections", zap.Error(err))
		h.writeError(w, err)
		return
	}

	if connections == nil {
		connections = []*models.Connection{}
	}
	if err := WriteJSON(w, http.StatusOK, ListConnectionsResponse{Connections: connections}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/connections.
func (h *ConnectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid_request", "Invalid request body")
		return
	}

	conn := &models.Connection{
		Name:     req.Name,
		Host:     req.Host,
		Port:     req.Port,
		Database: req.Database,
		Username: req.Username,
		Password: req.Password,
		UseTLS:   req.UseTLS,
	}

	if err := h.connections.Create(r.Context(), conn); err != nil {
		h.logger.Error("Failed to create connection",
			zap.String("name", req.Name),
			zap.Error(err))
		h.writeError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, conn); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/connections/{id}.
func (h *ConnectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	conn, err := h.connections.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, conn); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/connections/{id}. Omitted fields are left as-is.
func (h *ConnectionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var update models.ConnectionUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeBadRequest(w, "invalid_request", "Invalid request body")
		return
	}

	conn, err := h.connections.Update(r.Context(), id, &update)
	if err != nil {
		h.logger.Error("Failed to update connection",
			zap.String("id", id.String()),
			zap.Error(err))
		h.writeError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, conn); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/connections/{id}.
func (h *ConnectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.connections.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]bool{"success": true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Test handles POST /api/connections/{id}/test. Verifies stored credentials.
func (h *ConnectionsHandler) Test(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.connections.Test(r.Context(), id); err != nil {
		h.writeTestResult(w, err)
		return
	}

	h.writeTestResult(w, nil)
}

// TestCandidate handles POST /api/connections/test. Verifies credentials
// supplied in the request body without persisting them.
func (h *ConnectionsHandler) TestCandidate(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "invalid_request", "Invalid request body")
		return
	}
	if req.Name == "" {
		req.Name = "candidate"
	}

	conn := &models.Connection{
		Name:     req.Name,
		Host:     req.Host,
		Port:     req.Port,
		Database: req.Database,
		Username: req.Username,
		Password: req.Password,
		UseTLS:   req.UseTLS,
	}

	err := h.connections.TestCandidate(r.Context(), conn)
	h.writeTestResult(w, err)
}

func (h *ConnectionsHandler) writeTestResult(w http.ResponseWriter, err error) {
	resp := TestResultResponse{Success: true, Message: "connection ok"}
	if err != nil {
		resp.Success = false
		resp.Message = err.Error()
	}
	if werr := WriteJSON(w, http.StatusOK, resp); werr != nil {
		h.logger.Error("Failed to write response", zap.Error(werr))
	}
}

func (h *ConnectionsHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeBadRequest(w, "invalid_connection_id", "Invalid connection ID format")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ConnectionsHandler) writeBadRequest(w http.ResponseWriter, code, message string) {
	if err := ErrorResponse(w, http.StatusBadRequest, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *ConnectionsHandler) writeError(w http.ResponseWriter, err error) {
	if werr := WriteServiceError(w, err); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}
