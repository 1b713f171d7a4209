package handlers

import (
	"net/http"
	"runtime"

	"go.uber.org/zap"

	"github.com/dbdeck/dbdeck-engine/pkg/adapters/datasource"
	"github.com/dbdeck/dbdeck-engine/pkg/config"
	"github.com/dbdeck/dbdeck-engine/pkg/services"
)

// HealthResponse contains service status, version, and pool statistics.
type HealthResponse struct {
	Status      string               `json:"status"`
	Version     string               `json:"version"`
	Service     string               `json:"service"`
	GoVersion   string               `json:"go_version"`
	Environment string               `json:"environment"`
	Pools       datasource.PoolStats `json:"pools"`
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	cfg         *config.Config
	connections services.ConnectionService
	logger      *zap.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(cfg *config.Config, connections services.ConnectionService, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, connections: connections, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.Health)
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "dbdeck-engine",
		GoVersion:   runtime.Version(),
		Environment: h.cfg.Env,
		Pools:       h.connections.PoolStats(),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
