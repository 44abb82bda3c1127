package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Service    string            `json:"service"`
	Components map[string]string `json:"components"`
}

// Pinger is a storage backend that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyChecker reports whether the scene source can serve requests.
type ReadyChecker interface {
	Ready(ctx context.Context) (bool, error)
}

type HealthHandler struct {
	storage Pinger
	backend ReadyChecker
	logger  *slog.Logger
}

func NewHealthHandler(storage Pinger, backend ReadyChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		storage: storage,
		backend: backend,
		logger:  logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]string)
	overallStatus := "healthy"

	if err := h.storage.Ping(ctx); err != nil {
		h.logger.Warn("Storage health check failed", "error", err)
		components["storage"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["storage"] = "healthy"
	}

	if ready, err := h.backend.Ready(ctx); err != nil || !ready {
		h.logger.Warn("Generator health check failed", "error", err, "ready", ready)
		components["generator"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["generator"] = "healthy"
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, h.logger, statusCode, HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "kode-keras",
		Components: components,
	})
}
