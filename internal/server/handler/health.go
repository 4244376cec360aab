package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a dependency that can report its connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	store  Pinger
	cache  Pinger // optional
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. The cache pinger may be nil in
// single-process deployments.
func NewHealthHandler(store, cache Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, cache: cache, logger: logger}
}

// HealthCheck reports server liveness and dependency connectivity.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := map[string]string{}

	if h.store != nil {
		deps["store"] = "ok"
		if err := h.store.Ping(ctx); err != nil {
			deps["store"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	if h.cache != nil {
		deps["cache"] = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			deps["cache"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	body := map[string]any{
		"status":       "ok",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"dependencies": deps,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
