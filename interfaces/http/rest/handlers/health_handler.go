package handlers

import (
	"context"
	"net/http"
	"time"

	"citegraph/pkg/common"

	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	store   Pinger
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /ready. It fails while the store is unreachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
