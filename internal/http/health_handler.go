package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler GET /healthz
type HealthHandler struct {
	checks map[string]HealthCheck
	logger *zap.Logger
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{checks: map[string]HealthCheck{}, logger: logger}
}

func (h *HealthHandler) Add(name string, check HealthCheck) {
	h.checks[name] = check
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, Result[map[string]string]{
			Code: ResultError, Type: "error", Message: "degraded", Result: status,
		})
		return
	}
	writeJSON(w, http.StatusOK, Ok(status))
}
