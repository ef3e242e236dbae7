package handlers

import (
	"net/http"
	"time"
)

// HealthCheck reports the CRM authorization state and, when configured,
// Redis connectivity. Only an unreachable Redis makes the service unhealthy.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	}
	code := http.StatusOK

	if h.auth != nil {
		status["auth_status"] = h.auth.State().String()
	}

	if h.redis != nil {
		if err := h.redis.Health(); err != nil {
			status["status"] = "unhealthy"
			status["redis_status"] = "unhealthy"
			status["redis_error"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status["redis_status"] = "healthy"
		}
	} else {
		status["redis_status"] = "not_configured"
	}

	writeJSON(w, code, status)
}
