package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Health returns the health status of the shared atomic store (C1) and the
// relational store, like the teacher's Health handler which reported
// redis/postgres. The durable log (C2) is not checked.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
	}

	health.Services["shared_store"] = h.checkStoreHealth(ctx)
	health.Services["relational_store"] = h.checkPostgresHealth()

	for _, status := range health.Services {
		if status != "healthy" {
			health.Status = "degraded"
			break
		}
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(health); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *Handler) checkStoreHealth(ctx context.Context) string {
	if err := h.Store.HealthCheck(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

func (h *Handler) checkPostgresHealth() string {
	if err := h.Postgres.HealthCheck(); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}
