package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	myLogger "github.com/pcristin/flashsale/internal/logger"
)

// CreateActivity is the minimal activity CRUD surface needed to drive the
// pipeline end to end: POST /admin/activities. Full activity management is
// out of scope (SPEC_FULL.md §4.9).
func (h *Handler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := myLogger.FromContext(ctx, "admin_activities")

	var req CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.SKU == "" || req.TotalStock <= 0 {
		http.Error(w, "id, sku and a positive total_stock are required", http.StatusBadRequest)
		return
	}

	startsAt := time.Now()
	if req.StartsAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.StartsAt)
		if err != nil {
			http.Error(w, "starts_at must be RFC3339", http.StatusBadRequest)
			return
		}
		startsAt = parsed
	}

	if err := h.Activities.Create(ctx, req.ID, req.SKU, req.Name, req.TotalStock, startsAt); err != nil {
		logger.Error("admin_activities | failed to create activity", "activity_id", req.ID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": req.ID, "status": "SCHEDULED"})
}

// StartActivity transitions an activity to IN_PROGRESS:
// POST /admin/activities/{id}/start.
func (h *Handler) StartActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := myLogger.FromContext(ctx, "admin_activities")

	id := chi.URLParam(r, "id")
	if err := h.Activities.Start(ctx, id); err != nil {
		logger.Error("admin_activities | failed to start activity", "activity_id", id, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"id": id, "status": "IN_PROGRESS"})
}

// EndActivity transitions an activity to ENDED:
// POST /admin/activities/{id}/end.
func (h *Handler) EndActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := myLogger.FromContext(ctx, "admin_activities")

	id := chi.URLParam(r, "id")
	if err := h.Activities.End(ctx, id); err != nil {
		logger.Error("admin_activities | failed to end activity", "activity_id", id, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"id": id, "status": "ENDED"})
}
