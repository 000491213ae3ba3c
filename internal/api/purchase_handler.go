package api

import (
	"encoding/json"
	"net/http"

	"github.com/pcristin/flashsale/internal/pipeline"
	myLogger "github.com/pcristin/flashsale/internal/logger"
)

// Purchase is the C9 entry point: POST /purchase.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := myLogger.FromContext(ctx, "purchase_handler")

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if req.UserID == "" || req.ActivityID == "" || req.Quantity < 0 {
		http.Error(w, "user_id, activity_id and a non-negative quantity are required", http.StatusBadRequest)
		return
	}

	logger.Debug("purchase | request received", "user_id", req.UserID, "activity_id", req.ActivityID, "quantity", req.Quantity)

	result := h.Pipeline.Process(ctx, pipeline.Request{
		UserID:       req.UserID,
		DeviceID:     req.DeviceID,
		SourceIP:     r.RemoteAddr,
		ActivityID:   req.ActivityID,
		Quantity:     req.Quantity,
		CaptchaToken: req.CaptchaToken,
		Channel:      req.Channel,
	})

	resp := PurchaseResponse{
		Status:     result.Kind.String(),
		OrderID:    result.OrderID,
		Remaining:  result.Remaining,
		QueueToken: result.QueueToken,
		ETASeconds: result.ETASeconds,
		Reason:     result.Reason,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForResult(result.Kind))
	json.NewEncoder(w).Encode(resp)
}
