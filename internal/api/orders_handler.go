package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	myLogger "github.com/pcristin/flashsale/internal/logger"
)

// OrderStatus is the order-status query endpoint: GET /orders/{id}.
func (h *Handler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := myLogger.FromContext(ctx, "orders_handler")

	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "order id is required", http.StatusBadRequest)
		return
	}

	order, err := h.Postgres.GetOrder(id)
	if err != nil {
		logger.Error("orders | failed to look up order", "order_id", id, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if order == nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}

	resp := OrderStatusResponse{
		OrderID:    order.ID,
		ActivityID: order.ActivityID,
		SKU:        order.SKU,
		UserID:     order.UserID,
		Quantity:   order.Quantity,
		Status:     order.Status,
		CreatedAt:  order.CreatedAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ConfirmOrder is the payment-confirmation callback: POST
// /orders/{id}/confirm. Represents the external payment subsystem settling
// the charge and transitions the order PENDING_PAYMENT -> PAID.
func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := myLogger.FromContext(ctx, "orders_handler")

	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "order id is required", http.StatusBadRequest)
		return
	}

	if err := h.Postgres.ConfirmOrder(id); err != nil {
		logger.Error("orders | failed to confirm order", "order_id", id, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CancelOrder is the user-initiated cancellation endpoint: POST
// /orders/{id}/cancel. Transitions PENDING_PAYMENT -> CANCELLED and, on
// winning the CAS race, reverses the inventory hold the same way the
// timeout reaper does for an expired order.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := myLogger.FromContext(ctx, "orders_handler")

	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "order id is required", http.StatusBadRequest)
		return
	}

	order, err := h.Postgres.GetOrder(id)
	if err != nil {
		logger.Error("orders | failed to look up order", "order_id", id, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if order == nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}

	won, err := h.Postgres.CancelOrder(id)
	if err != nil {
		logger.Error("orders | failed to CAS order to cancelled", "order_id", id, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !won {
		http.Error(w, "order is not pending payment", http.StatusConflict)
		return
	}

	if _, err := h.Inventory.Rollback(ctx, order.SKU, order.UserID, order.ID, order.Quantity); err != nil {
		logger.Error("orders | inventory rollback failed after cancellation", "order_id", id, "error", err)
		http.Error(w, "cancellation recorded but rollback failed; will reconcile", http.StatusAccepted)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
