package api

import (
	"github.com/pcristin/flashsale/internal/activity"
	"github.com/pcristin/flashsale/internal/config"
	"github.com/pcristin/flashsale/internal/database"
	"github.com/pcristin/flashsale/internal/inventory"
	"github.com/pcristin/flashsale/internal/pipeline"
	"github.com/pcristin/flashsale/internal/store"
)

// Handler is the main handler for the API
type Handler struct {
	Config *config.Config

	Store    *store.Client
	Postgres *database.PostgresClient

	Pipeline   *pipeline.Orchestrator
	Activities *activity.Manager
	Inventory  *inventory.Engine
}

// NewHandler creates a new Handler
func NewHandler(cfg *config.Config, s *store.Client, postgres *database.PostgresClient, orchestrator *pipeline.Orchestrator, activities *activity.Manager, inv *inventory.Engine) *Handler {
	return &Handler{
		Config:     cfg,
		Store:      s,
		Postgres:   postgres,
		Pipeline:   orchestrator,
		Activities: activities,
		Inventory:  inv,
	}
}

// PurchaseRequest is the request body for POST /purchase.
type PurchaseRequest struct {
	UserID       string `json:"user_id"`
	DeviceID     string `json:"device_id"`
	ActivityID   string `json:"activity_id"`
	Quantity     int64  `json:"quantity"`
	CaptchaToken string `json:"captcha_token,omitempty"`
	Channel      string `json:"channel,omitempty"`
}

// PurchaseResponse is the response for the purchase endpoint.
type PurchaseResponse struct {
	Status     string  `json:"status"`
	OrderID    string  `json:"order_id,omitempty"`
	Remaining  int64   `json:"remaining,omitempty"`
	QueueToken string  `json:"queue_token,omitempty"`
	ETASeconds float64 `json:"eta_seconds,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// OrderStatusResponse is the response for GET /orders/{id}.
type OrderStatusResponse struct {
	OrderID    string `json:"order_id"`
	ActivityID string `json:"activity_id"`
	SKU        string `json:"sku"`
	UserID     string `json:"user_id"`
	Quantity   int64  `json:"quantity"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

// CreateActivityRequest is the request body for POST /admin/activities.
type CreateActivityRequest struct {
	ID         string `json:"id"`
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	TotalStock int64  `json:"total_stock"`
	StartsAt   string `json:"starts_at"` // RFC3339
}

// HealthStatus represents the system health and statistics
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`

	Services map[string]string `json:"services"`
}
