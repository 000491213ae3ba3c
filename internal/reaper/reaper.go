// Package reaper implements the timeout reaper (C8): a ticker-driven scan
// that transitions stale PENDING_PAYMENT orders to TIMEOUT and reverses
// their inventory hold.
//
// Grounded on the teacher's ProcessExpiredCheckouts/CleanupExpiredCheckouts
// (10-second ticker, batched expired-attempt scan + bulk status update),
// generalized from a Redis-TTL-presence check to the relational CAS update
// SPEC_FULL.md §4.8 specifies.
package reaper

import (
	"context"
	"sync"
	"time"

	"github.com/pcristin/flashsale/internal/database"
	"github.com/pcristin/flashsale/internal/inventory"
	myLogger "github.com/pcristin/flashsale/internal/logger"
)

const scanBatchLimit = 100

// OrderStore is the subset of *database.PostgresClient the reaper needs.
type OrderStore interface {
	GetExpiredPendingOrders(payWindow time.Duration, limit int) ([]database.Order, error)
	MarkOrderTimeout(id string) (bool, error)
}

// Reaper scans for and reverses timed-out orders on a fixed period.
type Reaper struct {
	store     OrderStore
	inventory *inventory.Engine
	payWindow time.Duration
	scanEvery time.Duration

	retryMu    sync.Mutex
	retryQueue []database.Order
}

// New constructs a Reaper. scanEvery defaults to 1 minute when zero.
func New(store OrderStore, inv *inventory.Engine, payWindow, scanEvery time.Duration) *Reaper {
	if scanEvery <= 0 {
		scanEvery = time.Minute
	}
	return &Reaper{store: store, inventory: inv, payWindow: payWindow, scanEvery: scanEvery}
}

// Run loops until ctx is canceled, scanning for expired orders every
// scanEvery and retrying any rollback that failed on a prior pass.
func (r *Reaper) Run(ctx context.Context) {
	logger := myLogger.FromContext(ctx, "reaper")

	ticker := time.NewTicker(r.scanEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("reaper | stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	logger := myLogger.FromContext(ctx, "reaper")

	r.retryPending(ctx)

	orders, err := r.store.GetExpiredPendingOrders(r.payWindow, scanBatchLimit)
	if err != nil {
		logger.Error("reaper | failed to list expired orders", "error", err)
		return
	}
	if len(orders) == 0 {
		return
	}

	for _, order := range orders {
		r.reap(ctx, order)
	}

	logger.Info("reaper | swept expired orders", "count", len(orders))
}

func (r *Reaper) reap(ctx context.Context, order database.Order) {
	logger := myLogger.FromContext(ctx, "reaper")

	won, err := r.store.MarkOrderTimeout(order.ID)
	if err != nil {
		logger.Error("reaper | failed to CAS order to timeout", "order_id", order.ID, "error", err)
		return
	}
	if !won {
		// Another reaper instance (or a concurrent confirmation) already
		// transitioned this order; nothing left to reverse.
		return
	}

	if _, err := r.inventory.Rollback(ctx, order.SKU, order.UserID, order.ID, order.Quantity); err != nil {
		logger.Warn("reaper | rollback failed, queued for retry", "order_id", order.ID, "error", err)
		r.retryMu.Lock()
		r.retryQueue = append(r.retryQueue, order)
		r.retryMu.Unlock()
		return
	}

	logger.Info("reaper | reversed timed-out order", "order_id", order.ID, "sku", order.SKU, "qty", order.Quantity)
}

func (r *Reaper) retryPending(ctx context.Context) {
	logger := myLogger.FromContext(ctx, "reaper")

	r.retryMu.Lock()
	queue := r.retryQueue
	r.retryQueue = nil
	r.retryMu.Unlock()

	for _, order := range queue {
		if _, err := r.inventory.Rollback(ctx, order.SKU, order.UserID, order.ID, order.Quantity); err != nil {
			logger.Warn("reaper | retry rollback failed again, re-queued", "order_id", order.ID, "error", err)
			r.retryMu.Lock()
			r.retryQueue = append(r.retryQueue, order)
			r.retryMu.Unlock()
			continue
		}
		logger.Info("reaper | retry rollback succeeded", "order_id", order.ID)
	}
}
