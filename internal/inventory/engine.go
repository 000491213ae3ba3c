// Package inventory implements the atomic inventory engine (C5): the
// oversell guard of the whole pipeline. Every mutation is a single Lua
// script executed against the shared atomic store; nothing here retries a
// decrement, because retrying a non-idempotent decrement without knowing
// the prior outcome could double-decrement (SPEC_FULL.md §4.5).
package inventory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/oklog/ulid/v2"

	"github.com/pcristin/flashsale/internal/audit"
	myLogger "github.com/pcristin/flashsale/internal/logger"
	"github.com/pcristin/flashsale/internal/store"
)

// Status is the outcome of a decrement or rollback attempt.
type Status int

const (
	StatusOK Status = iota
	StatusSoldOut
	StatusInvalid
	StatusLimitExceeded
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusSoldOut:
		return "SOLD_OUT"
	case StatusInvalid:
		return "INVALID"
	case StatusLimitExceeded:
		return "LIMIT_EXCEEDED"
	default:
		return "UNKNOWN"
	}
}

// ErrStoreUnavailable wraps transport failures against the shared store.
// The request pipeline always surfaces this as SYSTEM_BUSY (§4.5, §7) — the
// inventory engine never fails open.
var ErrStoreUnavailable = errors.New("inventory: shared store unavailable")

// DecrementResult is the outcome of Decrement.
type DecrementResult struct {
	Status    Status
	Remaining int64
	OrderID   string
}

// RollbackResult is the outcome of Rollback.
type RollbackResult struct {
	Status    Status
	Remaining int64
}

// ReadResult is the outcome of Read.
type ReadResult struct {
	Total     int64
	Sold      int64
	Remaining int64
}

// Engine is the atomic inventory engine bound to one shared-store client.
type Engine struct {
	store  *store.Client
	ledger audit.Ledger

	idMu    sync.Mutex
	idEntropy *ulid.MonotonicEntropy
}

// New constructs an Engine. ledger may be nil, in which case audit entries
// are silently dropped (used by tests that only care about counters).
func New(s *store.Client, ledger audit.Ledger) *Engine {
	return &Engine{
		store:     s,
		ledger:    ledger,
		idEntropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Warmup idempotently sets stock:sku_<id>=stock, sold:sku_<id>=0. Must be
// called once before an activity transitions to IN_PROGRESS.
func (e *Engine) Warmup(ctx context.Context, sku string, stock int64) error {
	logger := myLogger.FromContext(ctx, "inventory")

	keys := []interface{}{store.StockKey(sku), store.SoldKey(sku)}
	_, err := e.store.Eval(ctx, warmupScript, keys, stock)
	if err != nil {
		logger.Error("inventory | warmup failed", "sku", sku, "error", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	logger.Info("inventory | warmed up sku", "sku", sku, "stock", stock)
	return nil
}

// Decrement atomically checks and decrements a sku's stock for a purchase,
// folding the per-user purchase-limit check into the same script.
func (e *Engine) Decrement(ctx context.Context, sku, user string, quantity int64, userLimit int64) (DecrementResult, error) {
	logger := myLogger.FromContext(ctx, "inventory")

	if quantity <= 0 {
		return DecrementResult{Status: StatusInvalid}, nil
	}

	keys := []interface{}{
		store.StockKey(sku),
		store.SoldKey(sku),
		store.UserPurchaseCountKey(sku, user),
	}

	reply, err := e.store.Eval(ctx, decrementScript, keys, quantity, userLimit)
	if err != nil {
		logger.Error("inventory | decrement script failed", "sku", sku, "user", user, "error", err)
		return DecrementResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	result, err := toInt64(reply)
	if err != nil {
		return DecrementResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch {
	case result == -1:
		return DecrementResult{Status: StatusInvalid}, nil
	case result == -2:
		return DecrementResult{Status: StatusLimitExceeded}, nil
	case result == 0:
		return DecrementResult{Status: StatusSoldOut}, nil
	default:
		orderID := e.newOrderID()

		if e.ledger != nil {
			entry := audit.Entry{
				SKU:     sku,
				OrderID: orderID,
				Op:      audit.OpDecrement,
				Qty:     quantity,
				Before:  result + quantity,
				After:   result,
				At:      time.Now(),
			}
			if err := e.ledger.StoreEntry(ctx, entry); err != nil {
				logger.Warn("inventory | failed to store audit entry", "error", err)
			}
		}

		logger.Info("inventory | decrement succeeded", "sku", sku, "user", user, "qty", quantity, "remaining", result, "order_id", orderID)
		return DecrementResult{Status: StatusOK, Remaining: result, OrderID: orderID}, nil
	}
}

// Rollback reverses a prior decrement for order_id/quantity.
func (e *Engine) Rollback(ctx context.Context, sku, user, orderID string, quantity int64) (RollbackResult, error) {
	logger := myLogger.FromContext(ctx, "inventory")

	if quantity <= 0 {
		return RollbackResult{Status: StatusInvalid}, nil
	}

	keys := []interface{}{
		store.StockKey(sku),
		store.SoldKey(sku),
		store.UserPurchaseCountKey(sku, user),
	}

	reply, err := e.store.Eval(ctx, rollbackScript, keys, quantity)
	if err != nil {
		logger.Error("inventory | rollback script failed", "sku", sku, "order_id", orderID, "error", err)
		return RollbackResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	result, err := toInt64(reply)
	if err != nil {
		return RollbackResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if result == -1 {
		return RollbackResult{Status: StatusInvalid}, nil
	}

	if e.ledger != nil {
		entry := audit.Entry{
			SKU:     sku,
			OrderID: orderID,
			Op:      audit.OpRollback,
			Qty:     quantity,
			Before:  result - quantity,
			After:   result,
			At:      time.Now(),
		}
		if err := e.ledger.StoreEntry(ctx, entry); err != nil {
			logger.Warn("inventory | failed to store rollback audit entry", "error", err)
		}
	}

	logger.Info("inventory | rollback succeeded", "sku", sku, "order_id", orderID, "qty", quantity, "new_stock", result)
	return RollbackResult{Status: StatusOK, Remaining: result}, nil
}

// Read returns the current total/sold/remaining for a sku. Total is
// reconstructed as sold+remaining since the store only keeps the two live
// counters (the authoritative "total_stock" lives in the Activity row).
func (e *Engine) Read(ctx context.Context, sku string) (ReadResult, error) {
	logger := myLogger.FromContext(ctx, "inventory")

	remaining, err := e.store.Get(ctx, store.StockKey(sku))
	if err != nil && err != redis.ErrNil {
		logger.Error("inventory | read stock failed", "sku", sku, "error", err)
		return ReadResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	sold, err := e.store.Get(ctx, store.SoldKey(sku))
	if err != nil && err != redis.ErrNil {
		logger.Error("inventory | read sold failed", "sku", sku, "error", err)
		return ReadResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	r, _ := strconv.ParseInt(remaining, 10, 64)
	s, _ := strconv.ParseInt(sold, 10, 64)

	return ReadResult{Total: r + s, Sold: s, Remaining: r}, nil
}

// newOrderID generates a collision-resistant, time-ordered, monotonic
// order id (SPEC_FULL.md §4.5).
func (e *Engine) newOrderID() string {
	e.idMu.Lock()
	defer e.idMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), e.idEntropy)
	return id.String()
}

func toInt64(reply interface{}) (int64, error) {
	switch v := reply.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("inventory: unexpected script reply type %T", reply)
	}
}

