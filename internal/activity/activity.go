// Package activity implements just enough activity lifecycle to drive the
// pipeline end to end: Get (cached, like the teacher's saleCache sync.Map),
// and Start/End transitions that mirror remaining stock into the shared
// atomic store exactly as the teacher's executeNewSale/
// UpdateActiveSalePointer/CreateNewSaleKeys sequence does, generalized from
// a single global "current sale" to one activity per sku with potentially
// many concurrently scheduled activities. Full activity CRUD is out of
// scope (SPEC_FULL.md §4.9); this is the minimum the pipeline consumes.
package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pcristin/flashsale/internal/database"
	"github.com/pcristin/flashsale/internal/inventory"
	myLogger "github.com/pcristin/flashsale/internal/logger"
)

// Activity is the cached view of an activity row consumed by the pipeline:
// window (StartsAt/EndsAt) + sku mapping + per-user limit.
type Activity struct {
	ID         string
	SKU        string
	Name       string
	TotalStock int64
	Status     string
	StartsAt   time.Time
	EndsAt     time.Time
	UserLimit  int64
}

// InWindow reports whether now falls within the activity's active window.
func (a Activity) InWindow(now time.Time) bool {
	if a.Status != "IN_PROGRESS" {
		return false
	}
	if now.Before(a.StartsAt) {
		return false
	}
	if !a.EndsAt.IsZero() && now.After(a.EndsAt) {
		return false
	}
	return true
}

// Store is the relational dependency Manager needs.
type Store interface {
	InsertActivity(a database.Activity) error
	GetActivity(id string) (*database.Activity, error)
	StartActivity(id string) error
	EndActivity(id string) error
}

// Manager caches Activity rows in-process, like the teacher's saleCache,
// and drives C1 warmup/teardown through the inventory engine.
type Manager struct {
	store     Store
	inventory *inventory.Engine
	userLimit int64

	mu    sync.RWMutex
	cache map[string]Activity
}

// New constructs a Manager. userLimit is the default per-user purchase cap
// applied to every activity (a single global knob, per SPEC_FULL.md §6's
// configuration surface).
func New(store Store, inv *inventory.Engine, userLimit int64) *Manager {
	return &Manager{
		store:     store,
		inventory: inv,
		userLimit: userLimit,
		cache:     make(map[string]Activity),
	}
}

// Create schedules a new activity (SCHEDULED state, no stock warmed up yet).
func (m *Manager) Create(ctx context.Context, id, sku, name string, totalStock int64, startsAt time.Time) error {
	logger := myLogger.FromContext(ctx, "activity")

	row := database.Activity{
		ID:         id,
		SKU:        sku,
		Name:       name,
		TotalStock: totalStock,
		Status:     "SCHEDULED",
		StartsAt:   startsAt,
	}
	if err := m.store.InsertActivity(row); err != nil {
		return fmt.Errorf("activity: failed to insert activity %s: %w", id, err)
	}

	logger.Info("activity | scheduled", "activity_id", id, "sku", sku, "stock", totalStock)
	return nil
}

// Start transitions an activity to IN_PROGRESS and warms up its sku's
// counters in the shared atomic store, mirroring the teacher's
// executeNewSale -> UpdateActiveSalePointer -> CreateNewSaleKeys sequence.
func (m *Manager) Start(ctx context.Context, id string) error {
	logger := myLogger.FromContext(ctx, "activity")

	row, err := m.store.GetActivity(id)
	if err != nil {
		return fmt.Errorf("activity: failed to load activity %s: %w", id, err)
	}
	if row == nil {
		return fmt.Errorf("activity: %s not found", id)
	}

	if err := m.store.StartActivity(id); err != nil {
		return fmt.Errorf("activity: failed to start %s: %w", id, err)
	}

	if err := m.inventory.Warmup(ctx, row.SKU, row.TotalStock); err != nil {
		logger.Error("activity | warmup failed after start transition", "activity_id", id, "error", err)
		return fmt.Errorf("activity: warmup failed for %s: %w", id, err)
	}

	a := Activity{
		ID:         row.ID,
		SKU:        row.SKU,
		Name:       row.Name,
		TotalStock: row.TotalStock,
		Status:     "IN_PROGRESS",
		StartsAt:   row.StartsAt,
		UserLimit:  m.userLimit,
	}

	m.mu.Lock()
	m.cache[id] = a
	m.mu.Unlock()

	logger.Info("activity | started", "activity_id", id, "sku", row.SKU, "stock", row.TotalStock)
	return nil
}

// End transitions an activity to ENDED and evicts it from the cache.
func (m *Manager) End(ctx context.Context, id string) error {
	logger := myLogger.FromContext(ctx, "activity")

	if err := m.store.EndActivity(id); err != nil {
		return fmt.Errorf("activity: failed to end %s: %w", id, err)
	}

	m.mu.Lock()
	delete(m.cache, id)
	m.mu.Unlock()

	logger.Info("activity | ended", "activity_id", id)
	return nil
}

// Get returns the cached Activity, falling back to the relational store
// (and repopulating the cache) on a miss.
func (m *Manager) Get(ctx context.Context, id string) (Activity, error) {
	m.mu.RLock()
	a, ok := m.cache[id]
	m.mu.RUnlock()
	if ok {
		return a, nil
	}

	row, err := m.store.GetActivity(id)
	if err != nil {
		return Activity{}, fmt.Errorf("activity: failed to load activity %s: %w", id, err)
	}
	if row == nil {
		return Activity{}, fmt.Errorf("activity: %s not found", id)
	}

	a = Activity{
		ID:         row.ID,
		SKU:        row.SKU,
		Name:       row.Name,
		TotalStock: row.TotalStock,
		Status:     row.Status,
		StartsAt:   row.StartsAt,
		UserLimit:  m.userLimit,
	}
	if row.EndsAt.Valid {
		a.EndsAt = row.EndsAt.Time
	}

	if a.Status == "IN_PROGRESS" {
		m.mu.Lock()
		m.cache[id] = a
		m.mu.Unlock()
	}

	return a, nil
}
