// Package audit provides the append-only audit ledger (C10): every
// inventory decrement and rollback is recorded here so that, per spec
// invariant P2, the sum of ledger rows for a sku always reconciles with
// total_stock - remaining.
//
// The store is a non-blocking, buffered writer modeled on
// jordigilh/kubernaut's pkg/audit/store.go: StoreEntry never blocks the
// inventory hot path, Flush is for tests and graceful shutdown.
package audit

import "time"

// Op is the kind of inventory mutation an entry records.
type Op string

const (
	OpDecrement Op = "DECREMENT"
	OpRollback  Op = "ROLLBACK"
)

// Entry is a single append-only audit row (SPEC_FULL.md §3).
type Entry struct {
	SKU     string
	OrderID string
	Op      Op
	Qty     int64
	Before  int64
	After   int64
	At      time.Time
}
