package database

import (
	"database/sql"
	"time"
)

// PostgresClient is a wrapper around the relational store client.
type PostgresClient struct {
	// Connection pool to handle multiple connections
	db *sql.DB
}

// Activity is a scheduled or running flash-sale activity: one row per sku,
// generalized from the teacher's single-global "sales" table to the
// multiple-concurrent-activities model in SPEC_FULL.md §3.
type Activity struct {
	ID         string
	SKU        string
	Name       string
	TotalStock int64
	Status     string // SCHEDULED | IN_PROGRESS | ENDED
	StartsAt   time.Time
	EndsAt     sql.NullTime
	CreatedAt  time.Time
}

// Order is a handed-off purchase, durably recorded once C7 flushes it from
// the durable log into the relational store.
type Order struct {
	ID         string
	ActivityID string
	SKU        string
	UserID     string
	Quantity   int64
	Status     string // PENDING_PAYMENT | PAID | CANCELLED | TIMEOUT
	CreatedAt  time.Time
}

// DeadLetter is a handoff that exhausted its retry budget in C7.
type DeadLetter struct {
	ID        int
	OrderID   string
	Reason    string
	Payload   []byte
	CreatedAt time.Time
}
