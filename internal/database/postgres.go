package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// NewPostgresClient creates a new Postgres client
func NewPostgresClient(ctx context.Context, url string) (*PostgresClient, error) {
	// Open a connection to the Postgres database
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}

	// Configure the connection pool
	db.SetMaxIdleConns(25)                 // Max idle connections
	db.SetMaxOpenConns(100)                // Max open connections
	db.SetConnMaxLifetime(5 * time.Minute) // Max connection lifetime

	// Immediately test the connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresClient{db: db}, nil
}

// Close closes the Postgres client
func (c *PostgresClient) Close() error {
	return c.db.Close()
}

// HealthCheck checks if the Postgres client is healthy
func (c *PostgresClient) HealthCheck() error {
	return c.db.Ping()
}

// DB exposes the underlying connection pool for callers (the audit ledger)
// that need to run their own transactions outside the PostgresClient's
// query surface.
func (c *PostgresClient) DB() *sql.DB {
	return c.db
}

// CreateTables creates the relational schema: activities, orders, stock_log,
// and a dead-letter table for exhausted handoff retries. Generalized from
// the teacher's sales/checkout_attempts/purchases schema to the C9 pipeline
// model (SPEC_FULL.md §6).
func (c *PostgresClient) CreateTables() error {
	schema := `
    CREATE TABLE IF NOT EXISTS activities (
        id VARCHAR(32) PRIMARY KEY,
        sku VARCHAR(64) NOT NULL,
        name VARCHAR(255) NOT NULL,
        total_stock BIGINT NOT NULL,
        status VARCHAR(20) NOT NULL DEFAULT 'SCHEDULED',
        starts_at TIMESTAMP NOT NULL,
        ends_at TIMESTAMP,
        created_at TIMESTAMP DEFAULT NOW()
    );

    CREATE UNIQUE INDEX IF NOT EXISTS idx_activities_sku_active
        ON activities(sku) WHERE status = 'IN_PROGRESS';

    CREATE TABLE IF NOT EXISTS orders (
        id VARCHAR(32) PRIMARY KEY,
        activity_id VARCHAR(32) REFERENCES activities(id),
        sku VARCHAR(64) NOT NULL,
        user_id VARCHAR(64) NOT NULL,
        quantity BIGINT NOT NULL,
        status VARCHAR(20) NOT NULL DEFAULT 'PENDING_PAYMENT',
        created_at TIMESTAMP DEFAULT NOW()
    );

    CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
    CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at);

    CREATE TABLE IF NOT EXISTS stock_log (
        id SERIAL PRIMARY KEY,
        sku_id VARCHAR(64) NOT NULL,
        order_id VARCHAR(32) NOT NULL,
        op VARCHAR(20) NOT NULL,
        qty BIGINT NOT NULL,
        before_qty BIGINT NOT NULL,
        after_qty BIGINT NOT NULL,
        at TIMESTAMP NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_stock_log_sku ON stock_log(sku_id);
    CREATE INDEX IF NOT EXISTS idx_stock_log_order ON stock_log(order_id);

    CREATE TABLE IF NOT EXISTS dead_letters (
        id SERIAL PRIMARY KEY,
        order_id VARCHAR(32) NOT NULL,
        reason VARCHAR(255) NOT NULL,
        payload BYTEA,
        created_at TIMESTAMP DEFAULT NOW()
    );
    `

	_, err := c.db.Exec(schema)
	return err
}

// InsertActivity creates a new scheduled activity.
func (c *PostgresClient) InsertActivity(a Activity) error {
	_, err := c.db.Exec(`
		INSERT INTO activities (id, sku, name, total_stock, status, starts_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.SKU, a.Name, a.TotalStock, a.Status, a.StartsAt)
	return err
}

// GetActivity fetches an activity by id.
func (c *PostgresClient) GetActivity(id string) (*Activity, error) {
	var a Activity
	err := c.db.QueryRow(`
		SELECT id, sku, name, total_stock, status, starts_at, ends_at, created_at
		FROM activities WHERE id = $1`, id).Scan(
		&a.ID, &a.SKU, &a.Name, &a.TotalStock, &a.Status, &a.StartsAt, &a.EndsAt, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// StartActivity transitions an activity to IN_PROGRESS. The partial unique
// index on (sku) WHERE status='IN_PROGRESS' rejects a second concurrent
// activity for the same sku.
func (c *PostgresClient) StartActivity(id string) error {
	res, err := c.db.Exec(`UPDATE activities SET status = 'IN_PROGRESS' WHERE id = $1 AND status = 'SCHEDULED'`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("activity %s is not in SCHEDULED state", id)
	}
	return nil
}

// EndActivity transitions an activity to ENDED.
func (c *PostgresClient) EndActivity(id string) error {
	_, err := c.db.Exec(`UPDATE activities SET status = 'ENDED', ends_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}

// BatchInsertOrders idempotently inserts a batch of handed-off orders in a
// single transaction, one row per order id, skipping duplicates
// (Postgres's ON CONFLICT DO NOTHING idiom for the teacher's MySQL-style
// ON DUPLICATE KEY UPDATE) so an at-least-once redelivery from C2 never
// double-inserts.
func (c *PostgresClient) BatchInsertOrders(orders []Order) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO orders (id, activity_id, sku, user_id, quantity, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, order := range orders {
		if _, err := stmt.Exec(order.ID, order.ActivityID, order.SKU, order.UserID, order.Quantity, order.Status, order.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertOrder inserts a single order (fallback scenario when batch insert
// fails and the consumer retries row-by-row).
func (c *PostgresClient) InsertOrder(order Order) error {
	_, err := c.db.Exec(`
		INSERT INTO orders (id, activity_id, sku, user_id, quantity, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		order.ID, order.ActivityID, order.SKU, order.UserID, order.Quantity, order.Status, order.CreatedAt)
	return err
}

// GetOrder fetches an order by id for the order-status query endpoint.
func (c *PostgresClient) GetOrder(id string) (*Order, error) {
	var o Order
	err := c.db.QueryRow(`
		SELECT id, activity_id, sku, user_id, quantity, status, created_at
		FROM orders WHERE id = $1`, id).Scan(
		&o.ID, &o.ActivityID, &o.SKU, &o.UserID, &o.Quantity, &o.Status, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ConfirmOrder performs the CAS transition PENDING_PAYMENT -> PAID, called
// from the payment-confirmation endpoint once the external payment
// subsystem settles the charge. Races the reaper's CAS update to TIMEOUT;
// whichever update runs first wins, and the loser affects zero rows.
func (c *PostgresClient) ConfirmOrder(id string) error {
	_, err := c.db.Exec(`UPDATE orders SET status = 'PAID' WHERE id = $1 AND status = 'PENDING_PAYMENT'`, id)
	return err
}

// CancelOrder performs the CAS transition PENDING_PAYMENT -> CANCELLED on
// explicit user action. Reports whether this call won the race (one row
// affected): only the winner should trigger the compensating inventory
// rollback.
func (c *PostgresClient) CancelOrder(id string) (bool, error) {
	res, err := c.db.Exec(`UPDATE orders SET status = 'CANCELLED' WHERE id = $1 AND status = 'PENDING_PAYMENT'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetExpiredPendingOrders returns PENDING_PAYMENT orders older than the pay
// window, for the timeout reaper (C8).
func (c *PostgresClient) GetExpiredPendingOrders(payWindow time.Duration, limit int) ([]Order, error) {
	cutoff := time.Now().Add(-payWindow)

	rows, err := c.db.Query(`
		SELECT id, activity_id, sku, user_id, quantity, status, created_at
		FROM orders
		WHERE status = 'PENDING_PAYMENT' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.ActivityID, &o.SKU, &o.UserID, &o.Quantity, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// MarkOrderTimeout performs the CAS transition PENDING_PAYMENT -> TIMEOUT.
// Reports whether this call won the race (one row affected): only the
// winner should trigger the compensating inventory rollback.
func (c *PostgresClient) MarkOrderTimeout(id string) (bool, error) {
	res, err := c.db.Exec(`UPDATE orders SET status = 'TIMEOUT' WHERE id = $1 AND status = 'PENDING_PAYMENT'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InsertDeadLetter records a handoff that exhausted MAX_RETRY in C7.
func (c *PostgresClient) InsertDeadLetter(orderID, reason string, payload []byte) error {
	_, err := c.db.Exec(`
		INSERT INTO dead_letters (order_id, reason, payload, created_at)
		VALUES ($1, $2, $3, $4)`,
		orderID, reason, payload, time.Now())
	return err
}

// SumOrdersBySKU is a reconciliation helper: counts paid and in-flight
// quantity per sku, useful alongside audit.Ledger.SumForSKU for property P2.
func (c *PostgresClient) SumOrdersBySKU(sku string) (paid, pending int64, err error) {
	err = c.db.QueryRow(`
		SELECT
			COALESCE(SUM(quantity) FILTER (WHERE status = 'PAID'), 0),
			COALESCE(SUM(quantity) FILTER (WHERE status = 'PENDING_PAYMENT'), 0)
		FROM orders WHERE sku = $1`, sku).Scan(&paid, &pending)
	return paid, pending, err
}
