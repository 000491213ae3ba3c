package audit

import (
	"context"
	"database/sql"
	"sync"
	"time"

	myLogger "github.com/pcristin/flashsale/internal/logger"
)

// Ledger is the interface the inventory engine and reconciliation jobs
// depend on. StoreEntry must never block or fail the caller's critical
// path — buffering and degradation are the implementation's job.
type Ledger interface {
	StoreEntry(ctx context.Context, e Entry) error
	Flush(ctx context.Context) error
	SumForSKU(ctx context.Context, sku string) (decremented, rolledBack int64, err error)
	Close() error
}

// BufferedLedger buffers entries in memory and flushes them to Postgres on
// a size or time trigger, following the teacher's batch/ticker/mutex
// pattern (internal/api/purchase_handler.go ProcessPurchaseInserts) and the
// non-blocking-store contract of kubernaut's audit store.
type BufferedLedger struct {
	db *sql.DB

	mu     sync.Mutex
	buf    []Entry
	maxBuf int

	flushInterval time.Duration

	flushCh chan struct{}
	doneCh  chan struct{}
	closeMu sync.Once
}

// NewBufferedLedger creates a BufferedLedger and starts its background
// flush loop. The caller must have already created the stock_log table.
func NewBufferedLedger(ctx context.Context, db *sql.DB, maxBuf int, flushInterval time.Duration) *BufferedLedger {
	if maxBuf <= 0 {
		maxBuf = 200
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	l := &BufferedLedger{
		db:            db,
		maxBuf:        maxBuf,
		flushInterval: flushInterval,
		flushCh:       make(chan struct{}, 1),
		doneCh:        make(chan struct{}),
	}

	go l.run(ctx)
	return l
}

// StoreEntry appends an entry to the buffer. It never blocks on I/O: if the
// buffer crosses maxBuf it asks the background loop to flush, but the
// append itself is a mutex-guarded slice append.
func (l *BufferedLedger) StoreEntry(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	l.mu.Lock()
	l.buf = append(l.buf, e)
	full := len(l.buf) >= l.maxBuf
	l.mu.Unlock()

	if full {
		select {
		case l.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

func (l *BufferedLedger) run(ctx context.Context) {
	logger := myLogger.FromContext(ctx, "audit")
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()
	defer close(l.doneCh)

	for {
		select {
		case <-ctx.Done():
			if err := l.Flush(context.Background()); err != nil {
				logger.Error("audit | final flush failed", "error", err)
			}
			return
		case <-ticker.C:
			if err := l.Flush(ctx); err != nil {
				logger.Error("audit | periodic flush failed", "error", err)
			}
		case <-l.flushCh:
			if err := l.Flush(ctx); err != nil {
				logger.Error("audit | size-triggered flush failed", "error", err)
			}
		}
	}
}

// Flush writes all currently buffered entries in one transaction.
func (l *BufferedLedger) Flush(ctx context.Context) error {
	l.mu.Lock()
	if len(l.buf) == 0 {
		l.mu.Unlock()
		return nil
	}
	snapshot := l.buf
	l.buf = nil
	l.mu.Unlock()

	logger := myLogger.FromContext(ctx, "audit")

	tx, err := l.db.Begin()
	if err != nil {
		logger.Error("audit | failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO stock_log (sku_id, order_id, op, qty, before_qty, after_qty, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range snapshot {
		if _, err := stmt.Exec(e.SKU, e.OrderID, string(e.Op), e.Qty, e.Before, e.After, e.At); err != nil {
			logger.Error("audit | failed to insert entry", "error", err, "order_id", e.OrderID)
			return err
		}
	}

	return tx.Commit()
}

// SumForSKU reconciles the ledger against P2: total decremented quantity
// minus total rolled-back quantity should equal total_stock - remaining.
func (l *BufferedLedger) SumForSKU(ctx context.Context, sku string) (decremented, rolledBack int64, err error) {
	row := l.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN op = 'DECREMENT' THEN qty ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN op = 'ROLLBACK' THEN qty ELSE 0 END), 0)
		FROM stock_log WHERE sku_id = $1
	`, sku)
	if err := row.Scan(&decremented, &rolledBack); err != nil {
		return 0, 0, err
	}
	return decremented, rolledBack, nil
}

// Close flushes any remaining entries. It does not stop the background
// loop, which exits when the context passed to NewBufferedLedger is done.
func (l *BufferedLedger) Close() error {
	var err error
	l.closeMu.Do(func() {
		err = l.Flush(context.Background())
	})
	return err
}
