package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStoreEntryBuffersWithoutTouchingStore(t *testing.T) {
	l := &BufferedLedger{
		maxBuf:  5,
		flushCh: make(chan struct{}, 1),
	}

	for i := 0; i < 3; i++ {
		err := l.StoreEntry(context.Background(), Entry{SKU: "sku-1", OrderID: "o", Op: OpDecrement, Qty: 1})
		assert.NoError(t, err)
	}

	l.mu.Lock()
	assert.Len(t, l.buf, 3)
	l.mu.Unlock()

	select {
	case <-l.flushCh:
		t.Fatal("flush should not be signaled before the buffer fills")
	default:
	}
}

func TestStoreEntrySignalsFlushWhenBufferFills(t *testing.T) {
	l := &BufferedLedger{
		maxBuf:  2,
		flushCh: make(chan struct{}, 1),
	}

	assert.NoError(t, l.StoreEntry(context.Background(), Entry{SKU: "sku-1", Op: OpDecrement, Qty: 1}))
	assert.NoError(t, l.StoreEntry(context.Background(), Entry{SKU: "sku-1", Op: OpDecrement, Qty: 1}))

	select {
	case <-l.flushCh:
	case <-time.After(time.Second):
		t.Fatal("expected a flush signal once the buffer reached maxBuf")
	}
}

func TestStoreEntryStampsZeroTimestamp(t *testing.T) {
	l := &BufferedLedger{
		maxBuf:  10,
		flushCh: make(chan struct{}, 1),
	}

	before := time.Now()
	assert.NoError(t, l.StoreEntry(context.Background(), Entry{SKU: "sku-1", Op: OpDecrement, Qty: 1}))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.False(t, l.buf[0].At.Before(before.Add(-time.Second)))
	assert.False(t, l.buf[0].At.IsZero())
}
