package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "OK", StatusOK.String())
	assert.Equal(t, "SOLD_OUT", StatusSoldOut.String())
	assert.Equal(t, "INVALID", StatusInvalid.String())
	assert.Equal(t, "LIMIT_EXCEEDED", StatusLimitExceeded.String())
	assert.Equal(t, "UNKNOWN", Status(99).String())
}

func TestToInt64AcceptsIntAndInt64Replies(t *testing.T) {
	v, err := toInt64(int64(42))
	assert.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = toInt64(7)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

func TestToInt64RejectsUnknownReplyType(t *testing.T) {
	_, err := toInt64("not-a-number")
	assert.Error(t, err)
}

func TestNewOrderIDIsMonotonicAndUnique(t *testing.T) {
	e := New(nil, nil)

	ids := make(map[string]bool)
	var prev string
	for i := 0; i < 50; i++ {
		id := e.newOrderID()
		assert.False(t, ids[id], "order id %s must be unique", id)
		ids[id] = true
		if prev != "" {
			assert.Greater(t, id, prev, "order ids should sort lexically by generation order")
		}
		prev = id
	}
}

func TestDecrementRejectsNonPositiveQuantityWithoutTouchingStore(t *testing.T) {
	e := New(nil, nil)

	ctx := context.Background()

	result, err := e.Decrement(ctx, "sku-1", "user-1", 0, 10)
	assert.NoError(t, err)
	assert.Equal(t, StatusInvalid, result.Status)

	result, err = e.Decrement(ctx, "sku-1", "user-1", -5, 10)
	assert.NoError(t, err)
	assert.Equal(t, StatusInvalid, result.Status)
}

func TestRollbackRejectsNonPositiveQuantityWithoutTouchingStore(t *testing.T) {
	e := New(nil, nil)

	result, err := e.Rollback(context.Background(), "sku-1", "user-1", "order-1", 0)
	assert.NoError(t, err)
	assert.Equal(t, StatusInvalid, result.Status)
}
