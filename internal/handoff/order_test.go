package handoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderHandoffRoundTrip(t *testing.T) {
	h := NewOrderHandoff("order-1", "activity-1", "sku-1", "user-1", 3)

	data, err := h.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalOrderHandoff(data)
	require.NoError(t, err)

	assert.Equal(t, h.OrderID, decoded.OrderID)
	assert.Equal(t, h.ActivityID, decoded.ActivityID)
	assert.Equal(t, h.SKU, decoded.SKU)
	assert.Equal(t, h.UserID, decoded.UserID)
	assert.Equal(t, h.Quantity, decoded.Quantity)
}

func TestUnmarshalOrderHandoffRejectsUnknownSchema(t *testing.T) {
	_, err := UnmarshalOrderHandoff([]byte(`{"schema_version":99,"order_id":"x"}`))
	assert.Error(t, err)
}

func TestUnmarshalOrderHandoffRejectsGarbage(t *testing.T) {
	_, err := UnmarshalOrderHandoff([]byte(`not json`))
	assert.Error(t, err)
}

func TestPartitionForIsStableAndInRange(t *testing.T) {
	const partitions = int32(8)

	first := PartitionFor("user-42", partitions)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, PartitionFor("user-42", partitions))
	}
	assert.GreaterOrEqual(t, first, int32(0))
	assert.Less(t, first, partitions)
}

func TestPartitionForZeroPartitionsIsZero(t *testing.T) {
	assert.Equal(t, int32(0), PartitionFor("anyone", 0))
}

func TestPartitionForSpreadsDistinctUsers(t *testing.T) {
	const partitions = int32(8)
	seen := make(map[int32]bool)
	for i := 0; i < 200; i++ {
		p := PartitionFor(
			// enough distinct user ids to exercise the hash space
			"user-"+string(rune('a'+i%26))+"-"+string(rune('A'+i%26)),
			partitions,
		)
		seen[p] = true
	}
	assert.Greater(t, len(seen), 1, "expected PartitionFor to spread users across more than one partition")
}
