// Package handoff implements the order producer (C6): it builds an
// OrderHandoff from a successful inventory decrement and writes it to the
// durable partitioned log, partitioned by hash(user id) so everything for
// one user lands in one partition and is processed in order.
package handoff

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"
)

// schemaVersion lets C7 detect and reject an envelope it can't decode,
// instead of silently misparsing a future field layout.
const schemaVersion = 1

// OrderHandoff is the wire envelope written to the durable log. Field
// names are the JSON wire contract between C6 and C7 (SPEC_FULL.md §3).
type OrderHandoff struct {
	SchemaVersion int       `json:"schema_version"`
	OrderID       string    `json:"order_id"`
	ActivityID    string    `json:"activity_id"`
	SKU           string    `json:"sku"`
	UserID        string    `json:"user_id"`
	Quantity      int64     `json:"quantity"`
	DecrementedAt time.Time `json:"decremented_at"`
}

// NewOrderHandoff builds the envelope for a confirmed decrement.
func NewOrderHandoff(orderID, activityID, sku, userID string, quantity int64) OrderHandoff {
	return OrderHandoff{
		SchemaVersion: schemaVersion,
		OrderID:       orderID,
		ActivityID:    activityID,
		SKU:           sku,
		UserID:        userID,
		Quantity:      quantity,
		DecrementedAt: time.Now(),
	}
}

// Marshal serializes the handoff to its wire form.
func (h OrderHandoff) Marshal() ([]byte, error) {
	return json.Marshal(h)
}

// UnmarshalOrderHandoff parses a record value into an OrderHandoff,
// rejecting a schema version it doesn't understand.
func UnmarshalOrderHandoff(data []byte) (OrderHandoff, error) {
	var h OrderHandoff
	if err := json.Unmarshal(data, &h); err != nil {
		return OrderHandoff{}, fmt.Errorf("handoff: malformed envelope: %w", err)
	}
	if h.SchemaVersion != schemaVersion {
		return OrderHandoff{}, fmt.Errorf("handoff: unsupported schema version %d", h.SchemaVersion)
	}
	return h, nil
}

// PartitionFor hashes a user id into one of n partitions so that every
// order for a user lands on the same partition and is processed in order.
func PartitionFor(userID string, n int32) int32 {
	if n <= 0 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int32(h.Sum32() % uint32(n))
}
