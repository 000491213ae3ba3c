// Package admission implements the token-bucket admission controller (C4):
// the queue layer that sheds load before a request ever reaches the
// inventory engine. No server-side queue is materialized — a QUEUED
// response carries an opaque token and an estimated wait; "queue length" is
// an estimate, not a real structure (SPEC_FULL.md §4.4).
package admission

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	myLogger "github.com/pcristin/flashsale/internal/logger"
	"github.com/pcristin/flashsale/internal/store"
)

// Decision is the result of Acquire.
type Decision struct {
	Acquired    bool
	Token       string
	ETASeconds  float64
}

// BucketParams are the token-bucket parameters for one Acquire call.
// Capacity and rate are passed as script arguments on every call, so the
// stored bucket state does not fix them. The pipeline Orchestrator holds a
// single BucketParams value, set at construction, and uses it for every sku.
type BucketParams struct {
	Capacity float64
	Rate     float64 // tokens per second
}

// Controller is the admission controller bound to one shared-store client.
type Controller struct {
	store *store.Client
	now   func() time.Time
}

// New constructs a Controller.
func New(s *store.Client) *Controller {
	return &Controller{store: s, now: time.Now}
}

// Acquire attempts to take one token from the sku's bucket.
func (c *Controller) Acquire(ctx context.Context, sku string, params BucketParams) (Decision, error) {
	logger := myLogger.FromContext(ctx, "admission")

	nowMS := c.now().UnixMilli()

	keys := []interface{}{store.TokenBucketKey(sku), store.TokenBucketTSKey(sku)}
	reply, err := c.store.Eval(ctx, tokenBucketScript, keys, params.Capacity, params.Rate, nowMS)
	if err != nil {
		logger.Error("admission | token bucket script failed", "sku", sku, "error", err)
		return Decision{}, fmt.Errorf("admission: shared store unavailable: %w", err)
	}

	values, ok := reply.([]interface{})
	if !ok || len(values) != 2 {
		return Decision{}, fmt.Errorf("admission: unexpected script reply %#v", reply)
	}

	acquired, err := toInt64(values[0])
	if err != nil {
		return Decision{}, err
	}
	tokensFixed, err := toInt64(values[1])
	if err != nil {
		return Decision{}, err
	}
	tokensRemaining := float64(tokensFixed) / 1000.0

	if acquired == 1 {
		logger.Debug("admission | acquired token", "sku", sku)
		return Decision{Acquired: true}, nil
	}

	eta := 0.0
	if params.Rate > 0 {
		eta = (1 - tokensRemaining) / params.Rate
		if eta < 0 {
			eta = 0
		}
	}

	token, err := newQueueToken()
	if err != nil {
		return Decision{}, err
	}

	logger.Debug("admission | queued", "sku", sku, "eta_seconds", eta)
	return Decision{Acquired: false, Token: token, ETASeconds: eta}, nil
}

func newQueueToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("admission: failed to generate queue token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("admission: unexpected numeric reply type %T", v)
	}
}
