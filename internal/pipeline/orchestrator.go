package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/pcristin/flashsale/internal/activity"
	"github.com/pcristin/flashsale/internal/admission"
	"github.com/pcristin/flashsale/internal/handoff"
	"github.com/pcristin/flashsale/internal/inventory"
	myLogger "github.com/pcristin/flashsale/internal/logger"
	"github.com/pcristin/flashsale/internal/risk"
)

// Orchestrator runs a Request through the full state machine described in
// SPEC_FULL.md §4.9:
//
//	RECEIVED --assess--> BLOCKED | CHALLENGED | ADMITTED_CANDIDATE
//	ADMITTED_CANDIDATE --acquire--> QUEUED | ADMITTED
//	ADMITTED --window/limit check--> OUT_OF_WINDOW | LIMIT_EXCEEDED | PROCEED
//	PROCEED --decrement--> SOLD_OUT | SYSTEM_BUSY | RESERVED
//	RESERVED --handoff--> SYSTEM_BUSY(rollback) | CONFIRMED
type Orchestrator struct {
	risk       *risk.Service
	admission  *admission.Controller
	activities *activity.Manager
	inventory  *inventory.Engine
	producer   *handoff.Producer

	bucket admission.BucketParams
}

// New constructs an Orchestrator.
func New(riskSvc *risk.Service, admissionCtl *admission.Controller, activities *activity.Manager, inv *inventory.Engine, producer *handoff.Producer, bucket admission.BucketParams) *Orchestrator {
	return &Orchestrator{
		risk:       riskSvc,
		admission:  admissionCtl,
		activities: activities,
		inventory:  inv,
		producer:   producer,
		bucket:     bucket,
	}
}

// Process runs one request end to end. Every shared-store failure
// short-circuits to SYSTEM_BUSY; every log-write failure after a
// successful decrement triggers a compensating rollback; no path returns
// CONFIRMED without an acked handoff.
func (o *Orchestrator) Process(ctx context.Context, req Request) Result {
	logger := myLogger.FromContext(ctx, "pipeline")

	assessment := o.risk.Assess(ctx, risk.Request{
		UserID:       req.UserID,
		DeviceID:     req.DeviceID,
		SourceIP:     req.SourceIP,
		ActivityID:   req.ActivityID,
		Quantity:     req.Quantity,
		CaptchaToken: req.CaptchaToken,
		Channel:      req.Channel,
	})

	switch assessment.Action {
	case risk.ActionBlock:
		return Result{Kind: KindBlocked, Reason: assessment.Reason}
	case risk.ActionCaptcha:
		return Result{Kind: KindChallenged, Reason: assessment.Reason}
	}

	act, err := o.activities.Get(ctx, req.ActivityID)
	if err != nil {
		logger.Error("pipeline | failed to load activity", "activity_id", req.ActivityID, "error", err)
		return Result{Kind: KindSystemBusy, Reason: "activity_lookup_failed"}
	}

	decision, err := o.admission.Acquire(ctx, act.SKU, o.bucket)
	if err != nil {
		logger.Error("pipeline | admission controller unavailable", "sku", act.SKU, "error", err)
		return Result{Kind: KindSystemBusy, Reason: "admission_unavailable"}
	}
	if !decision.Acquired {
		return Result{Kind: KindQueued, QueueToken: decision.Token, ETASeconds: decision.ETASeconds}
	}

	if !act.InWindow(time.Now()) {
		return Result{Kind: KindOutOfWindow}
	}

	decRes, err := o.inventory.Decrement(ctx, act.SKU, req.UserID, req.Quantity, act.UserLimit)
	if err != nil {
		if errors.Is(err, inventory.ErrStoreUnavailable) {
			logger.Error("pipeline | inventory engine unavailable", "sku", act.SKU, "error", err)
		}
		return Result{Kind: KindSystemBusy, Reason: "inventory_unavailable"}
	}

	switch decRes.Status {
	case inventory.StatusSoldOut:
		return Result{Kind: KindSoldOut}
	case inventory.StatusLimitExceeded:
		return Result{Kind: KindLimitExceeded}
	case inventory.StatusInvalid:
		return Result{Kind: KindSystemBusy, Reason: "invalid_quantity"}
	}

	h := handoff.NewOrderHandoff(decRes.OrderID, act.ID, act.SKU, req.UserID, req.Quantity)
	if err := o.producer.Produce(ctx, h); err != nil {
		logger.Error("pipeline | handoff failed, rolling back decrement", "order_id", decRes.OrderID, "error", err)
		if _, rbErr := o.inventory.Rollback(ctx, act.SKU, req.UserID, decRes.OrderID, req.Quantity); rbErr != nil {
			logger.Error("pipeline | compensating rollback also failed; audit ledger and dead-letter must reconcile", "order_id", decRes.OrderID, "error", rbErr)
		}
		return Result{Kind: KindSystemBusy, Reason: "handoff_failed"}
	}

	return Result{Kind: KindConfirmed, OrderID: decRes.OrderID, Remaining: decRes.Remaining}
}
