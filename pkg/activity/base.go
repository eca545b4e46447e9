// Package activity provides common infrastructure for Temporal activity
// implementations: workflow-context extraction, safe logging that tolerates
// non-activity contexts, and best-effort event emission.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/ahrav/go-tribunal/pkg/events"
)

// WorkflowContext holds the execution metadata extracted from a Temporal
// activity context, with fallback values for test environments.
type WorkflowContext struct {
	WorkflowID string
	RunID      string
	ActivityID string
}

// BaseActivities provides the shared plumbing embedded by every activity
// struct: event emission and context helpers that work both inside Temporal
// and in plain test contexts.
type BaseActivities struct {
	eventSink events.EventSink
}

// NewBaseActivities creates base infrastructure around the given sink.
// A nil sink disables emission, which is convenient in tests.
func NewBaseActivities(sink events.EventSink) BaseActivities {
	return BaseActivities{eventSink: sink}
}

// GetWorkflowContext safely extracts workflow metadata from the activity
// context. Outside a Temporal activity (where activity.GetInfo panics) it
// generates stable test identifiers instead, so activities run unchanged
// under plain unit tests.
func (b *BaseActivities) GetWorkflowContext(ctx context.Context) WorkflowContext {
	var wfCtx WorkflowContext

	func() {
		defer func() {
			if r := recover(); r != nil {
				wfCtx.WorkflowID = "550e8400-e29b-41d4-a716-446655440000"
				wfCtx.RunID = "test-run-" + uuid.New().String()[:8]
				wfCtx.ActivityID = "test-activity"
			}
		}()

		info := activity.GetInfo(ctx)
		wfCtx.WorkflowID = info.WorkflowExecution.ID
		wfCtx.RunID = info.WorkflowExecution.RunID
		wfCtx.ActivityID = info.ActivityID
	}()

	return wfCtx
}

// EmitEventSafe emits an event with a short retry. Emission failures are
// logged and swallowed: events must never fail the activity that produced
// them.
func (b *BaseActivities) EmitEventSafe(ctx context.Context, envelope events.Envelope, description string) {
	if b.eventSink == nil {
		return
	}

	const maxAttempts = 2
	const retryDelay = 200 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				SafeLogError(ctx, fmt.Sprintf("Event emission cancelled: %s", description),
					"event_type", envelope.Type)
				return
			}
		}

		if err := b.eventSink.Append(ctx, envelope); err != nil {
			lastErr = err
			continue
		}

		SafeLog(ctx, fmt.Sprintf("Event emitted: %s", description),
			"event_type", envelope.Type,
			"idempotency_key", envelope.IdempotencyKey)
		return
	}

	SafeLogError(ctx, fmt.Sprintf("Failed to emit %s after %d attempts", description, maxAttempts),
		"event_type", envelope.Type,
		"error", lastErr)
}

// RecordHeartbeat safely records an activity heartbeat. Safe to call in
// non-activity contexts where it becomes a no-op.
func (b *BaseActivities) RecordHeartbeat(ctx context.Context, details ...any) {
	RecordHeartbeat(ctx, details...)
}

// SafeLog logs at INFO through the activity logger, ignoring the call when
// no activity context is present.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	defer func() {
		if recover() != nil {
			// Not an activity context, ignore
		}
	}()
	activity.GetLogger(ctx).Info(msg, keyvals...)
}

// SafeLogError logs at ERROR through the activity logger, ignoring the call
// when no activity context is present.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	defer func() {
		if recover() != nil {
			// Not an activity context, ignore
		}
	}()
	activity.GetLogger(ctx).Error(msg, keyvals...)
}

// RecordHeartbeat safely records activity heartbeat details, tolerating
// non-activity contexts.
func RecordHeartbeat(ctx context.Context, details ...any) {
	defer func() {
		if recover() != nil {
			// Not an activity context, ignore
		}
	}()
	activity.RecordHeartbeat(ctx, details...)
}
