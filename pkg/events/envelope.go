// Package events provides the generic envelope and sink used for domain
// event emission across harm-evaluation activities.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Envelope wraps a domain event with the metadata consumers need for
// routing, deduplication, and correlation. The payload schema varies by
// Type and Version.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event for routing and processing.
	// Examples: "scoring.rater_scored", "aggregation.verdict_reached".
	Type string `json:"type"`

	// Source identifies the component that emitted this event.
	Source string `json:"source"`

	// Version enables schema evolution, semantic-versioned from "1.0.0".
	Version string `json:"version"`

	// Timestamp records when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey ensures exactly-once processing across activity retries.
	// Generated deterministically from workflow context and event content.
	IdempotencyKey string `json:"idempotency_key"`

	// WorkflowID and RunID correlate the event with the Temporal execution
	// that produced it.
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`

	// Payload contains the event data as JSON.
	Payload json.RawMessage `json:"payload"`
}

// EventSink receives emitted events. Implementations may write to an outbox
// table, a queue, or a log; they must treat duplicate idempotency keys as
// no-ops and return quickly.
type EventSink interface {
	// Append adds an event to the sink with best-effort delivery. Callers
	// must not fail their primary operation on sink errors; events matter
	// for observability, not correctness.
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards all events. Useful for tests and for deployments
// that have not wired a projection store.
type NoOpEventSink struct{}

// Append implements EventSink with no-op behavior.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error { return nil }

// NewNoOpEventSink creates a sink that discards everything it receives.
func NewNoOpEventSink() EventSink { return &NoOpEventSink{} }
