package activity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tribunal/pkg/events"
)

type recordingSink struct {
	envelopes []events.Envelope
	failures  int
}

func (s *recordingSink) Append(_ context.Context, envelope events.Envelope) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.envelopes = append(s.envelopes, envelope)
	return nil
}

func TestGetWorkflowContextOutsideActivity(t *testing.T) {
	base := NewBaseActivities(nil)

	wfCtx := base.GetWorkflowContext(context.Background())
	assert.NotEmpty(t, wfCtx.WorkflowID)
	assert.NotEmpty(t, wfCtx.RunID)
	assert.Equal(t, "test-activity", wfCtx.ActivityID)
}

func TestEmitEventSafeNilSink(t *testing.T) {
	base := NewBaseActivities(nil)

	// Must be a no-op, not a panic.
	base.EmitEventSafe(context.Background(), events.Envelope{Type: "t"}, "test event")
}

func TestEmitEventSafeRetriesOnce(t *testing.T) {
	sink := &recordingSink{failures: 1}
	base := NewBaseActivities(sink)

	base.EmitEventSafe(context.Background(), events.Envelope{
		Type:           "scoring.rater_scored",
		IdempotencyKey: "wf:evt:1",
	}, "test event")

	require.Len(t, sink.envelopes, 1)
	assert.Equal(t, "wf:evt:1", sink.envelopes[0].IdempotencyKey)
}

func TestEmitEventSafeGivesUpAfterRetries(t *testing.T) {
	sink := &recordingSink{failures: 2}
	base := NewBaseActivities(sink)

	base.EmitEventSafe(context.Background(), events.Envelope{Type: "t"}, "test event")
	assert.Empty(t, sink.envelopes, "emission failures must be swallowed, not retried forever")
}

func TestSafeLogOutsideActivityContext(t *testing.T) {
	// Both must tolerate a plain context without panicking.
	SafeLog(context.Background(), "info message", "k", "v")
	SafeLogError(context.Background(), "error message", "k", "v")
	RecordHeartbeat(context.Background(), "detail")
}
