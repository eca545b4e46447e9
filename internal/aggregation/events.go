package aggregation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/pkg/activity"
	"github.com/ahrav/go-tribunal/pkg/events"
)

// EventTypeVerdictReached is emitted once per aggregated instance.
const EventTypeVerdictReached = "aggregation.verdict_reached"

const (
	eventSource  = "aggregation"
	eventVersion = "1.0.0"
)

// verdictReachedPayload summarizes the verdict for event consumers.
type verdictReachedPayload struct {
	InstanceID        string  `json:"instance_id"`
	FinalScore        float64 `json:"final_score"`
	Trigger           string  `json:"trigger"`
	CriticalDimension string  `json:"critical_dimension,omitempty"`
	HarmLevel         string  `json:"harm_level"`
	Escalated         bool    `json:"escalated"`
}

func (a *Activities) emitVerdictReached(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	instanceID string,
	verdict *domain.HarmVerdict,
) {
	raw, err := json.Marshal(verdictReachedPayload{
		InstanceID:        instanceID,
		FinalScore:        verdict.FinalScore,
		Trigger:           verdict.Trigger.String(),
		CriticalDimension: verdict.CriticalDimension,
		HarmLevel:         verdict.HarmLevel.String(),
		Escalated:         verdict.Escalated(),
	})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal verdict_reached payload", "error", err)
		return
	}

	a.EmitEventSafe(ctx, events.Envelope{
		ID:             uuid.New().String(),
		Type:           EventTypeVerdictReached,
		Source:         eventSource,
		Version:        eventVersion,
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: fmt.Sprintf("%s:%s:%s", wfCtx.WorkflowID, EventTypeVerdictReached, instanceID),
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		Payload:        raw,
	}, "verdict reached")
}
