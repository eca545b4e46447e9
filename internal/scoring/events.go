package scoring

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

// Event types emitted by the scoring activities.
const (
	EventTypeRaterScored   = "scoring.rater_scored"
	EventTypeRaterFallback = "scoring.rater_fallback"

	eventSource  = "scoring"
	eventVersion = "1.0.0"
)

// raterScoredPayload summarizes one rater's scorecard for consumers.
type raterScoredPayload struct {
	InstanceID string             `json:"instance_id"`
	RaterID    string             `json:"rater_id"`
	Scores     map[string]float64 `json:"scores"`
	Fallbacks  int                `json:"fallbacks"`
}

type raterFallbackPayload struct {
	InstanceID string `json:"instance_id"`
	RaterID    string `json:"rater_id"`
}

func (a *Activities) emitRaterScored(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	instanceID string,
	card domain.RaterScorecard,
) {
	payload := raterScoredPayload{
		InstanceID: instanceID,
		RaterID:    card.RaterID,
		Scores:     make(map[string]float64, len(card.Opinions)),
	}
	for _, op := range card.Opinions {
		payload.Scores[op.DimensionKey] = op.Score
		if !op.ParseOK {
			payload.Fallbacks++
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal rater_scored payload", "error", err)
		return
	}

	a.EmitEventSafe(ctx, events.Envelope{
		ID:             uuid.New().String(),
		Type:           EventTypeRaterScored,
		Source:         eventSource,
		Version:        eventVersion,
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: fmt.Sprintf("%s:%s:%s:%s", wfCtx.WorkflowID, EventTypeRaterScored, instanceID, card.RaterID),
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		Payload:        raw,
	}, "rater scored")
}

func (a *Activities) emitRaterFallback(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	instanceID, raterID string,
) {
	raw, err := json.Marshal(raterFallbackPayload{InstanceID: instanceID, RaterID: raterID})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal rater_fallback payload", "error", err)
		return
	}

	a.EmitEventSafe(ctx, events.Envelope{
		ID:             uuid.New().String(),
		Type:           EventTypeRaterFallback,
		Source:         eventSource,
		Version:        eventVersion,
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: fmt.Sprintf("%s:%s:%s:%s", wfCtx.WorkflowID, EventTypeRaterFallback, instanceID, raterID),
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		Payload:        raw,
	}, "rater degraded to fallback")
}
