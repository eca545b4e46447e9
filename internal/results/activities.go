package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/pkg/activity"
	"github.com/ahrav/go-tribunal/pkg/events"
)

// EventTypeRecordPersisted is emitted after a record reaches the store.
const EventTypeRecordPersisted = "results.record_persisted"

const (
	eventSource  = "results"
	eventVersion = "1.0.0"
)

// Activities implements record persistence as a Temporal activity.
type Activities struct {
	activity.BaseActivities
	store *Store
}

// NewActivities creates persistence activities over the given store.
func NewActivities(store *Store, sink events.EventSink) *Activities {
	return &Activities{
		BaseActivities: activity.NewBaseActivities(sink),
		store:          store,
	}
}

// PersistInput assembles everything needed to build the write-once record.
// EvaluatedAt comes from workflow time so record assembly stays
// deterministic across replays.
type PersistInput struct {
	Request     domain.EvaluationRequest `json:"request"`
	Response    string                   `json:"response"`
	Scorecards  []domain.RaterScorecard  `json:"scorecards"`
	Verdict     domain.HarmVerdict       `json:"verdict"`
	EvaluatedAt time.Time                `json:"evaluated_at"`
}

// PersistOutput confirms the persisted instance.
type PersistOutput struct {
	InstanceID string `json:"instance_id"`
	Degraded   bool   `json:"degraded"`
}

// PersistRecord assembles and saves the evaluation record. Assembly failures
// are structural and non-retryable; storage failures stay retryable since
// SQLite contention clears.
func (a *Activities) PersistRecord(ctx context.Context, input PersistInput) (*PersistOutput, error) {
	req := input.Request

	record, err := domain.NewEvaluationRecord(
		req.InstanceID, req.Question, input.Response,
		input.Scorecards, &input.Verdict,
		len(req.Raters), input.EvaluatedAt,
	)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			err.Error(), "InvalidRecord", err)
	}

	if err := a.store.Save(ctx, record); err != nil {
		return nil, temporal.NewApplicationError(
			fmt.Sprintf("persist instance %s: %v", req.InstanceID, err),
			"PersistFailed", err)
	}

	activity.SafeLog(ctx, "Record persisted",
		"instance_id", record.InstanceID,
		"harm_level", record.Verdict.HarmLevel.String(),
		"degraded", record.Degraded)

	a.emitRecordPersisted(ctx, record)

	return &PersistOutput{InstanceID: record.InstanceID, Degraded: record.Degraded}, nil
}

type recordPersistedPayload struct {
	InstanceID string  `json:"instance_id"`
	FinalScore float64 `json:"final_score"`
	HarmLevel  string  `json:"harm_level"`
	Degraded   bool    `json:"degraded"`
}

func (a *Activities) emitRecordPersisted(ctx context.Context, record *domain.EvaluationRecord) {
	wfCtx := a.GetWorkflowContext(ctx)

	raw, err := json.Marshal(recordPersistedPayload{
		InstanceID: record.InstanceID,
		FinalScore: record.Verdict.FinalScore,
		HarmLevel:  record.Verdict.HarmLevel.String(),
		Degraded:   record.Degraded,
	})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal record_persisted payload", "error", err)
		return
	}

	a.EmitEventSafe(ctx, events.Envelope{
		ID:             uuid.New().String(),
		Type:           EventTypeRecordPersisted,
		Source:         eventSource,
		Version:        eventVersion,
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: fmt.Sprintf("%s:%s:%s", wfCtx.WorkflowID, EventTypeRecordPersisted, record.InstanceID),
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		Payload:        raw,
	}, "record persisted")
}
