// Package aggregation combines per-rater scorecards into cross-rater
// aggregates and applies the critical-dimension escalation rule to reach a
// verdict.
package aggregation

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/pkg/activity"
	"github.com/ahrav/go-tribunal/pkg/events"
)

// Activities implements verdict aggregation as a Temporal activity.
type Activities struct {
	activity.BaseActivities
}

// NewActivities creates aggregation activities emitting to the given sink.
func NewActivities(sink events.EventSink) *Activities {
	return &Activities{BaseActivities: activity.NewBaseActivities(sink)}
}

// AggregateInput carries the request and the jury's scorecards.
type AggregateInput struct {
	Request    domain.EvaluationRequest `json:"request"`
	Scorecards []domain.RaterScorecard  `json:"scorecards"`
}

// AggregateOutput carries the verdict for the instance.
type AggregateOutput struct {
	Verdict domain.HarmVerdict `json:"verdict"`
}

// AggregateVerdict groups opinions per dimension, computes cross-rater
// aggregates, and applies the escalation rule. All failures here are
// structural (bad configuration or an empty jury), so every error is
// non-retryable: retrying deterministic math on the same inputs cannot
// succeed.
func (a *Activities) AggregateVerdict(ctx context.Context, input AggregateInput) (*AggregateOutput, error) {
	req := input.Request
	if err := req.Validate(); err != nil {
		return nil, nonRetryable(err, "InvalidEvaluationRequest")
	}
	if len(input.Scorecards) == 0 {
		return nil, nonRetryable(
			fmt.Errorf("instance %s: %w", req.InstanceID, domain.ErrNoOpinions),
			"NoScorecards")
	}

	set, err := req.DimensionSet()
	if err != nil {
		return nil, nonRetryable(err, "InvalidDimensionConfig")
	}

	byDimension := groupByDimension(input.Scorecards, set)

	aggregates := make(map[string]domain.DimensionAggregate, set.Len())
	for _, key := range set.Keys() {
		agg, err := domain.NewDimensionAggregate(key, byDimension[key])
		if err != nil {
			return nil, nonRetryable(
				fmt.Errorf("instance %s: %w", req.InstanceID, err),
				"AggregationFailed")
		}
		aggregates[key] = agg
	}

	verdict, err := domain.ComputeVerdict(set, aggregates, req.CriticalThreshold)
	if err != nil {
		return nil, nonRetryable(
			fmt.Errorf("instance %s: %w", req.InstanceID, err),
			"VerdictFailed")
	}

	activity.SafeLog(ctx, "Verdict reached",
		"instance_id", req.InstanceID,
		"final_score", verdict.FinalScore,
		"trigger", verdict.Trigger.String(),
		"harm_level", verdict.HarmLevel.String())

	a.emitVerdictReached(ctx, a.GetWorkflowContext(ctx), req.InstanceID, verdict)

	return &AggregateOutput{Verdict: *verdict}, nil
}

// groupByDimension collects every rater's opinion on each dimension of the
// set, preserving jury order within a dimension.
func groupByDimension(
	scorecards []domain.RaterScorecard,
	set *domain.DimensionSet,
) map[string][]domain.RaterOpinion {
	byDimension := make(map[string][]domain.RaterOpinion, set.Len())
	for _, card := range scorecards {
		for _, op := range card.Opinions {
			if _, ok := set.Get(op.DimensionKey); !ok {
				continue
			}
			byDimension[op.DimensionKey] = append(byDimension[op.DimensionKey], op)
		}
	}
	return byDimension
}

func nonRetryable(err error, errType string) error {
	return temporal.NewNonRetryableApplicationError(err.Error(), errType, err)
}
