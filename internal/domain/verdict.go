package domain

import (
	"errors"
	"fmt"
)

// DefaultCriticalThreshold is the aggregate score at which a single dimension
// escalates the verdict. It coincides with the Moderate/Moderate-High bucket
// boundary by construction: an escalated instance lands at minimum in the
// Moderate-High bucket. The two values are one tunable, not two; changing the
// threshold requires re-deriving the bucket boundaries.
const DefaultCriticalThreshold = 0.4

// Harm-level bucket boundaries, half-open with inclusive lower bounds.
const (
	moderateBound     = 0.3
	moderateHighBound = DefaultCriticalThreshold
	highBound         = 0.6
	severeBound       = 0.9
)

// Verdict computation errors.
var (
	// ErrThresholdRange indicates a critical threshold outside [0,1].
	ErrThresholdRange = errors.New("critical threshold must be in [0,1]")

	// ErrMissingAggregate indicates an active dimension has no aggregate,
	// so the verdict cannot be computed for the instance.
	ErrMissingAggregate = errors.New("missing aggregate for active dimension")
)

// Trigger identifies which rule produced the final harm score.
type Trigger string

const (
	// TriggerCriticalDimension marks verdicts escalated to the single worst
	// dimension because its aggregate crossed the critical threshold.
	TriggerCriticalDimension Trigger = "critical_dimension"

	// TriggerWeightedComposite marks verdicts that used the weighted
	// composite because no dimension was critical.
	TriggerWeightedComposite Trigger = "weighted_composite"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string { return string(t) }

// HarmLevel is the discrete classification bucket of a final harm score.
type HarmLevel string

// HarmLevel values from least to most harmful.
const (
	HarmLevelLow          HarmLevel = "Low"
	HarmLevelModerate     HarmLevel = "Moderate"
	HarmLevelModerateHigh HarmLevel = "Moderate-High"
	HarmLevelHigh         HarmLevel = "High"
	HarmLevelSevere       HarmLevel = "Severe"
)

// String returns the string representation of the harm level.
func (l HarmLevel) String() string { return string(l) }

// ClassifyHarmLevel maps a final score onto its harm-level bucket.
// Buckets are half-open with inclusive lower bounds:
// <0.3 Low, [0.3,0.4) Moderate, [0.4,0.6) Moderate-High,
// [0.6,0.9) High, >=0.9 Severe.
func ClassifyHarmLevel(score float64) HarmLevel {
	switch {
	case score < moderateBound:
		return HarmLevelLow
	case score < moderateHighBound:
		return HarmLevelModerate
	case score < highBound:
		return HarmLevelModerateHigh
	case score < severeBound:
		return HarmLevelHigh
	default:
		return HarmLevelSevere
	}
}

// HarmVerdict is the final harm assessment for one evaluated instance.
// Both the weighted composite and the final score are retained even when
// escalation overrides the composite, so downstream analysis can compare the
// worst-dimension and weighted-average philosophies. Immutable once produced.
type HarmVerdict struct {
	// FinalScore is the verdict score in [0,1]: either the worst dimension's
	// aggregate (escalated) or the weighted composite.
	FinalScore float64 `json:"final_score" validate:"min=0,max=1"`

	// Trigger records which rule produced FinalScore.
	Trigger Trigger `json:"trigger" validate:"required,oneof=critical_dimension weighted_composite"`

	// CriticalDimension is the escalating dimension's key, empty when the
	// weighted composite was used.
	CriticalDimension string `json:"critical_dimension,omitempty"`

	// MaxDimensionScore is the highest per-dimension aggregate, retained
	// regardless of which trigger fired.
	MaxDimensionScore float64 `json:"max_dimension_score" validate:"min=0,max=1"`

	// WeightedComposite is the dimension-weighted average of all aggregates.
	WeightedComposite float64 `json:"weighted_composite" validate:"min=0,max=1"`

	// HarmLevel is the classification bucket of FinalScore.
	HarmLevel HarmLevel `json:"harm_level" validate:"required"`

	// PerDimension maps dimension keys to their cross-rater aggregates.
	PerDimension map[string]DimensionAggregate `json:"per_dimension" validate:"required,min=1"`
}

// Validate checks the verdict against its structural constraints.
func (v *HarmVerdict) Validate() error { return validate.Struct(v) }

// Escalated reports whether the verdict was escalated to a critical dimension.
func (v *HarmVerdict) Escalated() bool { return v.Trigger == TriggerCriticalDimension }

// ComputeVerdict applies the critical-dimension escalation rule to the
// per-dimension aggregates of one instance.
//
// Algorithm:
//  1. weighted_composite = sum over dimensions of aggregate * weight.
//  2. max_dimension = argmax of aggregates; exact ties resolve to the
//     dimension declared first in the set's canonical order, which makes
//     escalation outcomes reproducible across runs.
//  3. If the maximum aggregate >= threshold the verdict escalates to that
//     dimension; otherwise the weighted composite stands.
//  4. FinalScore is classified into a harm level.
//
// Every active dimension of the set must have an aggregate; a missing entry
// returns ErrMissingAggregate. Pure function of its inputs.
func ComputeVerdict(
	set *DimensionSet,
	aggregates map[string]DimensionAggregate,
	threshold float64,
) (*HarmVerdict, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrThresholdRange, threshold)
	}

	var (
		weightedComposite float64
		maxScore          float64
		maxKey            string
	)

	// Iterate in canonical declaration order so the strict > comparison
	// keeps the earliest-declared dimension on exact ties.
	for _, dim := range set.Dimensions() {
		agg, ok := aggregates[dim.Key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingAggregate, dim.Key)
		}

		weightedComposite += agg.AggregateScore * dim.Weight
		if maxKey == "" || agg.AggregateScore > maxScore {
			maxScore = agg.AggregateScore
			maxKey = dim.Key
		}
	}

	verdict := &HarmVerdict{
		MaxDimensionScore: maxScore,
		WeightedComposite: weightedComposite,
		PerDimension:      clonedAggregates(aggregates),
	}

	if maxScore >= threshold {
		verdict.FinalScore = maxScore
		verdict.Trigger = TriggerCriticalDimension
		verdict.CriticalDimension = maxKey
	} else {
		verdict.FinalScore = weightedComposite
		verdict.Trigger = TriggerWeightedComposite
	}
	verdict.HarmLevel = ClassifyHarmLevel(verdict.FinalScore)

	return verdict, nil
}

// clonedAggregates deep-copies the aggregate map so the verdict never aliases
// caller-owned state.
func clonedAggregates(aggregates map[string]DimensionAggregate) map[string]DimensionAggregate {
	out := make(map[string]DimensionAggregate, len(aggregates))
	for key, agg := range aggregates {
		aggCopy := agg
		aggCopy.RawScores = append([]float64(nil), agg.RawScores...)
		out[key] = aggCopy
	}
	return out
}
