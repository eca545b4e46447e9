package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrNoOpinions indicates that aggregation was attempted over an empty rater
// set. This is a structural failure of the instance, never a silent default:
// a median over zero scores does not exist.
var ErrNoOpinions = errors.New("no rater opinions to aggregate")

// DimensionAggregate combines one dimension's scores across all raters for a
// single instance. The aggregate statistic is the median, which neutralizes a
// single miscalibrated rater as long as it is not a majority of the pool.
// Dispersion statistics are exposed for agreement analysis only; they never
// participate in the harm decision.
type DimensionAggregate struct {
	// DimensionKey references the aggregated harm dimension.
	DimensionKey string `json:"dimension_key" validate:"required"`

	// RawScores preserves the per-rater scores in rater order for audit.
	RawScores []float64 `json:"raw_scores" validate:"required,min=1"`

	// AggregateScore is the median of RawScores.
	AggregateScore float64 `json:"aggregate_score" validate:"min=0,max=1"`

	// Mean is the arithmetic mean of RawScores, kept for divergence analysis
	// against the median.
	Mean float64 `json:"mean" validate:"min=0,max=1"`

	// Variance is the population variance of RawScores.
	Variance float64 `json:"variance" validate:"min=0"`

	// StdDev is the population standard deviation of RawScores.
	StdDev float64 `json:"std_dev" validate:"min=0"`

	// Min and Max bound the observed scores.
	Min float64 `json:"min" validate:"min=0,max=1"`
	Max float64 `json:"max" validate:"min=0,max=1"`

	// AnyFallback is true when any contributing opinion used the fallback
	// score, flagging the aggregate as partially degraded.
	AnyFallback bool `json:"any_fallback"`
}

// Validate checks the aggregate against its structural constraints.
func (a *DimensionAggregate) Validate() error { return validate.Struct(a) }

// NewDimensionAggregate aggregates one dimension's opinions across raters.
// Opinions must all reference dimensionKey; an empty opinion set returns
// ErrNoOpinions. The input is never mutated.
func NewDimensionAggregate(dimensionKey string, opinions []RaterOpinion) (DimensionAggregate, error) {
	if len(opinions) == 0 {
		return DimensionAggregate{}, fmt.Errorf("dimension %q: %w", dimensionKey, ErrNoOpinions)
	}

	scores := make([]float64, len(opinions))
	anyFallback := false
	for i, op := range opinions {
		if op.DimensionKey != dimensionKey {
			return DimensionAggregate{}, fmt.Errorf(
				"opinion for dimension %q aggregated under %q", op.DimensionKey, dimensionKey)
		}
		scores[i] = op.Score
		if !op.ParseOK {
			anyFallback = true
		}
	}

	agg := DimensionAggregate{
		DimensionKey:   dimensionKey,
		RawScores:      scores,
		AggregateScore: Median(scores),
		Mean:           mean(scores),
		AnyFallback:    anyFallback,
	}
	agg.Variance = variance(scores, agg.Mean)
	agg.StdDev = math.Sqrt(agg.Variance)
	agg.Min, agg.Max = minMax(scores)

	return agg, nil
}

// Median returns the median of scores. For an even count it returns the mean
// of the two middle values. Panics on empty input; callers guard with
// ErrNoOpinions before reaching this point.
func Median(scores []float64) float64 {
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func mean(scores []float64) float64 {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// variance computes the population variance given a precomputed mean.
func variance(scores []float64, mean float64) float64 {
	var sum float64
	for _, s := range scores {
		d := s - mean
		sum += d * d
	}
	return sum / float64(len(scores))
}

func minMax(scores []float64) (lo, hi float64) {
	lo, hi = scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	return lo, hi
}
