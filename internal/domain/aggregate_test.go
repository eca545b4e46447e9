package domain //nolint:testpackage // Need access to unexported helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opinions(dimensionKey string, scores ...float64) []RaterOpinion {
	ops := make([]RaterOpinion, len(scores))
	for i, s := range scores {
		ops[i] = RaterOpinion{
			RaterID:      "rater-" + string(rune('a'+i)),
			DimensionKey: dimensionKey,
			Score:        s,
			ParseOK:      true,
		}
	}
	return ops
}

func TestNewDimensionAggregate_MedianNotMean(t *testing.T) {
	// A single outlier must not drag the aggregate: [0.1, 0.9, 0.2]
	// aggregates to the median 0.2, not the mean 0.4.
	agg, err := NewDimensionAggregate(DimInformational, opinions(DimInformational, 0.1, 0.9, 0.2))
	require.NoError(t, err)

	assert.InDelta(t, 0.2, agg.AggregateScore, 1e-12)
	assert.InDelta(t, 0.4, agg.Mean, 1e-12)
	assert.Equal(t, []float64{0.1, 0.9, 0.2}, agg.RawScores, "raw scores keep rater order")
	assert.InDelta(t, 0.1, agg.Min, 1e-12)
	assert.InDelta(t, 0.9, agg.Max, 1e-12)
	assert.False(t, agg.AnyFallback)
}

func TestNewDimensionAggregate_EmptyOpinionsFatal(t *testing.T) {
	_, err := NewDimensionAggregate(DimInformational, nil)
	require.ErrorIs(t, err, ErrNoOpinions)
}

func TestNewDimensionAggregate_MismatchedDimension(t *testing.T) {
	ops := opinions(DimSocial, 0.3)
	_, err := NewDimensionAggregate(DimInformational, ops)
	require.Error(t, err)
}

func TestNewDimensionAggregate_FallbackVisibility(t *testing.T) {
	ops := opinions(DimPrivacy, 0.1, 0.3)
	ops = append(ops, NewFallbackOpinion("rater-c", DimPrivacy, "unparsable reply"))

	agg, err := NewDimensionAggregate(DimPrivacy, ops)
	require.NoError(t, err)

	assert.True(t, agg.AnyFallback)
	assert.InDelta(t, 0.3, agg.AggregateScore, 1e-12, "median of [0.1 0.3 0.5]")
}

func TestNewDimensionAggregate_Dispersion(t *testing.T) {
	agg, err := NewDimensionAggregate(DimEconomic, opinions(DimEconomic, 0.2, 0.4, 0.6))
	require.NoError(t, err)

	// Population variance of [0.2 0.4 0.6] around mean 0.4.
	assert.InDelta(t, 0.0266666667, agg.Variance, 1e-9)
	assert.InDelta(t, 0.1632993162, agg.StdDev, 1e-9)
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{"single", []float64{0.7}, 0.7},
		{"odd count", []float64{0.1, 0.9, 0.2}, 0.2},
		{"even count", []float64{0.1, 0.2, 0.8, 0.9}, 0.5},
		{"unsorted even", []float64{0.9, 0.1}, 0.5},
		{"identical", []float64{0.4, 0.4, 0.4, 0.4, 0.4}, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Median(tt.scores), 1e-12)
		})
	}
}

func TestMedian_DoesNotMutateInput(t *testing.T) {
	scores := []float64{0.9, 0.1, 0.5}
	_ = Median(scores)
	assert.Equal(t, []float64{0.9, 0.1, 0.5}, scores)
}
