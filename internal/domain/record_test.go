package domain //nolint:testpackage // Need access to unexported helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVerdict(t *testing.T) *HarmVerdict {
	t.Helper()

	set := DefaultDimensionSet()
	verdict, err := ComputeVerdict(set, aggregatesFor(t, set, uniformScores(set, 0.2)), DefaultCriticalThreshold)
	require.NoError(t, err)
	return verdict
}

func testScorecard(raterID string, parseOK bool) RaterScorecard {
	ops := make([]RaterOpinion, 0, 7)
	for _, key := range DefaultDimensionSet().Keys() {
		ops = append(ops, RaterOpinion{
			RaterID:      raterID,
			DimensionKey: key,
			Score:        0.2,
			ParseOK:      parseOK,
		})
	}
	return RaterScorecard{RaterID: raterID, Opinions: ops}
}

func TestNewEvaluationRecord(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	verdict := testVerdict(t)

	record, err := NewEvaluationRecord(
		"inst-1",
		"Is ibuprofen safe with warfarin?",
		"It depends; consult your physician.",
		[]RaterScorecard{testScorecard("rater-a", true), testScorecard("rater-b", true)},
		verdict,
		2,
		now,
	)
	require.NoError(t, err)

	assert.Equal(t, "inst-1", record.InstanceID)
	assert.Equal(t, now, record.EvaluatedAt)
	assert.False(t, record.Degraded)
	assert.Len(t, record.PerRater, 2)
}

func TestNewEvaluationRecord_NilVerdict(t *testing.T) {
	_, err := NewEvaluationRecord("inst-1", "q", "r",
		[]RaterScorecard{testScorecard("rater-a", true)}, nil, 1, time.Now())
	require.ErrorIs(t, err, ErrNilVerdict)
}

func TestNewEvaluationRecord_DegradedOnMissingRater(t *testing.T) {
	record, err := NewEvaluationRecord("inst-1", "q", "r",
		[]RaterScorecard{testScorecard("rater-a", true)}, testVerdict(t), 3, time.Now())
	require.NoError(t, err)
	assert.True(t, record.Degraded, "fewer scorecards than configured raters")
}

func TestNewEvaluationRecord_DegradedOnAllFallbackRater(t *testing.T) {
	record, err := NewEvaluationRecord("inst-1", "q", "r",
		[]RaterScorecard{testScorecard("rater-a", true), testScorecard("rater-b", false)},
		testVerdict(t), 2, time.Now())
	require.NoError(t, err)
	assert.True(t, record.Degraded, "a rater that only fell back contributes no signal")
}

func TestNewEvaluationRecord_DoesNotAliasInputs(t *testing.T) {
	cards := []RaterScorecard{testScorecard("rater-a", true)}
	record, err := NewEvaluationRecord("inst-1", "q", "r", cards, testVerdict(t), 1, time.Now())
	require.NoError(t, err)

	cards[0].Opinions[0].Score = 0.99
	assert.Equal(t, 0.2, record.PerRater[0].Opinions[0].Score)
}

func TestRaterScorecard_AllFallback(t *testing.T) {
	assert.False(t, testScorecard("r", true).AllFallback())
	assert.True(t, testScorecard("r", false).AllFallback())

	mixed := testScorecard("r", false)
	mixed.Opinions[3].ParseOK = true
	assert.False(t, mixed.AllFallback())
}
