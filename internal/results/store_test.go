package results

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tribunal/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord(t *testing.T, instanceID string, score float64) *domain.EvaluationRecord {
	t.Helper()

	set := domain.DefaultDimensionSet()
	raters := []string{"rater-1", "rater-2", "rater-3"}

	cards := make([]domain.RaterScorecard, len(raters))
	aggregates := make(map[string]domain.DimensionAggregate, set.Len())
	for _, key := range set.Keys() {
		opinions := make([]domain.RaterOpinion, len(raters))
		for i, raterID := range raters {
			op := domain.RaterOpinion{
				RaterID: raterID, DimensionKey: key, Score: score,
				Justification: "test reasoning", ParseOK: true,
			}
			opinions[i] = op
			cards[i].RaterID = raterID
			cards[i].Opinions = append(cards[i].Opinions, op)
		}
		agg, err := domain.NewDimensionAggregate(key, opinions)
		require.NoError(t, err)
		aggregates[key] = agg
	}

	verdict, err := domain.ComputeVerdict(set, aggregates, domain.DefaultCriticalThreshold)
	require.NoError(t, err)

	record, err := domain.NewEvaluationRecord(
		instanceID,
		"Is a grapefruit interaction with statins dangerous?",
		"It can raise statin levels; ask your pharmacist.",
		cards, verdict, len(raters),
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return record
}

func TestStoreSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved := testRecord(t, "inst-1", 0.2)
	require.NoError(t, store.Save(ctx, saved))

	got, err := store.Get(ctx, "inst-1")
	require.NoError(t, err)

	assert.Equal(t, saved.InstanceID, got.InstanceID)
	assert.Equal(t, saved.Question, got.Question)
	assert.Equal(t, saved.Response, got.Response)
	assert.Equal(t, saved.Verdict.FinalScore, got.Verdict.FinalScore)
	assert.Equal(t, saved.Verdict.Trigger, got.Verdict.Trigger)
	assert.Equal(t, saved.Verdict.HarmLevel, got.Verdict.HarmLevel)
	assert.Equal(t, saved.RaterCount, got.RaterCount)
	assert.Equal(t, saved.Degraded, got.Degraded)
	assert.True(t, saved.EvaluatedAt.Equal(got.EvaluatedAt))

	require.Len(t, got.Verdict.PerDimension, domain.DefaultDimensionSet().Len())
	for key, agg := range saved.Verdict.PerDimension {
		loaded := got.Verdict.PerDimension[key]
		assert.Equal(t, agg.AggregateScore, loaded.AggregateScore)
		assert.Equal(t, agg.Mean, loaded.Mean)
		assert.ElementsMatch(t, agg.RawScores, loaded.RawScores)
	}

	require.Len(t, got.PerRater, 3)
	assert.Equal(t, "rater-1", got.PerRater[0].RaterID)
	assert.Len(t, got.PerRater[0].Opinions, domain.DefaultDimensionSet().Len())
}

func TestStoreSaveIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRecord(t, "inst-1", 0.2)))
	require.NoError(t, store.Save(ctx, testRecord(t, "inst-1", 0.7)))

	got, err := store.Get(ctx, "inst-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got.Verdict.FinalScore, 1e-9, "resave must replace, not duplicate")

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStoreGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStoreList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRecord(t, "inst-b", 0.2)))
	require.NoError(t, store.Save(ctx, testRecord(t, "inst-a", 0.5)))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Same evaluated_at, so instance id breaks the tie.
	assert.Equal(t, "inst-a", records[0].InstanceID)
	assert.Equal(t, "inst-b", records[1].InstanceID)
}

func TestStoreEscalatedVerdictRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := testRecord(t, "inst-critical", 0.9)
	require.True(t, record.Verdict.Escalated())
	require.NoError(t, store.Save(ctx, record))

	got, err := store.Get(ctx, "inst-critical")
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerCriticalDimension, got.Verdict.Trigger)
	assert.Equal(t, record.Verdict.CriticalDimension, got.Verdict.CriticalDimension)
	assert.Equal(t, domain.HarmLevelSevere, got.Verdict.HarmLevel)
}
