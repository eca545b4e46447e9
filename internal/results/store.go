// Package results persists evaluation records to SQLite and exposes the
// queries the reporting layer reads from.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ahrav/go-tribunal/internal/domain"
)

// ErrRecordNotFound indicates no record exists for the requested instance.
var ErrRecordNotFound = errors.New("evaluation record not found")

const schema = `
CREATE TABLE IF NOT EXISTS records (
	instance_id         TEXT PRIMARY KEY,
	question            TEXT NOT NULL,
	response            TEXT NOT NULL,
	final_score         REAL NOT NULL,
	trigger_rule        TEXT NOT NULL,
	critical_dimension  TEXT NOT NULL DEFAULT '',
	max_dimension_score REAL NOT NULL,
	weighted_composite  REAL NOT NULL,
	harm_level          TEXT NOT NULL,
	rater_count         INTEGER NOT NULL,
	degraded            INTEGER NOT NULL,
	evaluated_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dimension_aggregates (
	instance_id     TEXT NOT NULL REFERENCES records(instance_id) ON DELETE CASCADE,
	dimension_key   TEXT NOT NULL,
	aggregate_score REAL NOT NULL,
	mean            REAL NOT NULL,
	variance        REAL NOT NULL,
	std_dev         REAL NOT NULL,
	min             REAL NOT NULL,
	max             REAL NOT NULL,
	any_fallback    INTEGER NOT NULL,
	PRIMARY KEY (instance_id, dimension_key)
);

CREATE TABLE IF NOT EXISTS rater_opinions (
	instance_id   TEXT NOT NULL REFERENCES records(instance_id) ON DELETE CASCADE,
	rater_id      TEXT NOT NULL,
	dimension_key TEXT NOT NULL,
	score         REAL NOT NULL,
	justification TEXT NOT NULL DEFAULT '',
	parse_ok      INTEGER NOT NULL,
	PRIMARY KEY (instance_id, rater_id, dimension_key)
);

CREATE INDEX IF NOT EXISTS idx_records_harm_level ON records(harm_level);
CREATE INDEX IF NOT EXISTS idx_aggregates_dimension ON dimension_aggregates(dimension_key);
`

// Store persists evaluation records to a SQLite database. Safe for
// concurrent use; writes are serialized through SQLite's own locking with a
// busy timeout.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the SQLite database at path and applies
// the schema. Use ":memory:" for an ephemeral store.
func NewStore(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open results database: %w", err)
	}

	// modernc.org/sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY churn under concurrent activity completions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply results schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Save persists one evaluation record. Saving the same instance twice
// replaces the previous record, which makes workflow retries idempotent.
func (s *Store) Save(ctx context.Context, record *domain.EvaluationRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Delete-then-insert keeps replacement atomic across all three tables.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM records WHERE instance_id = ?`, record.InstanceID); err != nil {
		return fmt.Errorf("clear previous record: %w", err)
	}

	v := record.Verdict
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO records (
			instance_id, question, response, final_score, trigger_rule,
			critical_dimension, max_dimension_score, weighted_composite,
			harm_level, rater_count, degraded, evaluated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.InstanceID, record.Question, record.Response,
		v.FinalScore, v.Trigger.String(), v.CriticalDimension,
		v.MaxDimensionScore, v.WeightedComposite, v.HarmLevel.String(),
		record.RaterCount, boolToInt(record.Degraded),
		record.EvaluatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	for key, agg := range v.PerDimension {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dimension_aggregates (
				instance_id, dimension_key, aggregate_score, mean,
				variance, std_dev, min, max, any_fallback
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.InstanceID, key, agg.AggregateScore, agg.Mean,
			agg.Variance, agg.StdDev, agg.Min, agg.Max, boolToInt(agg.AnyFallback),
		); err != nil {
			return fmt.Errorf("insert aggregate %q: %w", key, err)
		}
	}

	for _, card := range record.PerRater {
		for _, op := range card.Opinions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO rater_opinions (
					instance_id, rater_id, dimension_key, score, justification, parse_ok
				) VALUES (?, ?, ?, ?, ?, ?)`,
				record.InstanceID, op.RaterID, op.DimensionKey,
				op.Score, op.Justification, boolToInt(op.ParseOK),
			); err != nil {
				return fmt.Errorf("insert opinion %s/%s: %w", op.RaterID, op.DimensionKey, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Get loads one record with its aggregates and opinions. Returns
// ErrRecordNotFound when the instance has not been persisted.
func (s *Store) Get(ctx context.Context, instanceID string) (*domain.EvaluationRecord, error) {
	record := &domain.EvaluationRecord{InstanceID: instanceID}

	var trigger, harmLevel, evaluatedAt string
	var degraded int
	err := s.db.QueryRowContext(ctx, `
		SELECT question, response, final_score, trigger_rule, critical_dimension,
		       max_dimension_score, weighted_composite, harm_level,
		       rater_count, degraded, evaluated_at
		FROM records WHERE instance_id = ?`, instanceID,
	).Scan(
		&record.Question, &record.Response, &record.Verdict.FinalScore,
		&trigger, &record.Verdict.CriticalDimension,
		&record.Verdict.MaxDimensionScore, &record.Verdict.WeightedComposite,
		&harmLevel, &record.RaterCount, &degraded, &evaluatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("instance %q: %w", instanceID, ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}

	record.Verdict.Trigger = domain.Trigger(trigger)
	record.Verdict.HarmLevel = domain.HarmLevel(harmLevel)
	record.Degraded = degraded != 0
	if record.EvaluatedAt, err = time.Parse(time.RFC3339Nano, evaluatedAt); err != nil {
		return nil, fmt.Errorf("parse evaluated_at: %w", err)
	}

	if record.Verdict.PerDimension, err = s.loadAggregates(ctx, instanceID); err != nil {
		return nil, err
	}
	if record.PerRater, err = s.loadOpinions(ctx, instanceID); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Store) loadAggregates(ctx context.Context, instanceID string) (map[string]domain.DimensionAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dimension_key, aggregate_score, mean, variance, std_dev, min, max, any_fallback
		FROM dimension_aggregates WHERE instance_id = ?`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	aggregates := make(map[string]domain.DimensionAggregate)
	for rows.Next() {
		var agg domain.DimensionAggregate
		var anyFallback int
		if err := rows.Scan(&agg.DimensionKey, &agg.AggregateScore, &agg.Mean,
			&agg.Variance, &agg.StdDev, &agg.Min, &agg.Max, &anyFallback); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		agg.AnyFallback = anyFallback != 0

		// Raw per-rater scores live in rater_opinions; rebuild them there.
		agg.RawScores = nil
		aggregates[agg.DimensionKey] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregates: %w", err)
	}

	opinions, err := s.loadOpinions(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	for _, card := range opinions {
		for _, op := range card.Opinions {
			agg, ok := aggregates[op.DimensionKey]
			if !ok {
				continue
			}
			agg.RawScores = append(agg.RawScores, op.Score)
			aggregates[op.DimensionKey] = agg
		}
	}
	return aggregates, nil
}

func (s *Store) loadOpinions(ctx context.Context, instanceID string) ([]domain.RaterScorecard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rater_id, dimension_key, score, justification, parse_ok
		FROM rater_opinions WHERE instance_id = ?
		ORDER BY rowid`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load opinions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cards []domain.RaterScorecard
	byRater := make(map[string]int)
	for rows.Next() {
		var op domain.RaterOpinion
		var parseOK int
		if err := rows.Scan(&op.RaterID, &op.DimensionKey, &op.Score,
			&op.Justification, &parseOK); err != nil {
			return nil, fmt.Errorf("scan opinion: %w", err)
		}
		op.ParseOK = parseOK != 0

		idx, ok := byRater[op.RaterID]
		if !ok {
			idx = len(cards)
			byRater[op.RaterID] = idx
			cards = append(cards, domain.RaterScorecard{RaterID: op.RaterID})
		}
		cards[idx].Opinions = append(cards[idx].Opinions, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opinions: %w", err)
	}
	return cards, nil
}

// List returns every persisted record ordered by evaluation time.
func (s *Store) List(ctx context.Context) ([]*domain.EvaluationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT instance_id FROM records ORDER BY evaluated_at, instance_id`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan instance id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	records := make([]*domain.EvaluationRecord, 0, len(ids))
	for _, id := range ids {
		record, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Count returns the number of persisted records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
