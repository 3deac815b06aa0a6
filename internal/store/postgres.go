package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/footyoracle/footyoracle/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id             TEXT PRIMARY KEY,
	match_id       TEXT NOT NULL,
	league         TEXT NOT NULL,
	home_team      TEXT NOT NULL,
	away_team      TEXT NOT NULL,
	kickoff        TIMESTAMPTZ NOT NULL,
	external_id    BIGINT NOT NULL DEFAULT 0,
	outcome        TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	factors        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	resolved       BOOLEAN NOT NULL DEFAULT FALSE,
	actual_outcome TEXT,
	correct        BOOLEAN,
	resolved_at    TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS predictions_match_id_key ON predictions (match_id);
CREATE INDEX IF NOT EXISTS predictions_unresolved_idx ON predictions (kickoff) WHERE NOT resolved;
`

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// PostgresStore is the durable PredictionStore backend.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to databaseURL and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// predictionRow maps one predictions table row.
type predictionRow struct {
	ID            string          `db:"id"`
	MatchID       string          `db:"match_id"`
	League        string          `db:"league"`
	HomeTeam      string          `db:"home_team"`
	AwayTeam      string          `db:"away_team"`
	Kickoff       time.Time       `db:"kickoff"`
	ExternalID    int64           `db:"external_id"`
	Outcome       string          `db:"outcome"`
	Confidence    float64         `db:"confidence"`
	Factors       json.RawMessage `db:"factors"`
	CreatedAt     time.Time       `db:"created_at"`
	Resolved      bool            `db:"resolved"`
	ActualOutcome sql.NullString  `db:"actual_outcome"`
	Correct       sql.NullBool    `db:"correct"`
	ResolvedAt    sql.NullTime    `db:"resolved_at"`
}

func (r predictionRow) toModel() (model.Prediction, error) {
	var factors model.Factors
	if err := json.Unmarshal(r.Factors, &factors); err != nil {
		return model.Prediction{}, fmt.Errorf("decode factors for %s: %w", r.MatchID, err)
	}

	p := model.Prediction{
		ID:      r.ID,
		MatchID: r.MatchID,
		Fixture: model.Fixture{
			League:     r.League,
			HomeTeam:   r.HomeTeam,
			AwayTeam:   r.AwayTeam,
			Kickoff:    r.Kickoff,
			ExternalID: r.ExternalID,
		},
		Outcome:    model.Outcome(r.Outcome),
		Confidence: r.Confidence,
		Factors:    factors,
		CreatedAt:  r.CreatedAt,
	}
	if r.Resolved {
		p.Resolution = model.Resolution{
			Resolved:      true,
			ActualOutcome: model.Outcome(r.ActualOutcome.String),
			Correct:       r.Correct.Bool,
			ResolvedAt:    r.ResolvedAt.Time,
		}
	}
	return p, nil
}

// Insert implements PredictionStore.
func (s *PostgresStore) Insert(ctx context.Context, p *model.Prediction) error {
	if p.ID == "" {
		p.ID = "offchain-" + uuid.NewString()
	}
	factors, err := json.Marshal(p.Factors)
	if err != nil {
		return fmt.Errorf("encode factors for %s: %w", p.MatchID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO predictions
			(id, match_id, league, home_team, away_team, kickoff, external_id,
			 outcome, confidence, factors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.MatchID, p.Fixture.League, p.Fixture.HomeTeam, p.Fixture.AwayTeam,
		p.Fixture.Kickoff, p.Fixture.ExternalID,
		string(p.Outcome), p.Confidence, factors, p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert %s: %w", p.MatchID, ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", p.MatchID, err)
	}
	return nil
}

// Get implements PredictionStore.
func (s *PostgresStore) Get(ctx context.Context, matchID string) (model.Prediction, error) {
	var row predictionRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM predictions WHERE match_id = $1`, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Prediction{}, fmt.Errorf("get %s: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return model.Prediction{}, fmt.Errorf("get %s: %w", matchID, err)
	}
	return row.toModel()
}

// List implements PredictionStore.
func (s *PostgresStore) List(ctx context.Context, f Filter) ([]model.Prediction, error) {
	query := `SELECT * FROM predictions WHERE 1=1`
	args := []interface{}{}
	if f.League != "" {
		args = append(args, f.League)
		query += fmt.Sprintf(" AND league = $%d", len(args))
	}
	if f.Resolved != nil {
		args = append(args, *f.Resolved)
		query += fmt.Sprintf(" AND resolved = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []predictionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return rowsToModels(rows)
}

// Unresolved implements PredictionStore.
func (s *PostgresStore) Unresolved(ctx context.Context, cutoff time.Time) ([]model.Prediction, error) {
	var rows []predictionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM predictions
		WHERE NOT resolved AND kickoff <= $1
		ORDER BY kickoff ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list unresolved: %w", err)
	}
	return rowsToModels(rows)
}

// Resolve implements PredictionStore. The guarded UPDATE makes the
// transition atomic: a concurrent resolver loses the race cleanly instead
// of overwriting the first outcome.
func (s *PostgresStore) Resolve(ctx context.Context, matchID string, actual model.Outcome, at time.Time) (model.Prediction, error) {
	if !actual.Valid() {
		return model.Prediction{}, fmt.Errorf("resolve %s: invalid outcome %q", matchID, actual)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE predictions
		SET resolved = TRUE,
		    actual_outcome = $2,
		    correct = (outcome = $2),
		    resolved_at = $3
		WHERE match_id = $1 AND NOT resolved`,
		matchID, string(actual), at)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("resolve %s: %w", matchID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.Prediction{}, fmt.Errorf("resolve %s: %w", matchID, err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, matchID); errors.Is(getErr, ErrNotFound) {
			return model.Prediction{}, fmt.Errorf("resolve %s: %w", matchID, ErrNotFound)
		}
		return model.Prediction{}, fmt.Errorf("resolve %s: %w", matchID, ErrAlreadyResolved)
	}
	return s.Get(ctx, matchID)
}

// Stats implements PredictionStore.
func (s *PostgresStore) Stats(ctx context.Context, league string) (Stats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE resolved) AS resolved,
			COUNT(*) FILTER (WHERE NOT resolved) AS pending,
			COUNT(*) FILTER (WHERE resolved AND correct) AS correct,
			COUNT(*) FILTER (WHERE resolved AND NOT correct) AS incorrect
		FROM predictions`
	args := []interface{}{}
	if league != "" {
		query += ` WHERE league = $1`
		args = append(args, league)
	}

	var row struct {
		Total     int `db:"total"`
		Resolved  int `db:"resolved"`
		Pending   int `db:"pending"`
		Correct   int `db:"correct"`
		Incorrect int `db:"incorrect"`
	}
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}

	stats := Stats{
		Total:     row.Total,
		Resolved:  row.Resolved,
		Pending:   row.Pending,
		Correct:   row.Correct,
		Incorrect: row.Incorrect,
	}
	if stats.Resolved > 0 {
		stats.Accuracy = float64(stats.Correct) / float64(stats.Resolved)
	}
	return stats, nil
}

// Close implements PredictionStore.
func (s *PostgresStore) Close() error { return s.db.Close() }

func rowsToModels(rows []predictionRow) ([]model.Prediction, error) {
	out := make([]model.Prediction, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
