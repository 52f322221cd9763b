package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Magalhaes24/scout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck,gosec
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	input_path  TEXT NOT NULL DEFAULT '',
	output_path TEXT NOT NULL DEFAULT '',
	start_row   INTEGER NOT NULL DEFAULT 1,
	workers     INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'running',
	summary     TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS attempts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	pass        TEXT NOT NULL,
	row_index   INTEGER NOT NULL,
	name        TEXT NOT NULL,
	affiliation TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	tier        TEXT NOT NULL DEFAULT 'none',
	url         TEXT NOT NULL DEFAULT '',
	raw_value   TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_attempts_run_id ON attempts(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	run = newRun(run)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_path, output_path, start_row, workers, status, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputPath, run.OutputPath, run.StartRow, run.Workers, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.Summary) error {
	summaryJSON, err := marshalSummary(summary)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, finished_at = ? WHERE id = ?`,
		string(status), nullableText(summaryJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input_path, output_path, start_row, workers, status, summary, started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, input_path, output_path, start_row, workers, status, summary, started_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ? OFFSET ?`
	args = append(args, listLimit(filter), max(0, filter.Offset))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) RecordAttempt(ctx context.Context, a model.Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (run_id, pass, row_index, name, affiliation, status, tier, url, raw_value, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, string(a.Pass), a.RowIndex, a.Name, a.Affiliation, string(a.Status), string(a.Tier),
		a.URL, a.RawValue, a.DurationMs, a.Error, a.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert attempt for run %s", a.RunID)
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, runID string) ([]model.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, pass, row_index, name, affiliation, status, tier, url, raw_value, duration_ms, error, created_at
		 FROM attempts WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list attempts")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attempt")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list attempts iterate")
}

// helpers

func newRun(run model.Run) model.Run {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = model.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()
	return run
}

func marshalSummary(summary *model.Summary) ([]byte, error) {
	if summary == nil {
		return nil, nil
	}
	b, err := json.Marshal(summary)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal summary")
	}
	return b, nil
}

func unmarshalSummary(b []byte) (*model.Summary, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var s model.Summary
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal summary")
	}
	return &s, nil
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r           model.Run
		status      string
		summaryJSON sql.NullString
		finished    sql.NullTime
	)
	err := row.Scan(&r.ID, &r.InputPath, &r.OutputPath, &r.StartRow, &r.Workers, &status, &summaryJSON, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Status = model.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	if summaryJSON.Valid {
		if r.Summary, err = unmarshalSummary([]byte(summaryJSON.String)); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func scanAttempt(row scannable) (model.Attempt, error) {
	var (
		a                  model.Attempt
		pass, status, tier string
	)
	err := row.Scan(&a.RunID, &pass, &a.RowIndex, &a.Name, &a.Affiliation, &status, &tier,
		&a.URL, &a.RawValue, &a.DurationMs, &a.Error, &a.CreatedAt)
	if err != nil {
		return a, err
	}
	a.Pass = model.Pass(pass)
	a.Status = model.Status(status)
	a.Tier = model.Tier(tier)
	return a, nil
}
