package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Magalhaes24/scout/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runColumns = []string{"id", "input_path", "output_path", "start_row", "workers", "status", "summary", "started_at", "finished_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO runs \(id, input_path, output_path, start_row, workers, status, started_at\)`).
		WithArgs(pgxmock.AnyArg(), "players.csv", "market_values.csv", 1, 6, "running", started).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), model.Run{
		InputPath:  "players.csv",
		OutputPath: "market_values.csv",
		StartRow:   1,
		Workers:    6,
		StartedAt:  started,
	})
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WillReturnError(errors.New("connection refused"))

	_, err := s.CreateRun(context.Background(), model.Run{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, summary = \$2, finished_at = \$3 WHERE id = \$4`).
		WithArgs("complete", pgxmock.AnyArg(), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FinishRun(context.Background(), "run-1", model.RunStatusComplete, &model.Summary{Jobs: 2})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinishRun(context.Background(), "missing", model.RunStatusFailed, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, input_path, .* FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", "players.csv", "market_values.csv", 2, 4, "complete",
				[]byte(`{"jobs":2,"processed":2,"cancelled":false,"status_counts":{"ok":2}}`), started, nil))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, 2, run.StartRow)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 2, run.Summary.Processed)
	assert.Equal(t, map[string]int{"ok": 2}, run.Summary.StatusCounts)
	assert.Equal(t, started, run.StartedAt)
	assert.Nil(t, run.FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, input_path, .* FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM runs WHERE true AND status = \$1 ORDER BY started_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("cancelled", 10, 20).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-2", "", "out.csv", 1, 2, "cancelled", nil, started, nil).
			AddRow("run-1", "", "out.csv", 1, 2, "cancelled", nil, started.Add(-time.Hour), nil))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusCancelled, Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Nil(t, runs[0].Summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE true ORDER BY started_at DESC LIMIT \$1$`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows(runColumns))

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordAttempt(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO attempts`).
		WithArgs("run-1", "parallel", 0, "Lionel Messi", "Inter Miami", "ok", "fast",
			"https://x/28003", "€30.00m", int64(420), "", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordAttempt(context.Background(), model.Attempt{
		RunID: "run-1", Pass: model.PassParallel, Name: "Lionel Messi", Affiliation: "Inter Miami",
		Status: model.StatusOK, Tier: model.TierFast, URL: "https://x/28003", RawValue: "€30.00m",
		DurationMs: 420, CreatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAttempts(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)

	cols := []string{"run_id", "pass", "row_index", "name", "affiliation", "status", "tier", "url", "raw_value", "duration_ms", "error", "created_at"}
	mock.ExpectQuery(`FROM attempts WHERE run_id = \$1 ORDER BY id`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("run-1", "retry", 7, "Pedri", "Barcelona", "error:browser", "fallback", "", "", int64(12), "chrome not found", now))

	attempts, err := s.ListAttempts(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, model.PassRetry, attempts[0].Pass)
	assert.Equal(t, 7, attempts[0].RowIndex)
	assert.Equal(t, model.ErrorStatus("browser"), attempts[0].Status)
	assert.Equal(t, model.TierFallback, attempts[0].Tier)
	assert.Equal(t, "chrome not found", attempts[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	closed := false
	s := &PostgresStore{closeFn: func() { closed = true }}
	require.NoError(t, s.Close())
	assert.True(t, closed)
}
