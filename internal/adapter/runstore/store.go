// Package runstore persists benchmark runs in a local SQLite file.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"ragbench/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	status        TEXT NOT NULL,
	bench_path    TEXT NOT NULL DEFAULT '',
	config_json   TEXT,
	summary_json  TEXT,
	error_message TEXT,
	created_at    TEXT NOT NULL,
	started_at    TEXT,
	finished_at   TEXT
);

CREATE INDEX IF NOT EXISTS runs_status_created ON runs (status, created_at);

CREATE TABLE IF NOT EXISTS run_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	cell        TEXT NOT NULL DEFAULT '',
	item_id     TEXT NOT NULL,
	record_json TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS run_items_run_cell ON run_items (run_id, cell);
`

// timeLayout has fixed-width fractions so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const runColumns = `id, kind, status, bench_path, config_json, summary_json, error_message, created_at, started_at, finished_at`

// Store is a domain.RunRepository on SQLite.
type Store struct {
	db *sql.DB
}

var _ domain.RunRepository = (*Store)(nil)

// NewStore opens (or creates) the database file and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateRun(ctx context.Context, run *domain.RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, bench_path, config_json, created_at, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), string(run.Status), run.BenchPath,
		nullableJSON(run.Config), formatTime(run.CreatedAt), formatTimePtr(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// AcquireNextQueued claims the oldest queued run in a single statement.
func (s *Store) AcquireNextQueued(ctx context.Context) (*domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE runs SET status = ?, started_at = ?
		 WHERE id = (SELECT id FROM runs WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1)
		 RETURNING `+runColumns,
		string(domain.RunStatusRunning), formatTime(time.Now().UTC()), string(domain.RunStatusQueued),
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire queued run: %w", err)
	}
	return run, nil
}

func (s *Store) FinishRun(ctx context.Context, id string, status domain.RunStatus, summary json.RawMessage, errMsg *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary_json = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		string(status), nullableJSON(summary), errMsg, formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: run %s not found", id)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (s *Store) InsertItems(ctx context.Context, runID, cell string, results []domain.ItemResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_items (run_id, cell, item_id, record_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range results {
		record, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal item %s: %w", res.ItemID, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, cell, res.ItemID, string(record)); err != nil {
			return fmt.Errorf("insert item %s: %w", res.ItemID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListItems(ctx context.Context, runID, cell string) ([]domain.ItemResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_json FROM run_items WHERE run_id = ? AND cell = ? ORDER BY id ASC`, runID, cell)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var results []domain.ItemResult
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		var res domain.ItemResult
		if err := json.Unmarshal([]byte(record), &res); err != nil {
			return nil, fmt.Errorf("unmarshal item: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.RunRecord, error) {
	var (
		run                     domain.RunRecord
		kind, status, created   string
		config, summary, errMsg sql.NullString
		started, finished       sql.NullString
	)
	if err := row.Scan(&run.ID, &kind, &status, &run.BenchPath, &config, &summary, &errMsg, &created, &started, &finished); err != nil {
		return nil, err
	}
	run.Kind = domain.RunKind(kind)
	run.Status = domain.RunStatus(status)
	if config.Valid {
		run.Config = json.RawMessage(config.String)
	}
	if summary.Valid {
		run.Summary = json.RawMessage(summary.String)
	}
	run.Error = errMsg.String

	var err error
	if run.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if run.StartedAt, err = parseTimePtr(started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = parseTimePtr(finished); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
