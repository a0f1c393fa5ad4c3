package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ragbench/internal/domain"
)

// RunSchema creates the run tables. It is idempotent.
const RunSchema = `
CREATE TABLE IF NOT EXISTS ragbench_runs (
	id UUID PRIMARY KEY,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	bench_path TEXT NOT NULL DEFAULT '',
	config JSONB,
	summary JSONB,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS ragbench_runs_status_created_idx ON ragbench_runs (status, created_at);
CREATE TABLE IF NOT EXISTS ragbench_run_items (
	run_id UUID NOT NULL REFERENCES ragbench_runs(id) ON DELETE CASCADE,
	cell TEXT NOT NULL DEFAULT '',
	seq INTEGER NOT NULL,
	item_id TEXT NOT NULL,
	record JSONB NOT NULL,
	PRIMARY KEY (run_id, cell, seq)
);
`

const runColumns = `id, kind, status, bench_path, config, summary, error_message, created_at, started_at, finished_at`

// RunRepository is the PostgreSQL run store.
type RunRepository struct {
	db        DB
	txManager domain.TransactionManager
}

var _ domain.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a run repository over db.
func NewRunRepository(db DB) *RunRepository {
	return &RunRepository{db: db, txManager: NewPostgresTransactionManager(db)}
}

// Migrate creates the run tables.
func (r *RunRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, RunSchema); err != nil {
		return fmt.Errorf("failed to migrate run tables: %w", err)
	}
	return nil
}

func (r *RunRepository) CreateRun(ctx context.Context, run *domain.RunRecord) error {
	query := `
		INSERT INTO ragbench_runs (id, kind, status, bench_path, config, created_at, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := executor(ctx, r.db).Exec(ctx, query,
		run.ID,
		string(run.Kind),
		string(run.Status),
		run.BenchPath,
		nullableJSON(run.Config),
		run.CreatedAt,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// AcquireNextQueued claims the oldest queued run. SKIP LOCKED lets several
// workers poll the same table without picking the same run.
func (r *RunRepository) AcquireNextQueued(ctx context.Context) (*domain.RunRecord, error) {
	query := `
		WITH next_run AS (
			SELECT id
			FROM ragbench_runs
			WHERE status = 'queued'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE ragbench_runs
		SET status = 'running', started_at = $1
		FROM next_run
		WHERE ragbench_runs.id = next_run.id
		RETURNING ragbench_runs.id, ragbench_runs.kind, ragbench_runs.status, ragbench_runs.bench_path,
			ragbench_runs.config, ragbench_runs.summary, ragbench_runs.error_message,
			ragbench_runs.created_at, ragbench_runs.started_at, ragbench_runs.finished_at
	`
	run, err := scanRun(executor(ctx, r.db).QueryRow(ctx, query, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to acquire next run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) FinishRun(ctx context.Context, id string, status domain.RunStatus, summary json.RawMessage, errMsg *string) error {
	query := `
		UPDATE ragbench_runs
		SET status = $1, summary = $2, error_message = $3, finished_at = $4
		WHERE id = $5
	`
	tag, err := executor(ctx, r.db).Exec(ctx, query, string(status), nullableJSON(summary), errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to finish run: run %s not found", id)
	}
	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM ragbench_runs WHERE id = $1`
	run, err := scanRun(executor(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM ragbench_runs ORDER BY created_at DESC LIMIT $1`
	rows, err := executor(ctx, r.db).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// InsertItems appends results after any already stored for the cell.
func (r *RunRepository) InsertItems(ctx context.Context, runID, cell string, results []domain.ItemResult) error {
	if len(results) == 0 {
		return nil
	}
	return r.txManager.RunInTx(ctx, func(ctx context.Context) error {
		exec := executor(ctx, r.db)

		var next int
		err := exec.QueryRow(ctx,
			`SELECT COALESCE(MAX(seq) + 1, 0) FROM ragbench_run_items WHERE run_id = $1 AND cell = $2`,
			runID, cell).Scan(&next)
		if err != nil {
			return fmt.Errorf("failed to read item sequence: %w", err)
		}

		query := `
			INSERT INTO ragbench_run_items (run_id, cell, seq, item_id, record)
			VALUES ($1, $2, $3, $4, $5)
		`
		for i, res := range results {
			record, err := json.Marshal(res)
			if err != nil {
				return fmt.Errorf("failed to marshal item %s: %w", res.ItemID, err)
			}
			if _, err := exec.Exec(ctx, query, runID, cell, next+i, res.ItemID, record); err != nil {
				return fmt.Errorf("failed to insert item %s: %w", res.ItemID, err)
			}
		}
		return nil
	})
}

func (r *RunRepository) ListItems(ctx context.Context, runID, cell string) ([]domain.ItemResult, error) {
	query := `
		SELECT record
		FROM ragbench_run_items
		WHERE run_id = $1 AND cell = $2
		ORDER BY seq ASC
	`
	rows, err := executor(ctx, r.db).Query(ctx, query, runID, cell)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var results []domain.ItemResult
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		var res domain.ItemResult
		if err := json.Unmarshal(record, &res); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return results, nil
}

func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var run domain.RunRecord
	var kind, status string
	var config, summary []byte
	var errMsg *string
	if err := row.Scan(
		&run.ID,
		&kind,
		&status,
		&run.BenchPath,
		&config,
		&summary,
		&errMsg,
		&run.CreatedAt,
		&run.StartedAt,
		&run.FinishedAt,
	); err != nil {
		return nil, err
	}
	run.Kind = domain.RunKind(kind)
	run.Status = domain.RunStatus(status)
	run.Config = config
	run.Summary = summary
	if errMsg != nil {
		run.Error = *errMsg
	}
	return &run, nil
}

func nullableJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
