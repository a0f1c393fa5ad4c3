package domain

import (
	"context"
	"encoding/json"
	"time"
)

// RunKind names the command that produced a run.
type RunKind string

const (
	RunKindBenchmark         RunKind = "run"
	RunKindSweep             RunKind = "sweep"
	RunKindCompareModels     RunKind = "compare_models"
	RunKindCompareEmbeddings RunKind = "compare_embeddings"
)

// RunStatus is the lifecycle state of a stored run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is one persisted benchmark execution.
type RunRecord struct {
	ID        string          `json:"id"`
	Kind      RunKind         `json:"kind"`
	Status    RunStatus       `json:"status"`
	BenchPath string          `json:"bench_path"`
	Config    json.RawMessage `json:"config,omitempty"`
	// Summary holds a MetricsSummary, a []SweepCell or a comparison table depending on Kind.
	Summary    json.RawMessage `json:"summary,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// RunRepository persists runs and their per-item records.
type RunRepository interface {
	// CreateRun inserts a run. Runs created with RunStatusQueued are picked up by the job worker.
	CreateRun(ctx context.Context, run *RunRecord) error

	// AcquireNextQueued marks the oldest queued run as running and returns it.
	// Returns nil, nil if no run is queued.
	AcquireNextQueued(ctx context.Context) (*RunRecord, error)

	// FinishRun stores the final status, summary and error message.
	FinishRun(ctx context.Context, id string, status RunStatus, summary json.RawMessage, errMsg *string) error

	// GetRun returns nil, nil if not found.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// InsertItems stores item results under a run and sweep cell ("" for plain runs).
	InsertItems(ctx context.Context, runID, cell string, results []ItemResult) error

	// ListItems returns stored item results for a run cell in insertion order.
	ListItems(ctx context.Context, runID, cell string) ([]ItemResult, error)
}

// TransactionManager defines the interface for handling database transactions.
type TransactionManager interface {
	// RunInTx executes the given function within a transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
