package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ragbench/internal/domain"
)

// RunRecorder persists runs and item results. A nil repository turns every call
// into a no-op so commands work without a run store.
type RunRecorder struct {
	repo   domain.RunRepository
	logger *slog.Logger
}

// NewRunRecorder creates a recorder over repo.
func NewRunRecorder(repo domain.RunRepository, logger *slog.Logger) *RunRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunRecorder{repo: repo, logger: logger}
}

// Enabled reports whether runs are persisted.
func (r *RunRecorder) Enabled() bool {
	return r != nil && r.repo != nil
}

// Start creates a run record in the given status with a fresh ID.
func (r *RunRecorder) Start(ctx context.Context, kind domain.RunKind, status domain.RunStatus, benchPath string, cfg any) (*domain.RunRecord, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal run config: %w", err)
	}
	now := time.Now().UTC()
	run := &domain.RunRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    status,
		BenchPath: benchPath,
		Config:    raw,
		CreatedAt: now,
	}
	if status == domain.RunStatusRunning {
		run.StartedAt = &now
	}
	if !r.Enabled() {
		return run, nil
	}
	if err := r.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// SaveItems stores results under runID and cell.
func (r *RunRecorder) SaveItems(ctx context.Context, runID, cell string, results []domain.ItemResult) error {
	if !r.Enabled() || len(results) == 0 {
		return nil
	}
	if err := r.repo.InsertItems(ctx, runID, cell, results); err != nil {
		return fmt.Errorf("insert run items: %w", err)
	}
	return nil
}

// Finish marks the run completed, or failed when runErr is non-nil.
func (r *RunRecorder) Finish(ctx context.Context, runID string, summary any, runErr error) error {
	if !r.Enabled() {
		return nil
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	status := domain.RunStatusCompleted
	var errMsg *string
	if runErr != nil {
		status = domain.RunStatusFailed
		msg := runErr.Error()
		errMsg = &msg
	}
	if err := r.repo.FinishRun(ctx, runID, status, raw, errMsg); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	r.logger.InfoContext(ctx, "run_recorded", slog.String("run_id", runID), slog.String("status", string(status)))
	return nil
}
