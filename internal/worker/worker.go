package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"ragbench/internal/domain"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	jobTimeout          = 2 * time.Hour
	initialBackoff      = 1 * time.Second
	maxBackoff          = 5 * time.Minute
)

// RunExecutor executes one queued run and returns its summary.
type RunExecutor interface {
	Execute(ctx context.Context, run *domain.RunRecord) (json.RawMessage, error)
}

// JobWorker polls the run store for queued runs and executes them one at a time.
// Stop cancels the run in flight, which is then recorded as failed.
type JobWorker struct {
	runRepo  domain.RunRepository
	executor RunExecutor
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	backoff  time.Duration
}

func NewJobWorker(
	runRepo domain.RunRepository,
	executor RunExecutor,
	logger *slog.Logger,
) *JobWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobWorker{
		runRepo:  runRepo,
		executor: executor,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
	}
}

func (w *JobWorker) Start() {
	w.logger.Info("job_worker_started")
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()
}

// Stop cancels the current run and waits until its outcome has been recorded.
func (w *JobWorker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("job_worker_stopping")
		w.cancel()
		close(w.stopChan)
	})
	w.wg.Wait()
}

func (w *JobWorker) run() {
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processNextRun()
			if w.backoff > 0 {
				ticker.Reset(w.backoff)
			} else {
				ticker.Reset(defaultPollInterval)
			}
		}
	}
}

func (w *JobWorker) processNextRun() {
	ctx, cancel := context.WithTimeout(w.ctx, jobTimeout)
	defer cancel()

	run, err := w.runRepo.AcquireNextQueued(ctx)
	if err != nil {
		w.logger.Error("acquire_run_failed", slog.String("error", err.Error()))
		w.backoff = w.nextBackoff(w.backoff)
		return
	}
	if run == nil {
		return
	}

	w.logger.Info("run_started", slog.String("run_id", run.ID), slog.String("kind", string(run.Kind)))

	summary, runErr := w.executor.Execute(ctx, run)

	status := domain.RunStatusCompleted
	var errMsg *string
	if runErr != nil {
		status = domain.RunStatusFailed
		msg := runErr.Error()
		errMsg = &msg
		w.backoff = w.nextBackoff(w.backoff)
		w.logger.Warn("run_failed",
			slog.String("run_id", run.ID),
			slog.Duration("backoff", w.backoff),
			slog.String("error", runErr.Error()))
	} else {
		w.backoff = 0
		w.logger.Info("run_completed", slog.String("run_id", run.ID))
	}

	// The run context may have expired or been cancelled by Stop; record the outcome regardless.
	finishCtx, finishCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer finishCancel()
	if err := w.runRepo.FinishRun(finishCtx, run.ID, status, summary, errMsg); err != nil {
		w.logger.Error("finish_run_failed", slog.String("run_id", run.ID), slog.String("error", err.Error()))
	}
}

func (w *JobWorker) nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return initialBackoff
	}
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
