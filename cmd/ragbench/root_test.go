package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/adapter/runstore"
	"ragbench/internal/domain"
)

type testEnv struct {
	dir    string
	cfg    string
	dbPath string
}

func newTestEnv(t *testing.T, runStore string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{dir: dir, cfg: filepath.Join(dir, "ragbench.yaml"), dbPath: filepath.Join(dir, "runs.db")}
	yaml := fmt.Sprintf(`log:
  level: error
output:
  dir: %s
  color: false
run_store:
  backend: %s
  path: %s
`, filepath.Join(dir, "results"), runStore, env.dbPath)
	require.NoError(t, os.WriteFile(env.cfg, []byte(yaml), 0o644))
	return env
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := execute(context.Background(), args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func seedRun(t *testing.T, dbPath string) string {
	t.Helper()
	store, err := runstore.NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &domain.RunRecord{
		ID:        "run-1",
		Kind:      domain.RunKindBenchmark,
		Status:    domain.RunStatusRunning,
		BenchPath: "bench.jsonl",
		CreatedAt: started,
		StartedAt: &started,
	}
	require.NoError(t, store.CreateRun(ctx, run))
	require.NoError(t, store.InsertItems(ctx, run.ID, "", []domain.ItemResult{
		{ItemID: "q1", IsAnswerable: true, Outcome: domain.OutcomeAnswerSuccess},
		{ItemID: "q2", Outcome: domain.OutcomeHallucination},
	}))
	summary, err := json.Marshal(domain.MetricsSummary{
		Counts:            domain.OutcomeCounts{Answerable: 1, Unanswerable: 1, AnswerSuccess: 1, Hallucination: 1},
		AnswerSuccessRate: 1,
		HallucinationRate: 1,
	})
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, run.ID, domain.RunStatusCompleted, summary, nil))
	return run.ID
}

func TestHelpListsCommands(t *testing.T) {
	out, _, err := runCLI(t, "--help")
	require.NoError(t, err)

	for _, cmd := range []string{"run", "sweep", "compare-models", "compare-embeddings", "index", "serve", "runs"} {
		assert.Contains(t, out, cmd)
	}
}

func TestUnknownCommand(t *testing.T) {
	_, _, err := runCLI(t, "nonexistent-command")
	assert.Error(t, err)
}

func TestRunRequiresBench(t *testing.T) {
	env := newTestEnv(t, "none")
	_, _, err := runCLI(t, "run", "--config", env.cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bench")
}

func TestRunMissingBenchFile(t *testing.T) {
	env := newTestEnv(t, "none")
	_, _, err := runCLI(t, "run", "--config", env.cfg, "--bench", filepath.Join(env.dir, "missing.jsonl"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestIndexMissingCorpus(t *testing.T) {
	env := newTestEnv(t, "none")
	_, _, err := runCLI(t, "index", "--config", env.cfg, "--corpus", filepath.Join(env.dir, "missing.jsonl"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSweepRejectsOutOfRangeGrid(t *testing.T) {
	env := newTestEnv(t, "none")
	bench := filepath.Join(env.dir, "bench.jsonl")
	require.NoError(t, os.WriteFile(bench, []byte(`{"id":"q1","question":"What?"}`+"\n"), 0o644))

	_, _, err := runCLI(t, "sweep", "--config", env.cfg, "--bench", bench, "--dense", "0.2,1.5")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestInvalidColorMode(t *testing.T) {
	env := newTestEnv(t, "none")
	_, _, err := runCLI(t, "runs", "list", "--config", env.cfg, "--color", "sometimes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid color mode")
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("thresholds:\n  dense: 2\n"), 0o644))

	_, _, err := runCLI(t, "runs", "list", "--config", cfg)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRunsListEmpty(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	out, _, err := runCLI(t, "runs", "list", "--config", env.cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "no runs stored")
}

func TestRunsListAndShow(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	id := seedRun(t, env.dbPath)

	out, _, err := runCLI(t, "runs", "list", "--config", env.cfg)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "completed")

	out, _, err = runCLI(t, "runs", "show", id, "--config", env.cfg, "--items")
	require.NoError(t, err)
	assert.Contains(t, out, "answer_success")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "q2")
	assert.Contains(t, out, "hallucination")

	out, _, err = runCLI(t, "runs", "show", id, "--config", env.cfg, "--json", "--items")
	require.NoError(t, err)
	var got struct {
		ID     string              `json:"id"`
		Status domain.RunStatus    `json:"status"`
		Items  []domain.ItemResult `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.Len(t, got.Items, 2)
}

func TestRunsShowNotFound(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	_, _, err := runCLI(t, "runs", "show", "nope", "--config", env.cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunsWithoutStore(t *testing.T) {
	env := newTestEnv(t, "none")
	_, _, err := runCLI(t, "runs", "list", "--config", env.cfg)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
