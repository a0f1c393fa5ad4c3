package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/domain"
	"ragbench/internal/infra/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Embedding:  config.EmbeddingConfig{Backend: "openai", Model: "text-embedding-3-small", Timeout: time.Second, BatchSize: 8},
		Index:      config.IndexConfig{Backend: "qdrant", Collection: "docs", ChunkMin: 10, ChunkMax: 100},
		Rerank:     config.RerankConfig{Enabled: true, Backend: "http", Model: "bge", URL: "http://localhost:1"},
		Retrieval:  config.RetrievalConfig{DenseTopK: 5, RerankTopN: 2},
		Thresholds: domain.Thresholds{Dense: 0.4, Rerank: 0.1},
		Sweep:      config.SweepConfig{Dense: []float64{0.1}, Rerank: []float64{0.2}},
		Generator:  config.ChatConfig{Backend: "openai", Model: "gpt-4.1-mini"},
		Judge:      config.ChatConfig{Backend: "ollama", Model: "llama3"},
		Providers: config.ProvidersConfig{
			OpenAI: config.ProviderConfig{APIKey: "sk-test"},
			Ollama: config.ProviderConfig{BaseURL: "http://localhost:11434"},
		},
		Worker:   config.WorkerConfig{Concurrency: 3},
		RunStore: config.RunStoreConfig{Backend: "sqlite", Path: filepath.Join(dir, "runs", "ragbench.db")},
		Output:   config.OutputConfig{Dir: dir},
	}
}

func TestEvaluationConfig(t *testing.T) {
	c := New(testConfig(t), nil)

	ec := c.EvaluationConfig()
	assert.Equal(t, domain.RetrievalParams{DenseTopK: 5, RerankEnabled: true, RerankTopN: 2}, ec.Retrieval)
	assert.Equal(t, domain.Thresholds{Dense: 0.4, Rerank: 0.1}, ec.Thresholds)
	assert.Equal(t, 3, c.Pool().Concurrency())
	assert.Equal(t, []float64{0.1}, c.SweepGrid().Dense)
}

func TestNewEmbedder(t *testing.T) {
	c := New(testConfig(t), nil)

	emb, err := c.Embedder()
	require.NoError(t, err)
	assert.Equal(t, "openai:text-embedding-3-small", emb.Name())
	assert.Equal(t, 1536, emb.Dimension())

	emb, err = c.NewEmbedder("ollama", "nomic-embed-text", 768)
	require.NoError(t, err)
	assert.Equal(t, 768, emb.Dimension())

	_, err = c.NewEmbedder("ollama", "nomic-embed-text", 0)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = c.NewEmbedder("cohere", "embed-v3", 1024)
	assert.ErrorIs(t, err, domain.ErrBackendUnsupported)
	assert.Equal(t, domain.ErrorKindConfiguration, domain.KindOf(err))
}

func TestMissingAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.OpenAI.APIKey = ""
	c := New(cfg, nil)

	_, err := c.Embedder()
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = c.Generator("")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestChatModelsAreShared(t *testing.T) {
	c := New(testConfig(t), nil)

	g1, err := c.Generator("gpt-4o")
	require.NoError(t, err)
	g2, err := c.Generator("")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", g1.Model())
	assert.Equal(t, "gpt-4.1-mini", g2.Model())
	assert.Len(t, c.chats, 1)

	judge, err := c.Judge()
	require.NoError(t, err)
	assert.Equal(t, "llama3", judge.Model())
	assert.Len(t, c.chats, 2)

	_, err = c.ChatModel(config.ChatConfig{Backend: "gemini"})
	assert.ErrorIs(t, err, domain.ErrBackendUnsupported)
}

func TestReranker(t *testing.T) {
	cfg := testConfig(t)
	c := New(cfg, nil)

	r, err := c.Reranker()
	require.NoError(t, err)
	assert.Equal(t, "bge", r.ModelName())

	cfg.Rerank.Enabled = false
	r, err = c.Reranker()
	require.NoError(t, err)
	assert.Nil(t, r)

	cfg.Rerank.Enabled = true
	cfg.Rerank.Backend = "cohere"
	_, err = c.Reranker()
	assert.ErrorIs(t, err, domain.ErrBackendUnsupported)
}

func TestStoreUnsupportedBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Backend = "milvus"
	c := New(cfg, nil)

	_, err := c.Store(context.Background(), "docs", 8)
	assert.ErrorIs(t, err, domain.ErrBackendUnsupported)
}

func TestPgvectorRequiresDSN(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Backend = "pgvector"
	c := New(cfg, nil)

	_, err := c.Store(context.Background(), "docs", 8)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRunRepositorySQLite(t *testing.T) {
	c := New(testConfig(t), nil)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	repo, err := c.RunRepository(ctx)
	require.NoError(t, err)
	require.NotNil(t, repo)

	again, err := c.RunRepository(ctx)
	require.NoError(t, err)
	assert.Same(t, repo, again)

	rec, err := c.Recorder(ctx)
	require.NoError(t, err)
	assert.True(t, rec.Enabled())
}

func TestRunRepositoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RunStore.Backend = "none"
	c := New(cfg, nil)

	repo, err := c.RunRepository(context.Background())
	require.NoError(t, err)
	assert.Nil(t, repo)

	rec, err := c.Recorder(context.Background())
	require.NoError(t, err)
	assert.False(t, rec.Enabled())
}

func TestRunRepositoryUnsupported(t *testing.T) {
	cfg := testConfig(t)
	cfg.RunStore.Backend = "mysql"
	c := New(cfg, nil)

	_, err := c.RunRepository(context.Background())
	assert.ErrorIs(t, err, domain.ErrBackendUnsupported)
}

func TestIndexCorpusRejectsBadChunking(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.ChunkMin = 200
	c := New(cfg, nil)

	_, err := c.IndexCorpus(context.Background())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCompareModelsNeedsModels(t *testing.T) {
	c := New(testConfig(t), nil)

	_, err := c.CompareModels(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCloseWithoutConnections(t *testing.T) {
	c := New(testConfig(t), nil)
	assert.NoError(t, c.Close())
}
