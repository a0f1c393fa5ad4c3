// Package di builds the gateways and usecases from configuration.
package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	qdrantsdk "github.com/qdrant/go-client/qdrant"

	"ragbench/internal/adapter/anthropic"
	"ragbench/internal/adapter/benchfile"
	"ragbench/internal/adapter/crossencoder"
	"ragbench/internal/adapter/ollama"
	"ragbench/internal/adapter/openai"
	"ragbench/internal/adapter/qdrant"
	"ragbench/internal/adapter/rag_http"
	"ragbench/internal/adapter/repository"
	"ragbench/internal/adapter/runstore"
	"ragbench/internal/domain"
	"ragbench/internal/indexing"
	"ragbench/internal/infra"
	"ragbench/internal/infra/config"
	"ragbench/internal/usecase"
	"ragbench/internal/usecase/generation"
	"ragbench/internal/usecase/retrieval"
	"ragbench/internal/usecase/summary"
	"ragbench/internal/worker"
)

// VectorStore is a collection that can be both searched and written.
type VectorStore interface {
	domain.VectorIndex
	domain.IndexWriter
	// ResolveDimension reads the vector size of an existing collection.
	ResolveDimension(ctx context.Context) error
}

// Container lazily builds and caches the components a command needs, so that
// commands never open connections or demand credentials they do not use.
type Container struct {
	cfg    *config.Config
	logger *slog.Logger

	mu        sync.Mutex
	closers   []func() error
	qdrant    *qdrantsdk.Client
	indexDB   *pgxpool.Pool
	runDB     *pgxpool.Pool
	chats     map[string]domain.ChatModel
	runRepo   domain.RunRepository
	runLoaded bool
	pool      *worker.Pool
	pricing   *summary.Pricing
}

// New creates a container. Nothing is dialed until a component is requested.
func New(cfg *config.Config, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{
		cfg:     cfg,
		logger:  logger,
		chats:   make(map[string]domain.ChatModel),
		pool:    worker.NewPool(worker.PoolConfig{Concurrency: cfg.Worker.Concurrency, RatePerSecond: cfg.Worker.RatePerSecond, Burst: cfg.Worker.Burst}),
		pricing: summary.NewPricing(cfg.Pricing),
	}
}

// Config returns the configuration the container was built from.
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Close releases every connection opened by the container, newest first.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

func unsupported(what, backend string) error {
	return fmt.Errorf("%w: %w: %s %q", domain.ErrConfiguration, domain.ErrBackendUnsupported, what, backend)
}

// Pool is the shared per-item worker pool.
func (c *Container) Pool() *worker.Pool {
	return c.pool
}

// EvaluationConfig returns retrieval parameters and thresholds from the config.
func (c *Container) EvaluationConfig() usecase.EvaluationConfig {
	return usecase.EvaluationConfig{
		Retrieval: domain.RetrievalParams{
			DenseTopK:     c.cfg.Retrieval.DenseTopK,
			RerankEnabled: c.cfg.Rerank.Enabled,
			RerankTopN:    c.cfg.Retrieval.RerankTopN,
		},
		Thresholds: c.cfg.Thresholds,
	}
}

// Embedder builds the configured embedding gateway.
func (c *Container) Embedder() (domain.Embedder, error) {
	e := c.cfg.Embedding
	return c.NewEmbedder(e.Backend, e.Model, e.Dimension)
}

// NewEmbedder builds an embedding gateway for backend and model.
func (c *Container) NewEmbedder(backend, model string, dimension int) (domain.Embedder, error) {
	timeout := c.cfg.Embedding.Timeout
	switch backend {
	case "openai":
		p := c.cfg.Providers.OpenAI
		emb, err := openai.NewEmbedder(openai.Config{APIKey: p.APIKey, BaseURL: p.BaseURL, Timeout: timeout}, model, dimension)
		if err != nil {
			return nil, err
		}
		return emb, nil
	case "ollama":
		if dimension <= 0 {
			return nil, fmt.Errorf("%w: embedding dimension is required for ollama model %q", domain.ErrConfiguration, model)
		}
		return ollama.NewEmbedder(c.cfg.Providers.Ollama.BaseURL, model, dimension, timeout, c.logger), nil
	default:
		return nil, unsupported("embedding backend", backend)
	}
}

// Store binds collection on the configured index backend.
func (c *Container) Store(ctx context.Context, collection string, dimension int) (VectorStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.cfg.Index.Backend {
	case "qdrant":
		if c.qdrant == nil {
			q := c.cfg.Index.Qdrant
			client, err := qdrant.Dial(qdrant.Config{Host: q.Host, Port: q.Port, APIKey: q.APIKey, UseTLS: q.UseTLS})
			if err != nil {
				return nil, err
			}
			c.qdrant = client
			c.onClose(client.Close)
		}
		return qdrant.NewStore(c.qdrant, collection, dimension), nil
	case "pgvector":
		if c.indexDB == nil {
			pg := c.cfg.Index.Postgres
			db, err := infra.NewPostgresDB(ctx, infra.PoolConfig{DSN: pg.DSN, MaxConns: pg.MaxConns, MinConns: pg.MinConns, Vector: true})
			if err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
			}
			c.indexDB = db
			c.onClose(func() error { db.Close(); return nil })
		}
		return repository.NewPgvectorStore(c.indexDB, collection, dimension), nil
	default:
		return nil, unsupported("index backend", c.cfg.Index.Backend)
	}
}

// Reranker builds the cross-encoder reranker, or returns nil when rerank is disabled.
func (c *Container) Reranker() (domain.Reranker, error) {
	r := c.cfg.Rerank
	if !r.Enabled {
		return nil, nil
	}
	switch r.Backend {
	case "http", "":
		scorer := crossencoder.NewScorer(r.URL, r.Model, r.Timeout, c.logger, nil)
		return retrieval.NewCrossEncoderReranker(scorer, c.logger), nil
	default:
		return nil, unsupported("rerank backend", r.Backend)
	}
}

// Retriever builds the retrieval orchestrator over the configured embedder and collection.
func (c *Container) Retriever(ctx context.Context) (*retrieval.Orchestrator, error) {
	emb, err := c.Embedder()
	if err != nil {
		return nil, err
	}
	return c.retrieverFor(ctx, emb, c.cfg.Index.Collection)
}

func (c *Container) retrieverFor(ctx context.Context, emb domain.Embedder, collection string) (*retrieval.Orchestrator, error) {
	store, err := c.Store(ctx, collection, emb.Dimension())
	if err != nil {
		return nil, err
	}
	// The orchestrator compares query vectors against the collection's own size.
	if err := store.ResolveDimension(ctx); err != nil {
		return nil, err
	}
	reranker, err := c.Reranker()
	if err != nil {
		return nil, err
	}
	var opts []retrieval.Option
	if reranker != nil {
		opts = append(opts, retrieval.WithReranker(reranker))
		c.logger.Info("reranker_enabled",
			slog.String("url", c.cfg.Rerank.URL),
			slog.String("model", c.cfg.Rerank.Model))
	}
	return retrieval.NewOrchestrator(emb, store, c.logger, opts...), nil
}

// ChatModel returns the chat gateway for a generator or judge configuration.
func (c *Container) ChatModel(cc config.ChatConfig) (domain.ChatModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cc.Backend + "|" + cc.Timeout.String()
	if m, ok := c.chats[key]; ok {
		return m, nil
	}

	var (
		m   domain.ChatModel
		err error
	)
	switch cc.Backend {
	case "openai":
		p := c.cfg.Providers.OpenAI
		m, err = openai.NewChatModel(openai.Config{APIKey: p.APIKey, BaseURL: p.BaseURL, Timeout: cc.Timeout})
	case "anthropic":
		p := c.cfg.Providers.Anthropic
		m, err = anthropic.NewChatModel(anthropic.Config{APIKey: p.APIKey, BaseURL: p.BaseURL, Timeout: cc.Timeout, MaxRetries: p.MaxRetries})
	case "ollama":
		m = ollama.NewChatModel(c.cfg.Providers.Ollama.BaseURL, cc.Timeout)
	default:
		return nil, unsupported("chat backend", cc.Backend)
	}
	if err != nil {
		return nil, err
	}
	c.chats[key] = m
	return m, nil
}

// Generator builds the answer generator for model on the generator backend.
// An empty model uses the configured generator model.
func (c *Container) Generator(model string) (domain.Generator, error) {
	gc := c.cfg.Generator
	if model == "" {
		model = gc.Model
	}
	chat, err := c.ChatModel(gc)
	if err != nil {
		return nil, err
	}
	return generation.NewChatGenerator(chat, model, gc.MaxTokens, c.logger), nil
}

// Judge builds the faithfulness judge.
func (c *Container) Judge() (domain.Judge, error) {
	jc := c.cfg.Judge
	chat, err := c.ChatModel(jc)
	if err != nil {
		return nil, err
	}
	return generation.NewLLMJudge(chat, jc.Model, jc.MaxTokens, c.logger), nil
}

// Evaluator wires retrieval, generation and judging for per-item evaluation.
func (c *Container) Evaluator(ctx context.Context) (*usecase.Evaluator, *retrieval.Orchestrator, error) {
	evalCfg := c.EvaluationConfig()
	if err := evalCfg.Validate(); err != nil {
		return nil, nil, err
	}
	retriever, err := c.Retriever(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := retriever.ValidateParams(evalCfg.Retrieval); err != nil {
		return nil, nil, err
	}
	gen, err := c.Generator("")
	if err != nil {
		return nil, nil, err
	}
	judge, err := c.Judge()
	if err != nil {
		return nil, nil, err
	}
	ev := usecase.NewEvaluator(retriever, gen, judge, c.pricing, evalCfg.Retrieval, c.logger)
	return ev, retriever, nil
}

// BenchmarkRunner wires the per-item runner.
func (c *Container) BenchmarkRunner(ctx context.Context) (*usecase.BenchmarkRunner, error) {
	ev, _, err := c.Evaluator(ctx)
	if err != nil {
		return nil, err
	}
	return usecase.NewBenchmarkRunner(ev, c.pool, c.logger), nil
}

// SweepRunner wires the threshold sweep on top of runner.
func (c *Container) SweepRunner(runner *usecase.BenchmarkRunner) *usecase.SweepRunner {
	return usecase.NewSweepRunner(runner, c.cfg.Sweep.CellConcurrency, c.logger)
}

// SweepGrid returns the configured grid.
func (c *Container) SweepGrid() usecase.SweepGrid {
	return usecase.SweepGrid{Dense: c.cfg.Sweep.Dense, Rerank: c.cfg.Sweep.Rerank}
}

// CompareModels wires the generator comparison. Empty models uses compare.models.
func (c *Container) CompareModels(ctx context.Context, models []string) (*usecase.CompareModelsUsecase, error) {
	if len(models) == 0 {
		models = c.cfg.Compare.Models
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: no models to compare", domain.ErrConfiguration)
	}
	runner, err := c.BenchmarkRunner(ctx)
	if err != nil {
		return nil, err
	}
	gens := make([]domain.Generator, 0, len(models))
	for _, m := range models {
		g, err := c.Generator(m)
		if err != nil {
			return nil, err
		}
		gens = append(gens, g)
	}
	return usecase.NewCompareModelsUsecase(runner, gens, c.logger), nil
}

// CompareEmbeddings wires the recall comparison. Without compare.embeddings the
// configured embedder and collection form the only target.
func (c *Container) CompareEmbeddings(ctx context.Context) (*usecase.CompareEmbeddingsUsecase, error) {
	evalCfg := c.EvaluationConfig()
	var targets []usecase.EmbeddingTarget

	if len(c.cfg.Compare.Embeddings) == 0 {
		emb, err := c.Embedder()
		if err != nil {
			return nil, err
		}
		r, err := c.retrieverFor(ctx, emb, c.cfg.Index.Collection)
		if err != nil {
			return nil, err
		}
		targets = append(targets, usecase.EmbeddingTarget{Label: emb.Name(), Collection: c.cfg.Index.Collection, Retriever: r})
	}
	for _, t := range c.cfg.Compare.Embeddings {
		emb, err := c.NewEmbedder(t.Backend, t.Model, t.Dimension)
		if err != nil {
			return nil, fmt.Errorf("embedding target %s: %w", t.Label, err)
		}
		r, err := c.retrieverFor(ctx, emb, t.Collection)
		if err != nil {
			return nil, fmt.Errorf("embedding target %s: %w", t.Label, err)
		}
		if err := r.ValidateParams(evalCfg.Retrieval); err != nil {
			return nil, err
		}
		targets = append(targets, usecase.EmbeddingTarget{Label: t.Label, Collection: t.Collection, Retriever: r})
	}
	return usecase.NewCompareEmbeddingsUsecase(targets, evalCfg.Retrieval, c.cfg.Compare.Ks, c.pool, c.logger), nil
}

// IndexCorpus wires the indexer for the configured collection. The cursor lives at
// config.CursorPath and embeddings are memoized in an LRU keyed by passage hash.
func (c *Container) IndexCorpus(ctx context.Context) (*usecase.IndexCorpusUsecase, error) {
	chunkCfg := domain.ChunkerConfig{MinLength: c.cfg.Index.ChunkMin, MaxLength: c.cfg.Index.ChunkMax}
	if err := chunkCfg.Validate(); err != nil {
		return nil, err
	}
	emb, err := c.Embedder()
	if err != nil {
		return nil, err
	}
	store, err := c.Store(ctx, c.cfg.Index.Collection, emb.Dimension())
	if err != nil {
		return nil, err
	}

	var cache *lru.Cache[string, []float32]
	if size := c.cfg.Embedding.CacheSize; size > 0 {
		cache, err = lru.New[string, []float32](size)
		if err != nil {
			return nil, fmt.Errorf("%w: embedding cache: %w", domain.ErrConfiguration, err)
		}
	}

	cursorPath := c.cfg.CursorPath()
	if err := os.MkdirAll(filepath.Dir(cursorPath), 0o755); err != nil {
		return nil, fmt.Errorf("create cursor directory: %w", err)
	}
	return usecase.NewIndexCorpusUsecase(emb, store, domain.NewChunker(chunkCfg), cache, indexing.NewCursorManager(cursorPath), c.logger), nil
}

// RunRepository opens the configured run store. It returns nil, nil when the run
// store is disabled.
func (c *Container) RunRepository(ctx context.Context) (domain.RunRepository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runLoaded {
		return c.runRepo, nil
	}

	rs := c.cfg.RunStore
	switch rs.Backend {
	case "none":
	case "sqlite", "":
		if err := os.MkdirAll(filepath.Dir(rs.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create run store directory: %w", err)
		}
		store, err := runstore.NewStore(rs.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: run store: %w", domain.ErrConfiguration, err)
		}
		c.onClose(store.Close)
		c.runRepo = store
	case "postgres":
		db, err := infra.NewPostgresDB(ctx, infra.PoolConfig{DSN: rs.DSN})
		if err != nil {
			return nil, err
		}
		c.runDB = db
		c.onClose(func() error { db.Close(); return nil })
		repo := repository.NewRunRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("%w: run store migrate: %w", domain.ErrConfiguration, err)
		}
		c.runRepo = repo
	default:
		return nil, unsupported("run store backend", rs.Backend)
	}
	c.runLoaded = true
	return c.runRepo, nil
}

// Recorder wraps the run store. The recorder is a no-op when the store is disabled.
func (c *Container) Recorder(ctx context.Context) (*usecase.RunRecorder, error) {
	repo, err := c.RunRepository(ctx)
	if err != nil {
		return nil, err
	}
	return usecase.NewRunRecorder(repo, c.logger), nil
}

// Server holds the HTTP server and the optional queued-run worker.
type Server struct {
	Handler *rag_http.Handler
	Worker  *worker.JobWorker
	Checks  []rag_http.ReadinessCheck
}

// Server wires the HTTP handler, readiness checks and, when enabled and a run
// store exists, the worker that executes queued runs.
func (c *Container) Server(ctx context.Context) (*Server, error) {
	ev, retriever, err := c.Evaluator(ctx)
	if err != nil {
		return nil, err
	}
	repo, err := c.RunRepository(ctx)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		Handler: rag_http.NewHandler(retriever, ev, repo, c.EvaluationConfig(), c.logger),
		Checks:  c.readinessChecks(),
	}
	if repo != nil && c.cfg.Server.Worker {
		runner := usecase.NewBenchmarkRunner(ev, c.pool, c.logger)
		recorder := usecase.NewRunRecorder(repo, c.logger)
		executor := usecase.NewRunExecutor(benchfile.NewLoader(), runner, c.SweepRunner(runner), recorder)
		srv.Worker = worker.NewJobWorker(repo, executor, c.logger)
	}
	return srv, nil
}

func (c *Container) readinessChecks() []rag_http.ReadinessCheck {
	c.mu.Lock()
	defer c.mu.Unlock()
	var checks []rag_http.ReadinessCheck
	if c.indexDB != nil {
		checks = append(checks, rag_http.ReadinessCheck{Name: "index_db", Check: c.indexDB.Ping})
	}
	if c.runDB != nil {
		checks = append(checks, rag_http.ReadinessCheck{Name: "run_db", Check: c.runDB.Ping})
	}
	if c.qdrant != nil {
		client := c.qdrant
		checks = append(checks, rag_http.ReadinessCheck{Name: "qdrant", Check: func(ctx context.Context) error {
			_, err := client.HealthCheck(ctx)
			return err
		}})
	}
	return checks
}
