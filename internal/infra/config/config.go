// Package config loads the ragbench configuration from a YAML file, the
// environment and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ragbench/internal/domain"
	"ragbench/internal/usecase/summary"
)

// EnvPrefix prefixes every environment override, e.g. RAGBENCH_RETRIEVAL_DENSE_TOP_K.
const EnvPrefix = "RAGBENCH"

// keyDelimiter separates nested viper keys. Model names such as gpt-4.1-mini
// contain dots, so pricing keys cannot use viper's default ".".
const keyDelimiter = "::"

// Config enumerates every option of the benchmark.
type Config struct {
	Log        LogConfig                `mapstructure:"log"`
	Embedding  EmbeddingConfig          `mapstructure:"embedding"`
	Index      IndexConfig              `mapstructure:"index"`
	Rerank     RerankConfig             `mapstructure:"rerank"`
	Retrieval  RetrievalConfig          `mapstructure:"retrieval"`
	Thresholds domain.Thresholds        `mapstructure:"thresholds"`
	Sweep      SweepConfig              `mapstructure:"sweep"`
	Generator  ChatConfig               `mapstructure:"generator"`
	Judge      ChatConfig               `mapstructure:"judge"`
	Compare    CompareConfig            `mapstructure:"compare"`
	Providers  ProvidersConfig          `mapstructure:"providers"`
	Worker     WorkerConfig             `mapstructure:"worker"`
	RunStore   RunStoreConfig           `mapstructure:"run_store"`
	Output     OutputConfig             `mapstructure:"output"`
	Server     ServerConfig             `mapstructure:"server"`
	Telemetry  TelemetryConfig          `mapstructure:"telemetry"`
	Pricing    map[string]summary.Price `mapstructure:"pricing"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// EmbeddingConfig selects the query/passage embedding backend.
type EmbeddingConfig struct {
	Backend   string        `mapstructure:"backend" validate:"required"`
	Model     string        `mapstructure:"model" validate:"required"`
	Dimension int           `mapstructure:"dimension" validate:"gte=0"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// BatchSize is the number of passages per embedding call when indexing.
	BatchSize int `mapstructure:"batch_size" validate:"gt=0"`
	CacheSize int `mapstructure:"cache_size" validate:"gte=0"`
}

// IndexConfig selects the vector index backend and collection.
type IndexConfig struct {
	Backend    string         `mapstructure:"backend" validate:"required"`
	Collection string         `mapstructure:"collection" validate:"required"`
	Qdrant     QdrantConfig   `mapstructure:"qdrant"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
	CursorPath string         `mapstructure:"cursor_path"`
	ChunkMin   int            `mapstructure:"chunk_min" validate:"gte=0"`
	ChunkMax   int            `mapstructure:"chunk_max" validate:"gte=0"`
}

// QdrantConfig is the gRPC endpoint of a Qdrant server.
type QdrantConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	UseTLS bool   `mapstructure:"use_tls"`
}

// PostgresConfig is a pgvector-enabled PostgreSQL database.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// RerankConfig configures the cross-encoder stage.
type RerankConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"`
	Model   string        `mapstructure:"model"`
	URL     string        `mapstructure:"url" validate:"required_if=Enabled true"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RetrievalConfig sizes the candidate lists.
type RetrievalConfig struct {
	DenseTopK  int `mapstructure:"dense_top_k"`
	RerankTopN int `mapstructure:"rerank_top_n"`
}

// SweepConfig is the threshold grid evaluated by the sweep command.
type SweepConfig struct {
	Dense  []float64 `mapstructure:"dense"`
	Rerank []float64 `mapstructure:"rerank"`
	// CellConcurrency is the number of grid cells evaluated at once.
	CellConcurrency int `mapstructure:"cell_concurrency" validate:"gte=0"`
}

// ChatConfig selects a chat model used for generation or judging.
type ChatConfig struct {
	Backend   string        `mapstructure:"backend" validate:"oneof=openai anthropic ollama"`
	Model     string        `mapstructure:"model" validate:"required"`
	MaxTokens int           `mapstructure:"max_tokens" validate:"gte=0"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// CompareConfig lists the alternatives compared by the compare commands.
type CompareConfig struct {
	// Models are generator model names; they share the generator backend.
	Models []string `mapstructure:"models"`
	// Embeddings pairs an embedding model with the collection built from it.
	Embeddings []EmbeddingTargetConfig `mapstructure:"embeddings" validate:"dive"`
	Ks         []int                   `mapstructure:"ks"`
}

// EmbeddingTargetConfig is one collection/embedding pair for recall comparison.
type EmbeddingTargetConfig struct {
	Label      string `mapstructure:"label" validate:"required"`
	Backend    string `mapstructure:"backend" validate:"required"`
	Model      string `mapstructure:"model" validate:"required"`
	Dimension  int    `mapstructure:"dimension" validate:"gte=0"`
	Collection string `mapstructure:"collection" validate:"required"`
}

// ProvidersConfig holds credentials and endpoints shared by the gateways.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	Ollama    ProviderConfig `mapstructure:"ollama"`
}

// ProviderConfig is one API endpoint.
type ProviderConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// WorkerConfig bounds per-item parallelism and queued-run polling.
type WorkerConfig struct {
	Concurrency   int     `mapstructure:"concurrency" validate:"gte=1"`
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"gte=0"`
	Burst         int     `mapstructure:"burst" validate:"gte=0"`
}

// RunStoreConfig selects where runs are persisted.
type RunStoreConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=sqlite postgres none"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

// OutputConfig controls result files and terminal rendering.
type OutputConfig struct {
	Dir   string `mapstructure:"dir"`
	Color bool   `mapstructure:"color"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Worker          bool          `mapstructure:"worker"`
}

// TelemetryConfig controls OTLP export.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

// Load reads .env (if present), then cfgFile or .ragbench.yaml, then RAGBENCH_*
// environment variables over the defaults, and validates the result.
func Load(cfgFile string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".ragbench")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/ragbench")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	bindProviderEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: reading config: %w", domain.ErrConfiguration, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling config: %w", domain.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log::level", "info")
	v.SetDefault("log::format", "json")

	v.SetDefault("embedding::backend", "openai")
	v.SetDefault("embedding::model", "text-embedding-3-small")
	v.SetDefault("embedding::dimension", 0)
	v.SetDefault("embedding::timeout", 30*time.Second)
	v.SetDefault("embedding::batch_size", 64)
	v.SetDefault("embedding::cache_size", 4096)

	v.SetDefault("index::backend", "qdrant")
	v.SetDefault("index::collection", "ragbench_docs")
	v.SetDefault("index::qdrant::host", "localhost")
	v.SetDefault("index::qdrant::port", 6334)
	v.SetDefault("index::qdrant::api_key", "")
	v.SetDefault("index::qdrant::use_tls", false)
	v.SetDefault("index::postgres::dsn", "")
	v.SetDefault("index::postgres::max_conns", 10)
	v.SetDefault("index::postgres::min_conns", 2)
	v.SetDefault("index::cursor_path", "")
	v.SetDefault("index::chunk_min", domain.DefaultChunkerConfig().MinLength)
	v.SetDefault("index::chunk_max", domain.DefaultChunkerConfig().MaxLength)

	v.SetDefault("rerank::enabled", true)
	v.SetDefault("rerank::backend", "http")
	v.SetDefault("rerank::model", "BAAI/bge-reranker-base")
	v.SetDefault("rerank::url", "http://localhost:8081")
	v.SetDefault("rerank::timeout", 30*time.Second)

	v.SetDefault("retrieval::dense_top_k", 10)
	v.SetDefault("retrieval::rerank_top_n", 3)
	v.SetDefault("thresholds::dense", 0.3)
	v.SetDefault("thresholds::rerank", 0.2)

	v.SetDefault("sweep::dense", []float64{0.2, 0.3, 0.4})
	v.SetDefault("sweep::rerank", []float64{0.1, 0.2, 0.3})
	v.SetDefault("sweep::cell_concurrency", 1)

	v.SetDefault("generator::backend", "openai")
	v.SetDefault("generator::model", "gpt-4.1-mini")
	v.SetDefault("generator::max_tokens", 512)
	v.SetDefault("generator::timeout", 60*time.Second)
	v.SetDefault("judge::backend", "openai")
	v.SetDefault("judge::model", "gpt-4.1-mini")
	v.SetDefault("judge::max_tokens", 256)
	v.SetDefault("judge::timeout", 60*time.Second)

	v.SetDefault("compare::models", []string{"gpt-4.1-mini", "gpt-4o"})
	v.SetDefault("compare::ks", []int{1, 3, 5, 10})

	v.SetDefault("providers::openai::base_url", "")
	v.SetDefault("providers::anthropic::base_url", "")
	v.SetDefault("providers::anthropic::max_retries", 2)
	v.SetDefault("providers::ollama::base_url", "http://localhost:11434")

	v.SetDefault("worker::concurrency", 4)
	v.SetDefault("worker::rate_per_second", 0)
	v.SetDefault("worker::burst", 1)

	v.SetDefault("run_store::backend", "sqlite")
	v.SetDefault("run_store::path", "results/ragbench.db")
	v.SetDefault("run_store::dsn", "")

	v.SetDefault("output::dir", "results")
	v.SetDefault("output::color", true)

	v.SetDefault("server::addr", ":9010")
	v.SetDefault("server::shutdown_timeout", 10*time.Second)
	v.SetDefault("server::worker", true)

	v.SetDefault("telemetry::enabled", false)
	v.SetDefault("telemetry::endpoint", "localhost:4318")
	v.SetDefault("telemetry::insecure", true)
	v.SetDefault("telemetry::service_name", "ragbench")
	v.SetDefault("telemetry::sample_ratio", 1.0)
}

// bindProviderEnv lets the conventional provider variables stand in for the prefixed ones.
func bindProviderEnv(v *viper.Viper) {
	_ = v.BindEnv("providers::openai::api_key", EnvPrefix+"_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("providers::anthropic::api_key", EnvPrefix+"_PROVIDERS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("providers::ollama::base_url", EnvPrefix+"_PROVIDERS_OLLAMA_BASE_URL", "OLLAMA_HOST")
	_ = v.BindEnv("log::level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")
}

var validate = validator.New()

// Validate checks struct tags and the semantic constraints every run depends on.
// All failures wrap domain.ErrConfiguration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	if c.Retrieval.DenseTopK <= 0 {
		return fmt.Errorf("%w: retrieval.dense_top_k must be positive, got %d", domain.ErrConfiguration, c.Retrieval.DenseTopK)
	}
	if c.Retrieval.RerankTopN < 0 {
		return fmt.Errorf("%w: retrieval.rerank_top_n must be >= 0, got %d", domain.ErrConfiguration, c.Retrieval.RerankTopN)
	}
	if err := checkUnit("thresholds.dense", c.Thresholds.Dense); err != nil {
		return err
	}
	if err := checkUnit("thresholds.rerank", c.Thresholds.Rerank); err != nil {
		return err
	}
	for _, th := range append(append([]float64{}, c.Sweep.Dense...), c.Sweep.Rerank...) {
		if err := checkUnit("sweep", th); err != nil {
			return err
		}
	}
	for _, k := range c.Compare.Ks {
		if k <= 0 {
			return fmt.Errorf("%w: compare.ks must be positive, got %d", domain.ErrConfiguration, k)
		}
	}
	if c.Index.ChunkMax > 0 && c.Index.ChunkMin > c.Index.ChunkMax {
		return fmt.Errorf("%w: index.chunk_min %d exceeds index.chunk_max %d", domain.ErrConfiguration, c.Index.ChunkMin, c.Index.ChunkMax)
	}
	return nil
}

func checkUnit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be in [0,1], got %v", domain.ErrConfiguration, name, v)
	}
	return nil
}

// CursorPath returns the configured cursor file or one derived from the collection.
func (c *Config) CursorPath() string {
	if c.Index.CursorPath != "" {
		return c.Index.CursorPath
	}
	return fmt.Sprintf("%s/index_%s.cursor.json", c.Output.Dir, c.Index.Collection)
}
