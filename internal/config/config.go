// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.taxline/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: model selection, fallback chain, temperature, embedder (this file)
//   - Storage: PostgreSQL connection (see storage.go)
//   - Pipeline: retrieval, confidence, and routing tuning (see pipeline.go)
//   - Rerank: cross-encoder rerank service (see pipeline.go)
//   - Observability: Datadog APM tracing (see observability.go)
//
// The retrieval weights, confidence boost, and routing thresholds are
// empirically chosen values, so they live here as tunable configuration
// rather than package constants.
//
// Security: sensitive fields (password, API keys) are masked in MarshalJSON.
// Validation: range checks in validation.go with sentinel errors usable via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidWeights indicates a weight pair does not sum to 1.0.
	ErrInvalidWeights = errors.New("invalid weights")

	// ErrInvalidThreshold indicates a threshold value is out of range.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidCandidateCount indicates a retrieval count is out of range.
	ErrInvalidCandidateCount = errors.New("invalid candidate count")
)

const (
	// DefaultModelName is the primary generation model.
	DefaultModelName = "googleai/gemini-2.5-flash"

	// DefaultEmbedderModel is the default embedder model.
	// The knowledge schema stores 384-dimension vectors (MiniLM class);
	// see knowledge.VectorDimension.
	DefaultEmbedderModel = "text-embedding-004"

	// DefaultMaxHistoryTurns bounds the conversation suffix read per query.
	DefaultMaxHistoryTurns = 3
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	ModelName      string   `mapstructure:"model_name" json:"model_name"`
	FallbackModels []string `mapstructure:"fallback_models" json:"fallback_models"`
	Temperature    float32  `mapstructure:"temperature" json:"temperature"`
	MaxTokens      int      `mapstructure:"max_tokens" json:"max_tokens"`
	EmbedderModel  string   `mapstructure:"embedder_model" json:"embedder_model"`

	// Conversation history configuration
	MaxHistoryTurns int `mapstructure:"max_history_turns" json:"max_history_turns"`

	// Storage configuration (see storage.go for DSN helpers)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Pipeline tuning (see pipeline.go for type definitions)
	Retrieval  RetrievalConfig  `mapstructure:"retrieval" json:"retrieval"`
	Confidence ConfidenceConfig `mapstructure:"confidence" json:"confidence"`
	Routing    RoutingConfig    `mapstructure:"routing" json:"routing"`
	Rerank     RerankConfig     `mapstructure:"rerank" json:"rerank"`
	Timeouts   TimeoutConfig    `mapstructure:"timeouts" json:"timeouts"`

	// Observability configuration (see observability.go)
	Datadog DatadogConfig `mapstructure:"datadog" json:"datadog"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".taxline")

	// 0750: config may hold credentials
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when present.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Fail fast on bad values.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("fallback_models", []string{"googleai/gemini-2.0-flash"})
	viper.SetDefault("temperature", 0.4)
	viper.SetDefault("max_tokens", 1000)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("max_history_turns", DefaultMaxHistoryTurns)

	// PostgreSQL defaults for local development
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "taxline")
	viper.SetDefault("postgres_password", "taxline_dev_password")
	viper.SetDefault("postgres_db_name", "taxline")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Retrieval defaults
	viper.SetDefault("retrieval.bm25_weight", 0.5)
	viper.SetDefault("retrieval.vector_weight", 0.5)
	viper.SetDefault("retrieval.candidate_count", 20)
	viper.SetDefault("retrieval.final_count", 5)
	viper.SetDefault("retrieval.similarity_floor", 0.3)
	viper.SetDefault("retrieval.context_budget", 8000)
	viper.SetDefault("retrieval.min_chunk_chars", 200)
	viper.SetDefault("retrieval.expand_by", 1)

	// Confidence defaults
	viper.SetDefault("confidence.similarity_weight", 0.6)
	viper.SetDefault("confidence.rerank_weight", 0.4)
	viper.SetDefault("confidence.boost", 1.5)
	viper.SetDefault("confidence.referral_ceiling", 0.7)
	viper.SetDefault("confidence.max_confidence", 0.95)

	// Routing defaults
	viper.SetDefault("routing.complexity_threshold", 4)
	viper.SetDefault("routing.confidence_threshold", 0.60)

	// Rerank defaults
	viper.SetDefault("rerank.enabled", true)
	viper.SetDefault("rerank.base_url", "https://api.cohere.com")
	viper.SetDefault("rerank.model", "rerank-english-v3.0")

	// Timeout defaults (milliseconds)
	viper.SetDefault("timeouts.embed_ms", 5000)
	viper.SetDefault("timeouts.search_ms", 10000)
	viper.SetDefault("timeouts.rerank_ms", 10000)
	viper.SetDefault("timeouts.contextualize_ms", 10000)
	viper.SetDefault("timeouts.generate_ms", 30000)
	viper.SetDefault("timeouts.pipeline_ms", 60000)

	// Datadog defaults
	viper.SetDefault("datadog.agent_host", "localhost:4318")
	viper.SetDefault("datadog.environment", "dev")
	viper.SetDefault("datadog.service_name", "taxline")
}

// bindEnvVariables binds sensitive environment variables explicitly.
// GEMINI_API_KEY is read directly by Genkit (not via viper); its presence is
// checked in Validate.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("rerank.api_key", "COHERE_API_KEY")
	mustBind("rerank.enabled", "TAXLINE_RERANK_ENABLED")
	mustBind("datadog.api_key", "DD_API_KEY")
	mustBind("model_name", "TAXLINE_MODEL_NAME")
	mustBind("embedder_model", "TAXLINE_EMBEDDER_MODEL")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "********"

// MarshalJSON masks sensitive fields so a Config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	masked := alias(c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = maskedValue
	}
	if masked.Rerank.APIKey != "" {
		masked.Rerank.APIKey = maskedValue
	}
	if masked.Datadog.APIKey != "" {
		masked.Datadog.APIKey = maskedValue
	}
	return json.Marshal(masked)
}
