// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (AREALBOT_* prefix, plus DATABASE_URL)
//  2. Config file (~/.arealbot/config.yaml or --config)
//  3. Default values
//
// Main categories:
//   - AI: provider, model, embedder model
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: top-k and score threshold policy knobs
//   - CRM: external CRM endpoint and token
//   - HTTP: listen address for the channel-facing API
//
// Sensitive fields (passwords, tokens) are masked in MarshalJSON and are
// never logged. Validation uses sentinel errors checkable with errors.Is.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidScoreThreshold indicates the score threshold is out of range.
	ErrInvalidScoreThreshold = errors.New("invalid score threshold")

	// ErrInvalidHistoryWindow indicates the history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidRateLimit indicates a negative generation rate limit.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrMissingCRMToken indicates CRM is configured without a token.
	ErrMissingCRMToken = errors.New("missing CRM token")

	// ErrInvalidCRMBaseURL indicates the CRM base URL is malformed.
	ErrInvalidCRMBaseURL = errors.New("invalid CRM base URL")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
)

const (
	// DefaultEmbedderModel is the default embedding model.
	// Output is truncated to 768 dimensions to match the pgvector schema;
	// see knowledge.VectorDimension.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultTopK is the default number of chunks handed to generation.
	DefaultTopK = 5

	// MaxTopK bounds retrieval fan-out.
	MaxTopK = 50

	// DefaultScoreThreshold drops weakly-similar chunks.
	DefaultScoreThreshold = 0.35

	// DefaultMaxHistoryMessages is the default history window.
	DefaultMaxHistoryMessages = 40

	// MaxAllowedHistoryMessages is the absolute maximum to prevent OOM.
	MaxAllowedHistoryMessages = 2000

	// DefaultRateLimit caps generation calls per second. Zero disables
	// limiting entirely.
	DefaultRateLimit = 5.0
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON; when
// adding passwords, API keys or tokens, update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`             // "googleai" (default) or "openai"
	ModelName     string `mapstructure:"model_name" json:"model_name"`         // e.g. "gemini-2.5-flash", "gpt-4o"
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"` // embedding model identifier

	// Retrieval policy
	TopK           int     `mapstructure:"top_k" json:"top_k"`
	ScoreThreshold float64 `mapstructure:"score_threshold" json:"score_threshold"`

	// Conversation history window
	MaxHistoryMessages int `mapstructure:"max_history_messages" json:"max_history_messages"`

	// RateLimit caps generation calls per second across all threads.
	RateLimit float64 `mapstructure:"rate_limit" json:"rate_limit"`

	// FallbackContact is appended to replies when the knowledge base has no
	// answer. Shown to users instead of a fabricated answer.
	FallbackContact string `mapstructure:"fallback_contact" json:"fallback_contact"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_dbname" json:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode" json:"postgres_sslmode"`

	// CRM configuration. Empty base URL disables CRM tools entirely.
	CRMBaseURL string `mapstructure:"crm_base_url" json:"crm_base_url"`
	CRMToken   string `mapstructure:"crm_token" json:"-"`

	// HTTP API
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"` // "debug", "info", "warn", "error"
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Observability. Empty endpoint disables tracing.
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
}

// MarshalJSON masks sensitive fields so Config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	a := alias(c)
	out := struct {
		alias
		PostgresPassword string `json:"postgres_password"`
		CRMToken         string `json:"crm_token"`
	}{alias: a, PostgresPassword: mask(c.PostgresPassword), CRMToken: mask(c.CRMToken)}
	return json.Marshal(out)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// setDefaults registers default values with viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGoogleAI)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("score_threshold", DefaultScoreThreshold)
	v.SetDefault("max_history_messages", DefaultMaxHistoryMessages)
	v.SetDefault("rate_limit", DefaultRateLimit)
	v.SetDefault("fallback_contact", "8 800 555 90 57")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "arealbot")
	v.SetDefault("postgres_dbname", "arealbot")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("service_name", "arealbot")
}

// Load reads configuration from file, environment and defaults.
// configPath may be empty, in which case ~/.arealbot/config.yaml is tried;
// a missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AREALBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".arealbot"))
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			// Best effort: defaults and env still apply without a file.
			var notFound viper.ConfigFileNotFoundError
			if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
