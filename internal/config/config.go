// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest):
//  1. Environment variables
//  2. Config file (~/.wildrag/config.yaml or ./config.yaml)
//  3. Defaults
//
// Secrets (API keys, endpoint credentials) are not part of this package;
// they are resolved through internal/secrets. Sensitive fields that do live
// here (the Postgres password) are masked in MarshalJSON and String.
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
	// ErrInvalidChunkSize indicates chunk_size is not a positive integer.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidChunkOverlap indicates chunk_overlap is negative or >= chunk_size.
	ErrInvalidChunkOverlap = errors.New("invalid chunk overlap")

	// ErrInvalidSplitStrategy indicates an unsupported chunking strategy.
	ErrInvalidSplitStrategy = errors.New("invalid split strategy")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidTopK indicates the retrieval result count is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")
)

// Split strategy identifiers used in Config.SplitStrategy.
const (
	StrategySentence = "sentence"
	StrategyToken    = "token"
)

const (
	// DefaultChatModel is used when no chat model is configured.
	DefaultChatModel = "gpt-4o"

	// DefaultEmbeddingModel is used when no embedding model is configured.
	DefaultEmbeddingModel = "text-embedding-3-large"

	// DefaultAddr is the default HTTP listen address.
	DefaultAddr = "127.0.0.1:8080"
)

// Config stores application configuration.
type Config struct {
	// Model configuration
	ChatModel      string `mapstructure:"chat_model" json:"chat_model"`
	EmbeddingModel string `mapstructure:"embedding_model" json:"embedding_model"`

	// Optional non-secret connection overrides. When empty the values are
	// resolved through the secret provider instead.
	Endpoint   string `mapstructure:"endpoint" json:"endpoint"`
	APIVersion string `mapstructure:"api_version" json:"api_version"`

	// HTTP server
	Addr string `mapstructure:"addr" json:"addr"`

	// Chunking defaults for ingestion
	SplitStrategy string `mapstructure:"split_strategy" json:"split_strategy"`
	ChunkSize     int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap  int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval
	TopK int `mapstructure:"top_k" json:"top_k"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".wildrag"))
	}
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL has the highest priority for PostgreSQL settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chat_model", DefaultChatModel)
	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("endpoint", "")
	v.SetDefault("api_version", "")

	v.SetDefault("addr", DefaultAddr)

	v.SetDefault("split_strategy", StrategySentence)
	v.SetDefault("chunk_size", 512)
	v.SetDefault("chunk_overlap", 20)

	v.SetDefault("top_k", 5)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "wildrag")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db_name", "wildrag")
	v.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment overrides explicitly.
// OPENAI_* credentials are deliberately absent: those go through the secret
// provider, not the config file.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("chat_model", "WILDRAG_CHAT_MODEL")
	mustBind("embedding_model", "WILDRAG_EMBEDDING_MODEL")
	mustBind("addr", "WILDRAG_ADDR")
	mustBind("postgres_host", "WILDRAG_POSTGRES_HOST")
	mustBind("postgres_port", "WILDRAG_POSTGRES_PORT")
	mustBind("postgres_user", "WILDRAG_POSTGRES_USER")
	mustBind("postgres_password", "WILDRAG_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "WILDRAG_POSTGRES_DB")
	mustBind("postgres_ssl_mode", "WILDRAG_POSTGRES_SSL_MODE")
}

// Validate checks the configuration and fails fast with sentinel errors.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunkSize, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidChunkOverlap, c.ChunkOverlap)
	}
	switch c.SplitStrategy {
	case StrategySentence, StrategyToken:
	default:
		return fmt.Errorf("%w: %q (must be %q or %q)", ErrInvalidSplitStrategy, c.SplitStrategy, StrategySentence, StrategyToken)
	}
	if c.TopK <= 0 || c.TopK > 100 {
		return fmt.Errorf("%w: must be in [1, 100], got %d", ErrInvalidTopK, c.TopK)
	}
	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "********"

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return maskedValue
}

// MarshalJSON masks sensitive fields so configs can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
