// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override, including DATABASE_URL)
//  2. Config file (~/.docuchat/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: chat model, temperature, embedder model
//   - Storage: PostgreSQL connection (see storage.go)
//   - Ingestion: documents root, chunk size/overlap, embedding batch size
//
// Sensitive data (the PostgreSQL password) is masked in MarshalJSON and
// String; configuration is validated fail-fast in Load.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidModelName indicates the chat model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the sampling temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidChunking indicates chunk size/overlap values are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidDocumentsRoot indicates the documents root is not usable.
	ErrInvalidDocumentsRoot = errors.New("invalid documents root")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions, which is
	// what the rag_chunks vector column is declared as.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultChunkSize is the default chunk target size in tokens.
	DefaultChunkSize = 5000

	// DefaultChunkOverlap is the default chunk overlap in tokens.
	DefaultChunkOverlap = 500

	// DefaultEmbedBatchSize is the default embedding batch size.
	DefaultEmbedBatchSize = 10

	// DefaultTopK is the default number of chunks retrieved per chat turn.
	DefaultTopK = 5
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON.
type Config struct {
	// AI model configuration
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// RAG configuration
	EmbedderModel  string `mapstructure:"embedder_model" json:"embedder_model"`
	DocumentsRoot  string `mapstructure:"documents_root" json:"documents_root"`
	ChunkSize      int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap   int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	EmbedBatchSize int    `mapstructure:"embed_batch_size" json:"embed_batch_size"`
	TopK           int    `mapstructure:"top_k" json:"top_k"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docuchat")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults(filepath.Join(home, "Documents"))
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error, defaults apply.
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(documentsRoot string) {
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.7)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "docuchat")
	viper.SetDefault("postgres_password", "docuchat_dev_password")
	viper.SetDefault("postgres_db_name", "docuchat")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("documents_root", documentsRoot)
	viper.SetDefault("chunk_size", DefaultChunkSize)
	viper.SetDefault("chunk_overlap", DefaultChunkOverlap)
	viper.SetDefault("embed_batch_size", DefaultEmbedBatchSize)
	viper.SetDefault("top_k", DefaultTopK)
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "DOCUCHAT_MODEL_NAME")
	mustBind("embedder_model", "DOCUCHAT_EMBEDDER_MODEL")
	mustBind("documents_root", "DOCUCHAT_DOCUMENTS_ROOT")
}

// Validate performs fail-fast range checks on the loaded configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return ErrInvalidModelName
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return ErrInvalidEmbedderModel
	}
	if strings.TrimSpace(c.DocumentsRoot) == "" {
		return fmt.Errorf("%w: documents_root must not be empty", ErrInvalidDocumentsRoot)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, c.ChunkSize, c.ChunkOverlap)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("%w: embed_batch_size=%d", ErrInvalidChunking, c.EmbedBatchSize)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k=%d", ErrInvalidChunking, c.TopK)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return ErrInvalidPostgresDBName
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are
// fully masked to prevent substring matching; longer ones keep the first
// and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
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
