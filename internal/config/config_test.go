package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// validConfig returns a configuration that passes Validate; tests mutate
// single fields from here.
func validConfig() Config {
	return Config{
		ModelName:   "gemini-2.5-flash",
		Temperature: 0.7,

		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "docuchat",
		PostgresPassword: "secret",
		PostgresDBName:   "docuchat",
		PostgresSSLMode:  "disable",

		EmbedderModel:  DefaultEmbedderModel,
		DocumentsRoot:  "/data/docs",
		ChunkSize:      DefaultChunkSize,
		ChunkOverlap:   DefaultChunkOverlap,
		EmbedBatchSize: DefaultEmbedBatchSize,
		TopK:           DefaultTopK,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"valid config", func(c *Config) {}, nil},
		{"empty model name", func(c *Config) { c.ModelName = "  " }, ErrInvalidModelName},
		{"temperature below range", func(c *Config) { c.Temperature = -0.1 }, ErrInvalidTemperature},
		{"temperature above range", func(c *Config) { c.Temperature = 2.1 }, ErrInvalidTemperature},
		{"temperature at upper bound", func(c *Config) { c.Temperature = 2 }, nil},
		{"empty embedder model", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidEmbedderModel},
		{"empty documents root", func(c *Config) { c.DocumentsRoot = "" }, ErrInvalidDocumentsRoot},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, ErrInvalidChunking},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, ErrInvalidChunking},
		{"overlap equals chunk size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }, ErrInvalidChunking},
		{"zero embed batch size", func(c *Config) { c.EmbedBatchSize = 0 }, ErrInvalidChunking},
		{"zero top k", func(c *Config) { c.TopK = 0 }, ErrInvalidChunking},
		{"empty postgres host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"postgres port zero", func(c *Config) { c.PostgresPort = 0 }, ErrInvalidPostgresPort},
		{"postgres port too high", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty postgres db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"bad ssl mode", func(c *Config) { c.PostgresSSLMode = "maybe" }, ErrInvalidPostgresSSLMode},
		{"verify-full ssl mode", func(c *Config) { c.PostgresSSLMode = "verify-full" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{"empty stays empty", "", ""},
		{"short fully masked", "hunter2", maskedValue},
		{"eight chars fully masked", "12345678", maskedValue},
		{"long keeps edges", "supersecretpassword", "su<" + maskedValue + ">rd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.secret); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.secret, got, tt.want)
			}
		})
	}
}

func TestMarshalJSONMasksPassword(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "topsecretpassword"

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if strings.Contains(string(data), "topsecretpassword") {
		t.Errorf("marshaled config leaks the password: %s", data)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	got, _ := decoded["postgres_password"].(string)
	if !strings.Contains(got, maskedValue) {
		t.Errorf("postgres_password = %q, want masked", got)
	}
}

func TestStringMasksPassword(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "topsecretpassword"

	if s := cfg.String(); strings.Contains(s, "topsecretpassword") {
		t.Errorf("String() leaks the password: %s", s)
	}
}
