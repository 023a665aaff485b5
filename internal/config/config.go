// Package config reads process settings from the environment and workflow
// plans from YAML files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

var (
	// ErrMissingSetting reports a required environment variable that is unset.
	ErrMissingSetting = errors.New("missing required setting")
	// ErrInvalidSetting reports an environment variable that does not parse.
	ErrInvalidSetting = errors.New("invalid setting")
)

// Config holds the process settings.
type Config struct {
	Store       StoreConfig
	Embedding   EmbeddingConfig
	Server      ServerConfig
	GitHubToken string        // Optional; raises the GitHub API rate limit
	CallTimeout time.Duration // Applied to every store and embedding call
	LogLevel    slog.Level
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	HTTPMode bool   // Serve MCP over HTTP instead of stdio
	Port     string // Listen port for /mcp, /health and the landing page
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	Backend  string // "qdrant", "bolt" or "memory"
	Host     string
	Port     int
	APIKey   string
	UseTLS   bool
	BoltPath string
}

// EmbeddingConfig configures the OpenAI embedding client.
type EmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// FromEnv builds a Config from the environment.
//
// Required: OPENAI_API_KEY, and QDRANT_API_KEY when STORE_BACKEND is qdrant.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{
			Backend:  getEnv("STORE_BACKEND", "qdrant"),
			Host:     getEnv("QDRANT_HOST", "localhost"),
			APIKey:   os.Getenv("QDRANT_API_KEY"),
			BoltPath: getEnv("BOLT_PATH", "vecquery.db"),
		},
		Embedding: EmbeddingConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		GitHubToken: os.Getenv("GITHUB_TOKEN"),
	}

	var err error
	if cfg.Store.Port, err = getEnvInt("QDRANT_PORT", 6334); err != nil {
		return nil, err
	}
	if cfg.Store.UseTLS, err = getEnvBool("QDRANT_USE_TLS", false); err != nil {
		return nil, err
	}
	if cfg.Server.HTTPMode, err = getEnvBool("SERVER_MODE", false); err != nil {
		return nil, err
	}
	if cfg.CallTimeout, err = getEnvDuration("CALL_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("%w: LOG_LEVEL: %v", ErrInvalidSetting, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every credential the chosen backends need is present.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "qdrant":
		if c.Store.APIKey == "" {
			return fmt.Errorf("%w: QDRANT_API_KEY", ErrMissingSetting)
		}
	case "bolt":
		if c.Store.BoltPath == "" {
			return fmt.Errorf("%w: BOLT_PATH", ErrMissingSetting)
		}
	case "memory":
	default:
		return fmt.Errorf("%w: STORE_BACKEND=%q (want qdrant, bolt or memory)", ErrInvalidSetting, c.Store.Backend)
	}

	if c.Embedding.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingSetting)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%w: CALL_TIMEOUT must be positive", ErrInvalidSetting)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidSetting, key, v)
	}
	return i, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidSetting, key, v)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidSetting, key, v)
	}
	return d, nil
}
