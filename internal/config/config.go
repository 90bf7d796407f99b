// Package config loads and validates the engine configuration file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider kinds.
const (
	ProviderDeterministic = "deterministic"
	ProviderOpenAI        = "openai"
	ProviderOllama        = "ollama"
)

// Store kinds.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Chunker kinds.
const (
	ChunkerWindow = "window"
	ChunkerTokens = "tokens"
)

// Config is the full engine configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Store    StoreConfig    `yaml:"store"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ProviderConfig selects and tunes the embedding provider.
type ProviderConfig struct {
	Kind       string `yaml:"kind"`
	Model      string `yaml:"model,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"` // Supports ${ENV_VAR} expansion
	Dimensions int    `yaml:"dimensions,omitempty"`
}

// StoreConfig selects the vector store backend. Path is the SQLite file,
// DSN the Postgres connection string.
type StoreConfig struct {
	Kind       string `yaml:"kind"`
	Path       string `yaml:"path,omitempty"`
	DSN        string `yaml:"dsn,omitempty"` // Supports ${ENV_VAR} expansion
	Dimensions int    `yaml:"dimensions,omitempty"`
}

// ChunkerConfig tunes document splitting. MaxSize and Overlap are runes for
// the window chunker, tokens for the token chunker.
type ChunkerConfig struct {
	Kind    string `yaml:"kind"`
	MaxSize int    `yaml:"max_size"`
	Overlap int    `yaml:"overlap"`
}

// CacheConfig tunes the embedding cache. An empty Path disables the durable
// tier.
type CacheConfig struct {
	Capacity int    `yaml:"capacity"`
	Path     string `yaml:"path,omitempty"`
}

// Default returns a configuration that works with no file at all: the
// deterministic provider over an in-memory store.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{Kind: ProviderDeterministic, Dimensions: 384},
		Store:    StoreConfig{Kind: StoreMemory},
		Chunker:  ChunkerConfig{Kind: ChunkerWindow, MaxSize: 500, Overlap: 50},
		Cache:    CacheConfig{Capacity: 1024},
	}
}

// Load reads a YAML config file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.Provider.APIKey = expandEnv(cfg.Provider.APIKey)
	if cfg.Provider.APIKey == "" && cfg.Provider.Kind == ProviderOpenAI {
		cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.Store.DSN = expandEnv(cfg.Store.DSN)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv resolves a ${ENV_VAR} reference. Literal values pass through.
func expandEnv(v string) string {
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return os.Getenv(v[2 : len(v)-1])
	}
	return v
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.Provider.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Chunker.Validate(); err != nil {
		return err
	}
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("config: cache capacity must be at least 1 (got %d)", c.Cache.Capacity)
	}
	return nil
}

// Validate validates the provider selection.
func (p ProviderConfig) Validate() error {
	switch p.Kind {
	case ProviderDeterministic:
	case ProviderOpenAI:
		if p.APIKey == "" {
			return fmt.Errorf("config: openai provider requires an api_key (or OPENAI_API_KEY)")
		}
		if p.Model == "" {
			return fmt.Errorf("config: openai provider requires a model")
		}
	case ProviderOllama:
		if p.Model == "" {
			return fmt.Errorf("config: ollama provider requires a model")
		}
	default:
		return fmt.Errorf("config: unknown provider kind %q", p.Kind)
	}
	return nil
}

// Validate validates the store selection.
func (s StoreConfig) Validate() error {
	switch s.Kind {
	case StoreMemory:
	case StoreSQLite:
		if s.Path == "" {
			return fmt.Errorf("config: sqlite store requires a path")
		}
	case StorePostgres:
		if s.DSN == "" {
			return fmt.Errorf("config: postgres store requires a dsn")
		}
		if s.Dimensions < 1 {
			return fmt.Errorf("config: postgres store requires dimensions matching the provider")
		}
	default:
		return fmt.Errorf("config: unknown store kind %q", s.Kind)
	}
	return nil
}

// Validate validates the chunker parameters.
func (c ChunkerConfig) Validate() error {
	switch c.Kind {
	case ChunkerWindow, ChunkerTokens:
	default:
		return fmt.Errorf("config: unknown chunker kind %q", c.Kind)
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("config: chunker max_size must be at least 1 (got %d)", c.MaxSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("config: chunker overlap cannot be negative (got %d)", c.Overlap)
	}
	return nil
}
