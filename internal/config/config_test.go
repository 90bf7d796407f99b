package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  kind: ollama
  model: nomic-embed-text
  dimensions: 768
store:
  kind: sqlite
  path: /tmp/corpus.db
chunker:
  kind: tokens
  max_size: 256
  overlap: 32
cache:
  capacity: 64
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Kind != ProviderOllama || cfg.Provider.Model != "nomic-embed-text" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Store.Kind != StoreSQLite || cfg.Store.Path != "/tmp/corpus.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Chunker.Kind != ChunkerTokens || cfg.Chunker.MaxSize != 256 {
		t.Errorf("chunker = %+v", cfg.Chunker)
	}
	if cfg.Cache.Capacity != 64 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
cache:
  capacity: 16
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Kind != ProviderDeterministic {
		t.Errorf("provider kind = %q, want default", cfg.Provider.Kind)
	}
	if cfg.Chunker.MaxSize != 500 {
		t.Errorf("chunker max_size = %d, want default 500", cfg.Chunker.MaxSize)
	}
	if cfg.Cache.Capacity != 16 {
		t.Errorf("cache capacity = %d, want 16", cfg.Cache.Capacity)
	}
}

func TestAPIKeyEnvExpansion(t *testing.T) {
	t.Setenv("TEST_CORPUS_KEY", "sk-test")
	path := writeConfig(t, `
provider:
  kind: openai
  model: text-embedding-3-small
  api_key: ${TEST_CORPUS_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.APIKey != "sk-test" {
		t.Errorf("api_key = %q, want expanded value", cfg.Provider.APIKey)
	}
}

func TestValidationErrors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	tests := []struct {
		name string
		body string
	}{
		{"unknown provider", "provider:\n  kind: quantum\n"},
		{"openai without key", "provider:\n  kind: openai\n  model: text-embedding-3-small\n"},
		{"ollama without model", "provider:\n  kind: ollama\n"},
		{"sqlite without path", "store:\n  kind: sqlite\n"},
		{"postgres without dsn", "store:\n  kind: postgres\n"},
		{"postgres without dims", "store:\n  kind: postgres\n  dsn: postgres://x\n"},
		{"unknown chunker", "chunker:\n  kind: semantic\n  max_size: 10\n"},
		{"zero max_size", "chunker:\n  kind: window\n  max_size: 0\n"},
		{"zero cache capacity", "cache:\n  capacity: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
