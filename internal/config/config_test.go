//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Portions copyright (c) 2025 - 2026, the FlowRAG authors.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.ListenAddress != "0.0.0.0" {
		t.Errorf("listen address = %q, want 0.0.0.0", cfg.Server.ListenAddress)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("database port = %d, want 5432", cfg.Database.Port)
	}
	if cfg.Ingestion.ChunkSize != 1000 || cfg.Ingestion.ChunkOverlap != 200 {
		t.Errorf("chunking = %d/%d, want 1000/200",
			cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
database:
  host: db.internal
  database: rag
embedding:
  provider: gemini
  model: text-embedding-004
ingestion:
  chunk_size: 500
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("database host = %q", cfg.Database.Host)
	}
	if cfg.Embedding.Provider != "gemini" {
		t.Errorf("embedding provider = %q", cfg.Embedding.Provider)
	}
	// Unset fields keep their defaults.
	if cfg.Server.ListenAddress != "0.0.0.0" {
		t.Errorf("listen address = %q, want default", cfg.Server.ListenAddress)
	}
	if cfg.Ingestion.ChunkSize != 500 {
		t.Errorf("chunk size = %d, want 500", cfg.Ingestion.ChunkSize)
	}
	if cfg.Ingestion.ChunkOverlap != 200 {
		t.Errorf("chunk overlap = %d, want default 200", cfg.Ingestion.ChunkOverlap)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Database.Host = ""
	cfg.Embedding.Provider = "watson"
	cfg.Ingestion.ChunkOverlap = 2000

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}

	var errs ValidationErrors
	if !strings.Contains(err.Error(), "server.port") {
		t.Errorf("missing server.port error: %v", err)
	}
	if !strings.Contains(err.Error(), "database.host") {
		t.Errorf("missing database.host error: %v", err)
	}
	if !strings.Contains(err.Error(), "embedding.provider") {
		t.Errorf("missing embedding.provider error: %v", err)
	}
	if !strings.Contains(err.Error(), "ingestion.chunk_overlap") {
		t.Errorf("missing ingestion.chunk_overlap error: %v", err)
	}

	var ok bool
	if errs, ok = err.(ValidationErrors); !ok {
		t.Fatalf("error type = %T, want ValidationErrors", err)
	}
	if len(errs) < 4 {
		t.Errorf("got %d errors, want at least 4", len(errs))
	}
}

func TestValidateTLSRequiresFiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.TLS.Enabled = true

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !strings.Contains(err.Error(), "server.tls.cert_file") {
		t.Errorf("missing cert_file error: %v", err)
	}
	if !strings.Contains(err.Error(), "server.tls.key_file") {
		t.Errorf("missing key_file error: %v", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestAPIKeyLoaderConfiguredPath(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "openai.key")
	if err := os.WriteFile(keyPath, []byte("sk-test-123\n"), 0o600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	loader := NewAPIKeyLoader(APIKeysConfig{OpenAI: keyPath})
	keys, err := loader.LoadKeys()
	if err != nil {
		t.Fatalf("LoadKeys: %v", err)
	}
	if keys.OpenAI != "sk-test-123" {
		t.Errorf("OpenAI key = %q, want trimmed file contents", keys.OpenAI)
	}
}

func TestAPIKeyLoaderMissingConfiguredPath(t *testing.T) {
	loader := NewAPIKeyLoader(APIKeysConfig{
		Anthropic: filepath.Join(t.TempDir(), "missing.key"),
	})
	if _, err := loader.LoadKeys(); err == nil {
		t.Fatal("expected error for missing configured key file")
	}
}

func TestAPIKeyLoaderEmptyConfiguredFile(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "empty.key")
	if err := os.WriteFile(keyPath, []byte("   \n"), 0o600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	loader := NewAPIKeyLoader(APIKeysConfig{Gemini: keyPath})
	if _, err := loader.LoadKeys(); err == nil {
		t.Fatal("expected error for empty key file")
	}
}

func TestAPIKeyLoaderEnvironmentFallback(t *testing.T) {
	t.Setenv(EnvSerpAPIKey, "serp-env-key")

	loader := NewAPIKeyLoader(APIKeysConfig{})
	keys, err := loader.LoadKeys()
	if err != nil {
		t.Fatalf("LoadKeys: %v", err)
	}
	if keys.SerpAPI != "serp-env-key" {
		t.Errorf("SerpAPI key = %q, want env value", keys.SerpAPI)
	}
}
