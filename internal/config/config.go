//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Portions copyright (c) 2025 - 2026, the FlowRAG authors.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration loading and validation for the
// FlowRAG Server.
package config

// Config is the root configuration structure.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Database contains PostgreSQL connection configuration.
	Database DatabaseConfig `yaml:"database"`

	// APIKeys contains paths to API key files for external providers.
	APIKeys APIKeysConfig `yaml:"api_keys"`

	// Embedding selects the provider and model used to embed documents
	// and queries.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Gateway configures completion routing, timeouts, and retries.
	Gateway GatewayConfig `yaml:"gateway"`

	// Ingestion configures document chunking.
	Ingestion IngestionConfig `yaml:"ingestion"`

	// WebSearch configures the optional web search enrichment.
	WebSearch WebSearchConfig `yaml:"web_search"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the address to bind to (e.g., "0.0.0.0").
	ListenAddress string `yaml:"listen_address"`

	// Port is the port to listen on.
	Port int `yaml:"port"`

	// TLS contains TLS configuration.
	TLS TLSConfig `yaml:"tls"`

	// CORS contains CORS configuration.
	CORS CORSConfig `yaml:"cors"`
}

// TLSConfig contains TLS settings for the HTTP server.
type TLSConfig struct {
	// Enabled indicates whether TLS is enabled.
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the TLS certificate file.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the TLS private key file.
	KeyFile string `yaml:"key_file"`
}

// CORSConfig contains CORS settings for the HTTP server.
type CORSConfig struct {
	// Enabled indicates whether CORS headers are sent.
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is the list of allowed origins. Use ["*"] to allow
	// all origins.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	// Host is the database server hostname.
	Host string `yaml:"host"`

	// Port is the database server port.
	Port int `yaml:"port"`

	// Database is the database name.
	Database string `yaml:"database"`

	// Username is the database user. Defaults to PGUSER or the OS user.
	Username string `yaml:"username"`

	// Password is the database password. Defaults to PGPASSWORD.
	Password string `yaml:"password"`

	// SSLMode is the PostgreSQL sslmode (disable, require, verify-full, ...).
	SSLMode string `yaml:"ssl_mode"`
}

// APIKeysConfig contains paths to API key files. Each entry is optional;
// when empty, the loader falls back to environment variables and default
// file locations.
type APIKeysConfig struct {
	// OpenAI is the path to the OpenAI API key file.
	OpenAI string `yaml:"openai"`

	// Gemini is the path to the Google Gemini API key file.
	Gemini string `yaml:"gemini"`

	// Anthropic is the path to the Anthropic API key file.
	Anthropic string `yaml:"anthropic"`

	// SerpAPI is the path to the SerpAPI key file used for web search.
	SerpAPI string `yaml:"serpapi"`
}

// EmbeddingConfig selects the embedding provider and model.
type EmbeddingConfig struct {
	// Provider is the embedding provider: openai, gemini, or ollama.
	Provider string `yaml:"provider"`

	// Model is the embedding model name. Empty uses the provider default.
	Model string `yaml:"model"`
}

// GatewayConfig contains completion gateway settings.
type GatewayConfig struct {
	// TimeoutSeconds is the per-call completion timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// MaxRetries is the number of retries for retryable provider errors.
	MaxRetries int `yaml:"max_retries"`

	// OllamaBaseURL is the base URL of the local Ollama server.
	OllamaBaseURL string `yaml:"ollama_base_url"`
}

// IngestionConfig contains document chunking settings.
type IngestionConfig struct {
	// ChunkSize is the target chunk size in characters.
	ChunkSize int `yaml:"chunk_size"`

	// ChunkOverlap is the overlap between consecutive chunks in characters.
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// WebSearchConfig contains web search settings.
type WebSearchConfig struct {
	// BaseURL overrides the SerpAPI endpoint. Empty uses the default.
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds is the per-lookup timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress: "0.0.0.0",
			Port:          8080,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
			},
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "flowrag",
			SSLMode:  "disable",
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
		},
		Gateway: GatewayConfig{
			TimeoutSeconds: 60,
			MaxRetries:     2,
		},
		Ingestion: IngestionConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		WebSearch: WebSearchConfig{
			TimeoutSeconds: 15,
		},
	}
}
