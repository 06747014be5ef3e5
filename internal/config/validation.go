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
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// embeddingProviders are the providers that can serve embeddings.
var embeddingProviders = []string{"openai", "gemini", "ollama"}

// Validate checks the configuration for errors and returns all validation
// errors found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateDatabase()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateGateway()...)
	errs = append(errs, c.validateIngestion()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateServer validates server configuration.
func (c *Config) validateServer() ValidationErrors {
	var errs ValidationErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			errs = append(errs, ValidationError{
				Field:   "server.tls.cert_file",
				Message: "required when TLS is enabled",
			})
		} else if _, err := os.Stat(expandPath(c.Server.TLS.CertFile)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.tls.cert_file",
				Message: fmt.Sprintf("file not found: %s", c.Server.TLS.CertFile),
			})
		}

		if c.Server.TLS.KeyFile == "" {
			errs = append(errs, ValidationError{
				Field:   "server.tls.key_file",
				Message: "required when TLS is enabled",
			})
		} else if _, err := os.Stat(expandPath(c.Server.TLS.KeyFile)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.tls.key_file",
				Message: fmt.Sprintf("file not found: %s", c.Server.TLS.KeyFile),
			})
		}
	}

	return errs
}

// validateDatabase validates database configuration.
func (c *Config) validateDatabase() ValidationErrors {
	var errs ValidationErrors

	if c.Database.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "database.host",
			Message: "required",
		})
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "database.port",
			Message: "must be between 1 and 65535",
		})
	}
	if c.Database.Database == "" {
		errs = append(errs, ValidationError{
			Field:   "database.database",
			Message: "required",
		})
	}

	return errs
}

// validateEmbedding validates the embedding provider selection.
func (c *Config) validateEmbedding() ValidationErrors {
	var errs ValidationErrors

	provider := strings.ToLower(c.Embedding.Provider)
	valid := false
	for _, p := range embeddingProviders {
		if provider == p {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, ValidationError{
			Field: "embedding.provider",
			Message: fmt.Sprintf("must be one of: %s",
				strings.Join(embeddingProviders, ", ")),
		})
	}

	return errs
}

// validateGateway validates gateway configuration.
func (c *Config) validateGateway() ValidationErrors {
	var errs ValidationErrors

	if c.Gateway.TimeoutSeconds < 1 {
		errs = append(errs, ValidationError{
			Field:   "gateway.timeout_seconds",
			Message: "must be at least 1",
		})
	}
	if c.Gateway.MaxRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "gateway.max_retries",
			Message: "must not be negative",
		})
	}

	return errs
}

// validateIngestion validates chunking configuration.
func (c *Config) validateIngestion() ValidationErrors {
	var errs ValidationErrors

	if c.Ingestion.ChunkSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "ingestion.chunk_size",
			Message: "must be at least 1",
		})
	}
	if c.Ingestion.ChunkOverlap < 0 {
		errs = append(errs, ValidationError{
			Field:   "ingestion.chunk_overlap",
			Message: "must not be negative",
		})
	}
	if c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		errs = append(errs, ValidationError{
			Field:   "ingestion.chunk_overlap",
			Message: "must be smaller than chunk_size",
		})
	}

	return errs
}
