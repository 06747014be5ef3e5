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

// Environment variable names for API keys.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvSerpAPIKey      = "SERPAPI_API_KEY"
)

// Default API key file paths (relative to home directory).
const (
	DefaultOpenAIKeyFile    = ".openai-api-key"
	DefaultGeminiKeyFile    = ".gemini-api-key"
	DefaultAnthropicKeyFile = ".anthropic-api-key"
	DefaultSerpAPIKeyFile   = ".serpapi-api-key"
)

// LoadedKeys holds all loaded API keys. A key is empty when no source
// provided one; the corresponding provider is then left unregistered.
type LoadedKeys struct {
	OpenAI    string
	Gemini    string
	Anthropic string
	SerpAPI   string
}

// APIKeyLoader handles loading API keys from configured paths, environment
// variables, or default file locations.
type APIKeyLoader struct {
	config APIKeysConfig
}

// NewAPIKeyLoader creates a new API key loader with the given configuration.
func NewAPIKeyLoader(cfg APIKeysConfig) *APIKeyLoader {
	return &APIKeyLoader{config: cfg}
}

// LoadKeys loads all configured API keys. Keys without any configured
// source are left empty; only unreadable or empty configured files
// produce an error.
func (l *APIKeyLoader) LoadKeys() (*LoadedKeys, error) {
	keys := &LoadedKeys{}

	var err error
	if keys.OpenAI, err = l.loadKey(
		l.config.OpenAI, EnvOpenAIAPIKey, DefaultOpenAIKeyFile, "OpenAI",
	); err != nil {
		return nil, err
	}
	if keys.Gemini, err = l.loadKey(
		l.config.Gemini, EnvGeminiAPIKey, DefaultGeminiKeyFile, "Gemini",
	); err != nil {
		return nil, err
	}
	if keys.Anthropic, err = l.loadKey(
		l.config.Anthropic, EnvAnthropicAPIKey, DefaultAnthropicKeyFile, "Anthropic",
	); err != nil {
		return nil, err
	}
	if keys.SerpAPI, err = l.loadKey(
		l.config.SerpAPI, EnvSerpAPIKey, DefaultSerpAPIKeyFile, "SerpAPI",
	); err != nil {
		return nil, err
	}

	return keys, nil
}

// loadKey loads an API key with the following priority:
//  1. Configured file path (if specified in config)
//  2. Environment variable
//  3. Default file location (~/.provider-api-key)
//
// A missing environment variable or default file is not an error; only
// an explicitly configured path must resolve.
func (l *APIKeyLoader) loadKey(
	configPath, envVar, defaultFile, providerName string,
) (string, error) {
	// Priority 1: Configured file path
	if configPath != "" {
		path := expandKeyPath(configPath)
		return readKeyFile(path, providerName)
	}

	// Priority 2: Environment variable
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}

	// Priority 3: Default file location
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	path := filepath.Join(homeDir, defaultFile)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	}

	return readKeyFile(path, providerName)
}

// readKeyFile reads an API key from a file.
func readKeyFile(path, providerName string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("%s API key file not found: %s", providerName, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s API key: %w", providerName, err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%s API key file is empty: %s", providerName, path)
	}

	return key, nil
}

// expandKeyPath expands ~ to the user's home directory.
func expandKeyPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
