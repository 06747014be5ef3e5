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

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default configuration file name.
	ConfigFileName = "flowrag-server.yaml"

	// SystemConfigPath is the system-wide configuration path.
	SystemConfigPath = "/etc/flowrag/" + ConfigFileName
)

// Load loads the configuration from the specified path, or searches
// default locations if path is empty. If no configuration file exists
// anywhere, the defaults are returned.
//
// Search order:
//  1. Explicit path (if provided)
//  2. /etc/flowrag/flowrag-server.yaml
//  3. flowrag-server.yaml in the binary's directory
func Load(path string) (*Config, error) {
	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, err
	}

	if configPath == "" {
		cfg := DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	return loadFromFile(configPath)
}

// findConfigFile finds the configuration file using the search order. An
// empty result with a nil error means no file was found and defaults
// should be used.
func findConfigFile(explicitPath string) (string, error) {
	// If explicit path provided, it must exist
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	searchPaths := []string{
		SystemConfigPath,
		getBinaryDirConfigPath(),
	}

	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", nil
}

// getBinaryDirConfigPath returns the path to a config file in the binary's
// directory.
func getBinaryDirConfigPath() string {
	executable, err := os.Executable()
	if err != nil {
		return ""
	}

	// Resolve symlinks to get the actual binary location
	executable, err = filepath.EvalSymlinks(executable)
	if err != nil {
		return ""
	}

	return filepath.Join(filepath.Dir(executable), ConfigFileName)
}

// loadFromFile loads and parses the configuration from a YAML file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero values that a partial YAML file may have
// cleared.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = def.Server.ListenAddress
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = def.Database.Host
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = def.Database.Port
	}
	if cfg.Database.Database == "" {
		cfg.Database.Database = def.Database.Database
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = def.Database.SSLMode
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = def.Embedding.Provider
	}
	if cfg.Gateway.TimeoutSeconds == 0 {
		cfg.Gateway.TimeoutSeconds = def.Gateway.TimeoutSeconds
	}
	if cfg.Ingestion.ChunkSize == 0 {
		cfg.Ingestion.ChunkSize = def.Ingestion.ChunkSize
	}
	if cfg.Ingestion.ChunkOverlap == 0 {
		cfg.Ingestion.ChunkOverlap = def.Ingestion.ChunkOverlap
	}
	if cfg.WebSearch.TimeoutSeconds == 0 {
		cfg.WebSearch.TimeoutSeconds = def.WebSearch.TimeoutSeconds
	}
}
