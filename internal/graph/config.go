//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package graph

import "fmt"

// Output formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// QueryIntakeConfig is the user-query node configuration.
type QueryIntakeConfig struct {
	// ValidateInput rejects blank queries when true.
	ValidateInput bool
}

// KnowledgeBaseConfig is the knowledge-base node configuration.
type KnowledgeBaseConfig struct {
	SearchLimit         int
	SimilarityThreshold float64

	// DocumentIDs scopes retrieval to specific documents. Empty means
	// every document linked to the workflow.
	DocumentIDs []string
}

// ModelEngineConfig is the llm-engine node configuration.
type ModelEngineConfig struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	CustomPrompt     string
	EnableWebSearch  bool
	WebSearchQueries int
}

// OutputConfig is the output node configuration.
type OutputConfig struct {
	Format            string
	ShowSources       bool
	ShowExecutionTime bool
}

// QueryIntakeConfigOf reads a user-query node's configuration, applying
// defaults for unset keys.
func QueryIntakeConfigOf(n Node) (QueryIntakeConfig, error) {
	cfg := QueryIntakeConfig{}
	c := configReader{config: n.Data.Config}
	cfg.ValidateInput = c.boolOr("validate_input", false)
	return cfg, c.err
}

// KnowledgeBaseConfigOf reads a knowledge-base node's configuration,
// applying defaults for unset keys.
func KnowledgeBaseConfigOf(n Node) (KnowledgeBaseConfig, error) {
	cfg := KnowledgeBaseConfig{}
	c := configReader{config: n.Data.Config}
	cfg.SearchLimit = c.intOr("search_limit", 5)
	cfg.SimilarityThreshold = c.floatOr("similarity_threshold", 0.7)
	cfg.DocumentIDs = c.stringsOr("document_ids", nil)
	return cfg, c.err
}

// ModelEngineConfigOf reads an llm-engine node's configuration, applying
// defaults for unset keys.
func ModelEngineConfigOf(n Node) (ModelEngineConfig, error) {
	cfg := ModelEngineConfig{}
	c := configReader{config: n.Data.Config}
	cfg.Model = c.stringOr("model", "")
	cfg.Temperature = c.floatOr("temperature", 0.7)
	cfg.MaxTokens = c.intOr("max_tokens", 1000)
	cfg.CustomPrompt = c.stringOr("custom_prompt", "")
	cfg.EnableWebSearch = c.boolOr("enable_web_search", false)
	cfg.WebSearchQueries = c.intOr("web_search_queries", 3)
	return cfg, c.err
}

// OutputConfigOf reads an output node's configuration, applying defaults
// for unset keys.
func OutputConfigOf(n Node) (OutputConfig, error) {
	cfg := OutputConfig{}
	c := configReader{config: n.Data.Config}
	cfg.Format = c.stringOr("format", FormatMarkdown)
	cfg.ShowSources = c.boolOr("show_sources", true)
	cfg.ShowExecutionTime = c.boolOr("show_execution_time", false)
	return cfg, c.err
}

// configReader reads typed values out of a node's config map. JSON
// decoding yields float64 for every number, so integer keys coerce.
// The first type mismatch is retained in err.
type configReader struct {
	config map[string]any
	err    error
}

func (c *configReader) fail(key string, value any, want string) {
	if c.err == nil {
		c.err = fmt.Errorf("config key %q: expected %s, got %T", key, want, value)
	}
}

func (c *configReader) stringOr(key, fallback string) string {
	v, ok := c.config[key]
	if !ok || v == nil {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		c.fail(key, v, "string")
		return fallback
	}
	return s
}

func (c *configReader) boolOr(key string, fallback bool) bool {
	v, ok := c.config[key]
	if !ok || v == nil {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		c.fail(key, v, "bool")
		return fallback
	}
	return b
}

func (c *configReader) intOr(key string, fallback int) int {
	v, ok := c.config[key]
	if !ok || v == nil {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		c.fail(key, v, "number")
		return fallback
	}
}

func (c *configReader) floatOr(key string, fallback float64) float64 {
	v, ok := c.config[key]
	if !ok || v == nil {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		c.fail(key, v, "number")
		return fallback
	}
}

func (c *configReader) stringsOr(key string, fallback []string) []string {
	v, ok := c.config[key]
	if !ok || v == nil {
		return fallback
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				c.fail(key, item, "string list")
				return fallback
			}
			out = append(out, s)
		}
		return out
	default:
		c.fail(key, v, "string list")
		return fallback
	}
}
