//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package gateway

import (
	"fmt"

	"github.com/flowrag/flowrag-server/internal/llm"
	"github.com/flowrag/flowrag-server/internal/llm/anthropic"
	"github.com/flowrag/flowrag-server/internal/llm/gemini"
	"github.com/flowrag/flowrag-server/internal/llm/ollama"
	"github.com/flowrag/flowrag-server/internal/llm/openai"
)

// Credentials carries the API keys and endpoints used to construct
// providers. An empty key means the provider is not registered.
type Credentials struct {
	OpenAIKey     string
	GeminiKey     string
	AnthropicKey  string
	OllamaBaseURL string
}

// NewFromCredentials builds a gateway with every provider the credentials
// can reach. Ollama needs no key and is always registered as the fallback
// for models no hosted provider claims.
func NewFromCredentials(creds Credentials, opts ...Option) *Gateway {
	g := New(opts...)

	if creds.OpenAIKey != "" {
		g.Register("openai", openai.NewCompletionProvider(creds.OpenAIKey),
			"gpt-", "chatgpt-", "o1", "o3", "o4")
	}
	if creds.GeminiKey != "" {
		g.Register("gemini", gemini.NewCompletionProvider(creds.GeminiKey),
			"gemini-")
	}
	if creds.AnthropicKey != "" {
		g.Register("anthropic", anthropic.NewCompletionProvider(creds.AnthropicKey),
			"claude-")
	}

	var ollamaOpts []ollama.CompletionOption
	if creds.OllamaBaseURL != "" {
		ollamaOpts = append(ollamaOpts,
			ollama.WithCompletionClient(ollama.NewClient(ollama.WithBaseURL(creds.OllamaBaseURL))))
	}
	g.Register("ollama", ollama.NewCompletionProvider(ollamaOpts...))
	if g.fallback == "" {
		g.fallback = "ollama"
	}

	return g
}

// NewEmbeddingProvider constructs the embedding provider named by
// provider. An empty model uses the provider's default.
func NewEmbeddingProvider(provider, model string, creds Credentials) (llm.EmbeddingProvider, error) {
	switch provider {
	case "openai":
		if creds.OpenAIKey == "" {
			return nil, fmt.Errorf("openai embedding provider requires an API key")
		}
		var opts []openai.EmbeddingOption
		if model != "" {
			opts = append(opts, openai.WithEmbeddingModel(model))
		}
		return openai.NewEmbeddingProvider(creds.OpenAIKey, opts...), nil
	case "gemini":
		if creds.GeminiKey == "" {
			return nil, fmt.Errorf("gemini embedding provider requires an API key")
		}
		var opts []gemini.EmbeddingOption
		if model != "" {
			opts = append(opts, gemini.WithEmbeddingModel(model))
		}
		return gemini.NewEmbeddingProvider(creds.GeminiKey, opts...), nil
	case "ollama":
		var opts []ollama.EmbeddingOption
		if creds.OllamaBaseURL != "" {
			opts = append(opts,
				ollama.WithEmbeddingClient(ollama.NewClient(ollama.WithBaseURL(creds.OllamaBaseURL))))
		}
		if model != "" {
			opts = append(opts, ollama.WithEmbeddingModel(model))
		}
		return ollama.NewEmbeddingProvider(opts...), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}
