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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrag/flowrag-server/internal/llm"
)

// stubProvider records calls and plays back scripted responses.
type stubProvider struct {
	name     string
	calls    int
	requests []llm.CompletionRequest
	respond  func(call int) (*llm.CompletionResponse, error)
}

func (s *stubProvider) Complete(
	_ context.Context,
	req llm.CompletionRequest,
) (*llm.CompletionResponse, error) {
	s.calls++
	s.requests = append(s.requests, req)
	return s.respond(s.calls)
}

func (s *stubProvider) ModelName() string {
	return s.name
}

func okResponse(model string) func(int) (*llm.CompletionResponse, error) {
	return func(int) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{
			Content:      "generated text",
			Model:        model,
			FinishReason: "stop",
			Usage:        llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}, nil
	}
}

func TestGateway_RoutesByModelPrefix(t *testing.T) {
	openaiStub := &stubProvider{name: "gpt-4o-mini", respond: okResponse("gpt-4o")}
	claudeStub := &stubProvider{name: "claude-sonnet", respond: okResponse("claude-sonnet-4")}

	g := New()
	g.Register("openai", openaiStub, "gpt-", "o1")
	g.Register("anthropic", claudeStub, "claude-")

	result, err := g.Generate(context.Background(), Request{
		Model:  "claude-sonnet-4-20250514",
		Prompt: "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, "anthropic", result.Provider)
	assert.Equal(t, 1, claudeStub.calls)
	assert.Equal(t, 0, openaiStub.calls)
	assert.Equal(t, "generated text", result.Text)
	assert.Equal(t, 15, result.Usage.TotalTokens)
}

func TestGateway_FallbackForUnmatchedModel(t *testing.T) {
	local := &stubProvider{name: "llama3.2", respond: okResponse("llama3.2")}

	g := New(WithFallback("ollama"))
	g.Register("ollama", local)

	result, err := g.Generate(context.Background(), Request{
		Model:  "mistral:7b",
		Prompt: "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, "ollama", result.Provider)
	assert.Equal(t, "mistral:7b", local.requests[0].Model)
}

func TestGateway_UnknownModelWithoutFallback(t *testing.T) {
	g := New()
	g.Register("openai", &stubProvider{respond: okResponse("gpt-4o")}, "gpt-")

	_, err := g.Generate(context.Background(), Request{Model: "unknown-model"})
	require.Error(t, err)
	assert.Equal(t, llm.ErrCodeInvalidModel, llm.CodeOf(err))
}

func TestGateway_RetriesRetryableErrors(t *testing.T) {
	stub := &stubProvider{
		respond: func(call int) (*llm.CompletionResponse, error) {
			if call < 3 {
				return nil, llm.Unavailable("upstream hiccup")
			}
			return okResponse("gpt-4o")(call)
		},
	}

	g := New(WithMaxRetries(2), WithRetryDelay(time.Millisecond))
	g.Register("openai", stub, "gpt-")

	result, err := g.Generate(context.Background(), Request{Model: "gpt-4o", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 3, stub.calls)
	assert.Equal(t, "generated text", result.Text)
}

func TestGateway_RetryBudgetExhausted(t *testing.T) {
	stub := &stubProvider{
		respond: func(int) (*llm.CompletionResponse, error) {
			return nil, llm.Unavailable("upstream down")
		},
	}

	g := New(WithMaxRetries(1), WithRetryDelay(time.Millisecond))
	g.Register("openai", stub, "gpt-")

	_, err := g.Generate(context.Background(), Request{Model: "gpt-4o", Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, 2, stub.calls)
	assert.Equal(t, llm.ErrCodeProviderUnavailable, llm.CodeOf(err))
}

func TestGateway_RateLimitNotRetried(t *testing.T) {
	stub := &stubProvider{
		respond: func(int) (*llm.CompletionResponse, error) {
			return nil, &llm.Error{Code: llm.ErrCodeRateLimited, Message: "slow down", StatusCode: 429}
		},
	}

	g := New(WithMaxRetries(3), WithRetryDelay(time.Millisecond))
	g.Register("openai", stub, "gpt-")

	_, err := g.Generate(context.Background(), Request{Model: "gpt-4o", Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, llm.ErrCodeRateLimited, llm.CodeOf(err))
}

func TestGateway_PromptBecomesUserMessage(t *testing.T) {
	stub := &stubProvider{respond: okResponse("gpt-4o")}

	g := New()
	g.Register("openai", stub, "gpt-")

	_, err := g.Generate(context.Background(), Request{
		Model:        "gpt-4o",
		SystemPrompt: "Answer from the provided context.",
		Prompt:       "What is pgvector?",
		Temperature:  0.2,
		MaxTokens:    512,
	})
	require.NoError(t, err)

	req := stub.requests[0]
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "What is pgvector?", req.Messages[0].Content)
	assert.Equal(t, "Answer from the provided context.", req.SystemPrompt)
	assert.Equal(t, 512, req.MaxTokens)
}
