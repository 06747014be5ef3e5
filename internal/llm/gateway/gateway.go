//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package gateway routes completion requests to the provider that serves
// the requested model and applies shared timeout and retry policy.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flowrag/flowrag-server/internal/llm"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 500 * time.Millisecond
)

// route maps a model name prefix to a registered provider.
type route struct {
	prefix   string
	provider string
}

// Gateway dispatches generation requests to completion providers by model
// name prefix.
type Gateway struct {
	providers  map[string]llm.CompletionProvider
	routes     []route
	fallback   string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// New creates a gateway with no providers registered. Use the With options
// or Register to add providers.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		providers:  make(map[string]llm.CompletionProvider),
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Option configures the gateway.
type Option func(*Gateway)

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// WithMaxRetries sets how many times a retryable failure is reattempted.
func WithMaxRetries(n int) Option {
	return func(g *Gateway) {
		g.maxRetries = n
	}
}

// WithRetryDelay sets the base delay between retries. The delay doubles on
// each attempt.
func WithRetryDelay(d time.Duration) Option {
	return func(g *Gateway) {
		g.retryDelay = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithFallback names the provider used for models no route matches.
// Typically this is the local ollama provider.
func WithFallback(name string) Option {
	return func(g *Gateway) {
		g.fallback = name
	}
}

// Register adds a provider under the given name with the model prefixes it
// serves. Prefixes are matched in registration order.
func (g *Gateway) Register(name string, provider llm.CompletionProvider, prefixes ...string) {
	g.providers[name] = provider
	for _, p := range prefixes {
		g.routes = append(g.routes, route{prefix: p, provider: name})
	}
}

// Providers returns the names of all registered providers.
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	return names
}

// Request is a generation request addressed by model name.
type Request struct {
	// Model selects the provider and is forwarded as-is. Empty means the
	// resolved provider's default model.
	Model string

	// SystemPrompt is the system-level instruction.
	SystemPrompt string

	// Prompt is the user turn. Ignored when Messages is set.
	Prompt string

	// Messages is a full conversation, for session-aware callers.
	Messages []llm.Message

	// Temperature controls randomness. Negative means provider default.
	Temperature float64

	// MaxTokens caps the generation length. Zero means provider default.
	MaxTokens int
}

// Result is the outcome of a generation.
type Result struct {
	Text     string
	Model    string
	Provider string
	Usage    llm.TokenUsage
	Latency  time.Duration
}

// Generate resolves the provider for the requested model and runs the
// completion under the gateway's timeout and retry policy. Only errors
// marked retryable are reattempted; rate limits surface immediately.
func (g *Gateway) Generate(ctx context.Context, req Request) (*Result, error) {
	name, provider, err := g.resolve(req.Model)
	if err != nil {
		return nil, err
	}

	compReq := llm.CompletionRequest{
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		Messages:     req.Messages,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	}
	if len(compReq.Messages) == 0 {
		compReq.Messages = []llm.Message{{Role: "user", Content: req.Prompt}}
	}

	start := time.Now()

	var resp *llm.CompletionResponse
	var lastErr error
	delay := g.retryDelay

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("retrying completion",
				"provider", name,
				"model", req.Model,
				"attempt", attempt,
				"error", lastErr,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, deadlineError(name, ctx.Err())
			}
			delay *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		resp, lastErr = provider.Complete(callCtx, compReq)
		cancel()

		if lastErr == nil {
			break
		}
		if errors.Is(lastErr, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			lastErr = deadlineError(name, lastErr)
		}
		if !llm.IsRetryable(lastErr) {
			return nil, lastErr
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}

	return &Result{
		Text:     resp.Content,
		Model:    resp.Model,
		Provider: name,
		Usage:    resp.Usage,
		Latency:  time.Since(start),
	}, nil
}

// resolve picks the provider for a model name. An empty model resolves to
// the fallback provider.
func (g *Gateway) resolve(model string) (string, llm.CompletionProvider, error) {
	for _, r := range g.routes {
		if strings.HasPrefix(model, r.prefix) {
			if p, ok := g.providers[r.provider]; ok {
				return r.provider, p, nil
			}
			return "", nil, &llm.Error{
				Code:    llm.ErrCodeInvalidModel,
				Message: fmt.Sprintf("model %q requires provider %q, which is not configured", model, r.provider),
			}
		}
	}

	if g.fallback != "" {
		if p, ok := g.providers[g.fallback]; ok {
			return g.fallback, p, nil
		}
	}

	return "", nil, &llm.Error{
		Code:    llm.ErrCodeInvalidModel,
		Message: fmt.Sprintf("no provider serves model %q", model),
	}
}

// deadlineError wraps a timed-out call in the shared taxonomy.
func deadlineError(provider string, cause error) *llm.Error {
	return &llm.Error{
		Code:    llm.ErrCodeTimeout,
		Message: fmt.Sprintf("%s: completion timed out: %v", provider, cause),
	}
}
