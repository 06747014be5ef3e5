//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package retrieval embeds a query and finds the most similar indexed
// chunks. The embedding provider must be the one used at ingestion time;
// mixing embedding spaces silently degrades search quality, so deployments
// configure a single provider for both paths.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowrag/flowrag-server/internal/llm"
	"github.com/flowrag/flowrag-server/internal/vector"
)

// Service runs similarity search over the chunk index.
type Service struct {
	embedder llm.EmbeddingProvider
	index    vector.Index
	logger   *slog.Logger
}

// NewService creates a retrieval service.
func NewService(embedder llm.EmbeddingProvider, index vector.Index, opts ...Option) *Service {
	s := &Service{
		embedder: embedder,
		index:    index,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Search embeds the query and returns up to limit chunks within scope
// scoring at or above threshold, ordered by descending similarity. An
// empty result is not an error.
func (s *Service) Search(
	ctx context.Context,
	query string,
	scope vector.Scope,
	limit int,
	threshold float64,
) ([]vector.Match, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := s.index.Search(ctx, embedding, scope, limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}

	s.logger.Debug("retrieval complete",
		"matches", len(matches),
		"limit", limit,
		"threshold", threshold,
	)
	return matches, nil
}
