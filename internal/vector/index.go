//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package vector stores document chunks with their embeddings and serves
// nearest-neighbor search over them.
package vector

import "context"

// Chunk is one indexed slice of a document.
type Chunk struct {
	ID         string
	DocumentID string

	// Position is the chunk's ordinal within its source document.
	Position int

	Content   string
	Filename  string
	Embedding []float32
}

// Match is a chunk returned from a similarity search.
type Match struct {
	Chunk

	// Score is cosine similarity in [0, 1], higher is more similar.
	Score float64
}

// Scope restricts a search to specific documents. A zero Scope searches
// every indexed chunk.
type Scope struct {
	DocumentIDs []string
}

// Index is the storage contract for chunk embeddings.
type Index interface {
	// ReplaceDocument atomically removes every chunk indexed for the
	// document and inserts the given chunks in their place. Either all
	// chunks land or none do.
	ReplaceDocument(ctx context.Context, documentID string, chunks []Chunk) error

	// DeleteDocument removes every chunk indexed for the document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Search returns up to limit chunks within scope whose similarity to
	// the embedding is at least threshold, ordered by descending score.
	// Ties break by chunk position within the source document.
	Search(ctx context.Context, embedding []float32, scope Scope, limit int, threshold float64) ([]Match, error)

	// Count returns the number of chunks indexed for the document.
	Count(ctx context.Context, documentID string) (int, error)
}
