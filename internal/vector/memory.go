//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process chunk index with brute-force cosine
// search. It backs tests and single-node deployments without PostgreSQL.
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks map[string][]Chunk // keyed by document id
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		chunks: make(map[string][]Chunk),
	}
}

// ReplaceDocument swaps the document's chunks for the given set.
func (x *MemoryIndex) ReplaceDocument(_ context.Context, documentID string, chunks []Chunk) error {
	copied := make([]Chunk, len(chunks))
	copy(copied, chunks)

	x.mu.Lock()
	defer x.mu.Unlock()
	if len(copied) == 0 {
		delete(x.chunks, documentID)
		return nil
	}
	x.chunks[documentID] = copied
	return nil
}

// DeleteDocument removes the document's chunks.
func (x *MemoryIndex) DeleteDocument(_ context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.chunks, documentID)
	return nil
}

// Search scores every chunk in scope against the embedding and returns
// the top matches at or above threshold.
func (x *MemoryIndex) Search(
	_ context.Context,
	embedding []float32,
	scope Scope,
	limit int,
	threshold float64,
) ([]Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	inScope := func(docID string) bool {
		if len(scope.DocumentIDs) == 0 {
			return true
		}
		for _, id := range scope.DocumentIDs {
			if id == docID {
				return true
			}
		}
		return false
	}

	var matches []Match
	for docID, chunks := range x.chunks {
		if !inScope(docID) {
			continue
		}
		for _, c := range chunks {
			score := cosineSimilarity(embedding, c.Embedding)
			if score >= threshold {
				matches = append(matches, Match{Chunk: c, Score: score})
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].DocumentID != matches[j].DocumentID {
			return matches[i].DocumentID < matches[j].DocumentID
		}
		return matches[i].Position < matches[j].Position
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Count returns the number of chunks indexed for the document.
func (x *MemoryIndex) Count(_ context.Context, documentID string) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks[documentID]), nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Ensure MemoryIndex implements the interface.
var _ Index = (*MemoryIndex)(nil)
