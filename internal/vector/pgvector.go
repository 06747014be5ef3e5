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
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGIndex stores chunks in PostgreSQL with pgvector embeddings and runs
// similarity search with the cosine distance operator.
type PGIndex struct {
	pool *pgxpool.Pool
}

// NewPGIndex creates a chunk index backed by the given pool. The pool
// must have pgvector types registered.
func NewPGIndex(pool *pgxpool.Pool) *PGIndex {
	return &PGIndex{pool: pool}
}

// ReplaceDocument deletes the document's indexed chunks and inserts the
// new set in a single transaction.
func (x *PGIndex) ReplaceDocument(ctx context.Context, documentID string, chunks []Chunk) error {
	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to delete existing chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(
			`INSERT INTO chunks (id, document_id, position, content, filename, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.DocumentID, c.Position, c.Content, c.Filename,
			pgvector.NewVector(c.Embedding),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunk replacement: %w", err)
	}
	return nil
}

// DeleteDocument removes every chunk indexed for the document.
func (x *PGIndex) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := x.pool.Exec(ctx,
		`DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// Search runs a cosine similarity search. The score is 1 - distance so
// higher means more similar.
func (x *PGIndex) Search(
	ctx context.Context,
	embedding []float32,
	scope Scope,
	limit int,
	threshold float64,
) ([]Match, error) {
	query := `
		SELECT id, document_id, position, content, filename,
		       1 - (embedding <=> $1) AS score
		FROM chunks
		WHERE ($2::text[] IS NULL OR document_id = ANY($2))
		  AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1, document_id, position
		LIMIT $4`

	var docIDs []string
	if len(scope.DocumentIDs) > 0 {
		docIDs = scope.DocumentIDs
	}

	rows, err := x.pool.Query(ctx, query,
		pgvector.NewVector(embedding), docIDs, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Position, &m.Content,
			&m.Filename, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matches: %w", err)
	}

	return matches, nil
}

// Count returns the number of chunks indexed for the document.
func (x *PGIndex) Count(ctx context.Context, documentID string) (int, error) {
	var count int
	err := x.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Ensure PGIndex implements the interface.
var _ Index = (*PGIndex)(nil)
