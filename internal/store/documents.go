//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store runs all persistence for the server against one pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store on the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Document is uploaded source material and its ingestion state.
type Document struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	ByteSize        int64     `json:"byte_size"`
	Text            string    `json:"-"`
	PageCount       int       `json:"page_count"`
	ChunkCount      int       `json:"chunk_count"`
	EmbeddingStatus string    `json:"embedding_status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

const documentColumns = `id, filename, byte_size, page_count, chunk_count,
	embedding_status, created_at, updated_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Filename, &d.ByteSize, &d.PageCount,
		&d.ChunkCount, &d.EmbeddingStatus, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	return &d, nil
}

// CreateDocument inserts a freshly uploaded document in pending state.
func (s *Store) CreateDocument(ctx context.Context, id, filename string, byteSize int64) (*Document, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, filename, byte_size)
		VALUES ($1, $2, $3)
		RETURNING `+documentColumns,
		id, filename, byteSize)
	return scanDocument(row)
}

// GetDocument fetches one document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

// ListDocuments returns every document, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document. Its chunks and workflow links go
// with it via cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateEmbeddingStatus moves a document through its ingestion
// lifecycle.
func (s *Store) UpdateEmbeddingStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET embedding_status = $2, updated_at = now()
		WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update embedding status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetExtraction records the extracted text and chunking outcome of a
// successful ingestion.
func (s *Store) SetExtraction(ctx context.Context, id, text string, pageCount, chunkCount int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET text_content = $2, page_count = $3, chunk_count = $4, updated_at = now()
		WHERE id = $1`, id, text, pageCount, chunkCount)
	if err != nil {
		return fmt.Errorf("failed to record extraction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DocumentText returns a document's extracted text.
func (s *Store) DocumentText(ctx context.Context, id string) (string, error) {
	var text string
	err := s.pool.QueryRow(ctx,
		`SELECT text_content FROM documents WHERE id = $1`, id).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read document text: %w", err)
	}
	return text, nil
}
