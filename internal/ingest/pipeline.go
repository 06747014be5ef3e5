//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/flowrag/flowrag-server/internal/extract"
	"github.com/flowrag/flowrag-server/internal/llm"
	"github.com/flowrag/flowrag-server/internal/vector"
)

// Document embedding statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Error marks a failed ingestion attempt. The document ends up in the
// failed state with no chunks from this attempt indexed.
type Error struct {
	DocumentID string
	Stage      string // "extract", "embed", or "index"
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ingestion of document %s failed at %s: %v", e.DocumentID, e.Stage, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Document is the input to an ingestion run.
type Document struct {
	ID       string
	Filename string
	Data     []byte
}

// Result summarizes a completed ingestion.
type Result struct {
	DocumentID string
	ChunkCount int
	PageCount  int
	TextLength int
}

// StatusStore persists document lifecycle transitions. Implementations
// may also record chunk counts and extraction metadata.
type StatusStore interface {
	UpdateEmbeddingStatus(ctx context.Context, documentID, status string) error
	SetExtraction(ctx context.Context, documentID, text string, pageCount, chunkCount int) error
}

// Pipeline turns one document into indexed chunks. Re-ingesting a
// document replaces its previous chunks; concurrent attempts for the
// same document serialize on a per-document lock.
type Pipeline struct {
	embedder llm.EmbeddingProvider
	index    vector.Index
	statuses StatusStore
	chunker  *Chunker
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*documentLock
}

// documentLock serializes work on one document. Entries are refcounted
// so the lock map does not grow with every document ever ingested.
type documentLock struct {
	mu   sync.Mutex
	refs int
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(
	embedder llm.EmbeddingProvider,
	index vector.Index,
	statuses StatusStore,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		embedder: embedder,
		index:    index,
		statuses: statuses,
		chunker:  NewChunker(defaultChunkSize, defaultChunkOverlap),
		logger:   slog.Default(),
		locks:    make(map[string]*documentLock),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithChunker sets the chunker.
func WithChunker(chunker *Chunker) Option {
	return func(p *Pipeline) {
		p.chunker = chunker
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// acquireLock blocks until the caller holds the document's lock.
func (p *Pipeline) acquireLock(documentID string) *documentLock {
	p.mu.Lock()
	lock, ok := p.locks[documentID]
	if !ok {
		lock = &documentLock{}
		p.locks[documentID] = lock
	}
	lock.refs++
	p.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// releaseLock unlocks the document's lock and drops the map entry once
// no other goroutine is waiting on it.
func (p *Pipeline) releaseLock(documentID string, lock *documentLock) {
	lock.mu.Unlock()

	p.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(p.locks, documentID)
	}
	p.mu.Unlock()
}

// Ingest extracts, chunks, embeds, and indexes one document. The run is
// all-or-nothing: any failure marks the document failed and leaves the
// index without chunks from this attempt (a previous successful run's
// chunks survive a failed re-ingestion).
func (p *Pipeline) Ingest(ctx context.Context, doc Document) (*Result, error) {
	return p.withLifecycle(ctx, doc.ID, doc.Filename, func() (*Result, error) {
		extracted, err := extract.ForFilename(doc.Filename).Extract(doc.Filename, doc.Data)
		if err != nil {
			return nil, &Error{DocumentID: doc.ID, Stage: "extract", Cause: err}
		}
		return p.run(ctx, doc.ID, doc.Filename, extracted)
	})
}

// IngestText re-chunks, re-embeds, and re-indexes a document from text
// that was already extracted, skipping the extraction stage. Used when
// re-ingesting a document whose original bytes are no longer held.
func (p *Pipeline) IngestText(ctx context.Context, documentID, filename, text string, pageCount int) (*Result, error) {
	return p.withLifecycle(ctx, documentID, filename, func() (*Result, error) {
		return p.run(ctx, documentID, filename,
			&extract.Result{Text: text, PageCount: pageCount})
	})
}

// withLifecycle serializes runs per document and keeps the embedding
// status in step with the outcome.
func (p *Pipeline) withLifecycle(ctx context.Context, documentID, filename string,
	fn func() (*Result, error)) (*Result, error) {
	lock := p.acquireLock(documentID)
	defer p.releaseLock(documentID, lock)

	if err := p.statuses.UpdateEmbeddingStatus(ctx, documentID, StatusProcessing); err != nil {
		return nil, fmt.Errorf("failed to mark document processing: %w", err)
	}

	result, err := fn()
	if err != nil {
		if statusErr := p.statuses.UpdateEmbeddingStatus(ctx, documentID, StatusFailed); statusErr != nil {
			p.logger.Error("failed to mark document failed",
				"document_id", documentID,
				"error", statusErr,
			)
		}
		return nil, err
	}

	p.logger.Info("document ingested",
		"document_id", documentID,
		"filename", filename,
		"chunks", result.ChunkCount,
		"pages", result.PageCount,
	)
	return result, nil
}

// run performs the post-extraction stages without touching lifecycle state.
func (p *Pipeline) run(ctx context.Context, documentID, filename string,
	extracted *extract.Result) (*Result, error) {
	pieces := p.chunker.Split(extracted.Text)
	if len(pieces) == 0 {
		return nil, &Error{DocumentID: documentID, Stage: "extract",
			Cause: fmt.Errorf("document produced no chunks")}
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return nil, &Error{DocumentID: documentID, Stage: "embed", Cause: err}
	}
	if len(embeddings) != len(pieces) {
		return nil, &Error{DocumentID: documentID, Stage: "embed",
			Cause: fmt.Errorf("expected %d embeddings, got %d", len(pieces), len(embeddings))}
	}

	chunks := make([]vector.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = vector.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Position:   i,
			Content:    piece,
			Filename:   filename,
			Embedding:  embeddings[i],
		}
	}

	if err := p.index.ReplaceDocument(ctx, documentID, chunks); err != nil {
		return nil, &Error{DocumentID: documentID, Stage: "index", Cause: err}
	}

	if err := p.statuses.SetExtraction(ctx, documentID, extracted.Text,
		extracted.PageCount, len(chunks)); err != nil {
		return nil, fmt.Errorf("failed to record extraction: %w", err)
	}
	if err := p.statuses.UpdateEmbeddingStatus(ctx, documentID, StatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to mark document completed: %w", err)
	}

	return &Result{
		DocumentID: documentID,
		ChunkCount: len(chunks),
		PageCount:  extracted.PageCount,
		TextLength: len(extracted.Text),
	}, nil
}

// Remove deletes a document's chunks from the index. Called when the
// document itself is deleted.
func (p *Pipeline) Remove(ctx context.Context, documentID string) error {
	lock := p.acquireLock(documentID)
	defer p.releaseLock(documentID, lock)

	if err := p.index.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to remove document chunks: %w", err)
	}
	return nil
}
