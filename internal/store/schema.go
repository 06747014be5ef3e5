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
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the statements that bring an empty database up to the
// server's current shape. Statements are idempotent.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,

	`CREATE TABLE IF NOT EXISTS documents (
		id               TEXT PRIMARY KEY,
		filename         TEXT NOT NULL,
		byte_size        BIGINT NOT NULL DEFAULT 0,
		text_content     TEXT NOT NULL DEFAULT '',
		page_count       INTEGER NOT NULL DEFAULT 0,
		chunk_count      INTEGER NOT NULL DEFAULT 0,
		embedding_status TEXT NOT NULL DEFAULT 'pending',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS chunks (
		id          TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		content     TEXT NOT NULL,
		filename    TEXT NOT NULL DEFAULT '',
		embedding   VECTOR NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS chunks_document_id_idx ON chunks (document_id)`,

	`CREATE TABLE IF NOT EXISTS workflows (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		definition  JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS workflow_documents (
		workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		PRIMARY KEY (workflow_id, document_id)
	)`,

	`CREATE TABLE IF NOT EXISTS chat_sessions (
		id          TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
		title       TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS chat_messages (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		metadata   JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS chat_messages_session_id_idx ON chat_messages (session_id, created_at)`,
}

// EnsureSchema creates the tables the server needs if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
