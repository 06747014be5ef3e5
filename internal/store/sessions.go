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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Session binds a conversation to one workflow. Sessions are append-only
// logs: messages are added, never rewritten.
type Session struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message is one entry in a session: the user's query or the run's
// response. Metadata carries the execution summary for response rows.
type Message struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Role      string          `json:"role"` // "user" or "assistant"
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateSession opens a new session on a workflow.
func (s *Store) CreateSession(ctx context.Context, id, workflowID, title string) (*Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chat_sessions (id, workflow_id, title)
		VALUES ($1, $2, $3)
		RETURNING id, workflow_id, title, created_at`,
		id, workflowID, title).
		Scan(&sess.ID, &sess.WorkflowID, &sess.Title, &sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &sess, nil
}

// GetSession fetches one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx, `
		SELECT id, workflow_id, title, created_at
		FROM chat_sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.WorkflowID, &sess.Title, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

// ListSessions returns a workflow's sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, workflowID string) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, workflow_id, title, created_at
		FROM chat_sessions
		WHERE workflow_id = $1
		ORDER BY created_at DESC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.WorkflowID, &sess.Title, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// AppendMessage adds one message to a session.
func (s *Store) AppendMessage(ctx context.Context, msg Message) (*Message, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Metadata).
		Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return &msg, nil
}

// ListMessages returns a session's messages in insertion order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, role, content, metadata, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content,
			&m.Metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
