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

// Workflow is a stored graph definition. Definition holds the canvas
// JSON the graph package parses.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Definition  json.RawMessage `json:"definition"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

const workflowColumns = `id, name, description, definition, created_at, updated_at`

func scanWorkflow(row pgx.Row) (*Workflow, error) {
	var w Workflow
	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.Definition,
		&w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}
	return &w, nil
}

// CreateWorkflow stores a new workflow definition.
func (s *Store) CreateWorkflow(ctx context.Context, id, name, description string, definition json.RawMessage) (*Workflow, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO workflows (id, name, description, definition)
		VALUES ($1, $2, $3, $4)
		RETURNING `+workflowColumns,
		id, name, description, definition)
	return scanWorkflow(row)
}

// GetWorkflow fetches one workflow by id.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)
	return scanWorkflow(row)
}

// ListWorkflows returns every workflow, newest first.
func (s *Store) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+workflowColumns+` FROM workflows ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *w)
	}
	return workflows, rows.Err()
}

// UpdateWorkflow replaces a workflow's name, description, and definition.
func (s *Store) UpdateWorkflow(ctx context.Context, id, name, description string, definition json.RawMessage) (*Workflow, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE workflows
		SET name = $2, description = $3, definition = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+workflowColumns,
		id, name, description, definition)
	return scanWorkflow(row)
}

// DeleteWorkflow removes a workflow and, via cascade, its sessions and
// document links.
func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkDocument associates a document with a workflow; linked documents
// form the workflow's default retrieval scope.
func (s *Store) LinkDocument(ctx context.Context, workflowID, documentID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_documents (workflow_id, document_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		workflowID, documentID)
	if err != nil {
		return fmt.Errorf("failed to link document: %w", err)
	}
	return nil
}

// UnlinkDocument removes a workflow/document association.
func (s *Store) UnlinkDocument(ctx context.Context, workflowID, documentID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM workflow_documents
		WHERE workflow_id = $1 AND document_id = $2`,
		workflowID, documentID)
	if err != nil {
		return fmt.Errorf("failed to unlink document: %w", err)
	}
	return nil
}

// WorkflowDocumentIDs returns the ids of documents linked to a workflow,
// in link insertion order by document id.
func (s *Store) WorkflowDocumentIDs(ctx context.Context, workflowID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT document_id FROM workflow_documents
		WHERE workflow_id = $1
		ORDER BY document_id`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
