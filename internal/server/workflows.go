//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/flowrag/flowrag-server/internal/graph"
	"github.com/flowrag/flowrag-server/internal/store"
)

// WorkflowRequest is the body for creating or updating a workflow.
type WorkflowRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Definition  json.RawMessage `json:"definition"`
}

// WorkflowsResponse is the response for the list workflows endpoint.
type WorkflowsResponse struct {
	Workflows []store.Workflow `json:"workflows"`
}

// ValidateRequest is the body for the workflow validation endpoint.
type ValidateRequest struct {
	Definition json.RawMessage `json:"definition"`
}

// ValidateResponse reports the outcome of workflow validation.
type ValidateResponse struct {
	Valid      bool              `json:"valid"`
	Violations []graph.Violation `json:"violations"`
}

// WorkflowDocumentsResponse lists the documents linked to a workflow.
type WorkflowDocumentsResponse struct {
	DocumentIDs []string `json:"document_ids"`
}

// parseDefinition parses and structurally checks a workflow definition.
// Violations are reported to the client; a nil graph means a response
// was already written.
func (s *Server) parseDefinition(w http.ResponseWriter, definition json.RawMessage) *graph.Graph {
	if len(definition) == 0 {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"definition is required")
		return nil
	}

	g, err := graph.Parse(definition)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"invalid definition: "+err.Error())
		return nil
	}

	if result := graph.Validate(g); !result.Valid() {
		s.respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_WORKFLOW",
				Message: "workflow definition failed validation",
				Details: result.Violations,
			},
		})
		return nil
	}
	return g
}

// handleListWorkflows handles GET /v1/workflows.
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.store.ListWorkflows(r.Context())
	if err != nil {
		s.respondStoreError(w, err, "workflows")
		return
	}
	if workflows == nil {
		workflows = []store.Workflow{}
	}
	s.respondJSON(w, http.StatusOK, WorkflowsResponse{Workflows: workflows})
}

// handleCreateWorkflow handles POST /v1/workflows.
func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req WorkflowRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required")
		return
	}
	if s.parseDefinition(w, req.Definition) == nil {
		return
	}

	workflow, err := s.store.CreateWorkflow(r.Context(),
		uuid.NewString(), req.Name, req.Description, req.Definition)
	if err != nil {
		s.respondStoreError(w, err, "workflow")
		return
	}
	s.respondJSON(w, http.StatusCreated, workflow)
}

// handleValidateWorkflow handles POST /v1/workflows/validate. Structural
// problems in the definition are reported as violations rather than an
// error so the caller can surface them in an editor.
func (s *Server) handleValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	g, err := graph.Parse(req.Definition)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"invalid definition: "+err.Error())
		return
	}

	result := graph.Validate(g)
	violations := result.Violations
	if violations == nil {
		violations = []graph.Violation{}
	}
	s.respondJSON(w, http.StatusOK, ValidateResponse{
		Valid:      result.Valid(),
		Violations: violations,
	})
}

// handleGetWorkflow handles GET /v1/workflows/{id}.
func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	workflow, err := s.store.GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondStoreError(w, err, "workflow")
		return
	}
	s.respondJSON(w, http.StatusOK, workflow)
}

// handleUpdateWorkflow handles PUT /v1/workflows/{id}.
func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req WorkflowRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required")
		return
	}
	if s.parseDefinition(w, req.Definition) == nil {
		return
	}

	workflow, err := s.store.UpdateWorkflow(r.Context(),
		r.PathValue("id"), req.Name, req.Description, req.Definition)
	if err != nil {
		s.respondStoreError(w, err, "workflow")
		return
	}
	s.respondJSON(w, http.StatusOK, workflow)
}

// handleDeleteWorkflow handles DELETE /v1/workflows/{id}.
func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteWorkflow(r.Context(), r.PathValue("id")); err != nil {
		s.respondStoreError(w, err, "workflow")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWorkflowDocuments handles GET /v1/workflows/{id}/documents.
func (s *Server) handleWorkflowDocuments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetWorkflow(r.Context(), id); err != nil {
		s.respondStoreError(w, err, "workflow")
		return
	}

	ids, err := s.store.WorkflowDocumentIDs(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "workflow documents")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.respondJSON(w, http.StatusOK, WorkflowDocumentsResponse{DocumentIDs: ids})
}

// handleLinkDocument handles POST /v1/workflows/{id}/documents/{documentID}.
func (s *Server) handleLinkDocument(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("id")
	documentID := r.PathValue("documentID")

	if _, err := s.store.GetWorkflow(r.Context(), workflowID); err != nil {
		s.respondStoreError(w, err, "workflow")
		return
	}
	if _, err := s.store.GetDocument(r.Context(), documentID); err != nil {
		s.respondStoreError(w, err, "document")
		return
	}

	if err := s.store.LinkDocument(r.Context(), workflowID, documentID); err != nil {
		s.respondStoreError(w, err, "workflow document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUnlinkDocument handles DELETE /v1/workflows/{id}/documents/{documentID}.
func (s *Server) handleUnlinkDocument(w http.ResponseWriter, r *http.Request) {
	err := s.store.UnlinkDocument(r.Context(),
		r.PathValue("id"), r.PathValue("documentID"))
	if err != nil {
		s.respondStoreError(w, err, "workflow document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
