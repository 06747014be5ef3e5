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
	"errors"
	"net/http"

	"github.com/flowrag/flowrag-server/internal/engine"
	"github.com/flowrag/flowrag-server/internal/graph"
	"github.com/flowrag/flowrag-server/internal/store"
	"github.com/flowrag/flowrag-server/internal/vector"
)

// ChatExecuteRequest is the body for executing a workflow against a query.
type ChatExecuteRequest struct {
	WorkflowID string `json:"workflow_id"`
	Query      string `json:"query"`

	// SessionID is optional; when set, the query and response are
	// appended to the session's history.
	SessionID string `json:"session_id,omitempty"`
}

// ChatExecuteResponse is the outcome of one workflow execution.
type ChatExecuteResponse struct {
	Response    string              `json:"response"`
	Status      engine.Status       `json:"status"`
	Metadata    engine.Metadata     `json:"execution_metadata"`
	NodeRecords []engine.NodeRecord `json:"node_records"`
	SessionID   string              `json:"session_id,omitempty"`
}

// handleChatExecute handles POST /v1/chat/execute.
func (s *Server) handleChatExecute(w http.ResponseWriter, r *http.Request) {
	var req ChatExecuteRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.WorkflowID == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"workflow_id is required")
		return
	}

	workflow, err := s.store.GetWorkflow(r.Context(), req.WorkflowID)
	if err != nil {
		s.respondStoreError(w, err, "workflow")
		return
	}

	if req.SessionID != "" {
		session, err := s.store.GetSession(r.Context(), req.SessionID)
		if err != nil {
			s.respondStoreError(w, err, "session")
			return
		}
		if session.WorkflowID != workflow.ID {
			s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
				"session belongs to a different workflow")
			return
		}
	}

	g, err := graph.Parse(workflow.Definition)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_WORKFLOW",
			"invalid workflow definition: "+err.Error())
		return
	}

	documentIDs, err := s.store.WorkflowDocumentIDs(r.Context(), workflow.ID)
	if err != nil {
		s.respondStoreError(w, err, "workflow documents")
		return
	}

	trace, err := s.executor.Execute(r.Context(), engine.Request{
		Graph: g,
		Query: req.Query,
		Scope: vector.Scope{DocumentIDs: documentIDs},
	})
	if err != nil {
		var valErr *graph.ValidationError
		if errors.As(err, &valErr) {
			s.respondJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{
					Code:    "INVALID_WORKFLOW",
					Message: valErr.Error(),
					Details: valErr.Violations,
				},
			})
			return
		}
		s.logger.Error("execution failed",
			"workflow_id", workflow.ID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "EXECUTION_ERROR", err.Error())
		return
	}

	if req.SessionID != "" {
		s.appendMessage(r, store.Message{
			SessionID: req.SessionID,
			Role:      "user",
			Content:   req.Query,
		})

		metadata, merr := json.Marshal(trace.Metadata)
		if merr != nil {
			metadata = nil
		}
		s.appendMessage(r, store.Message{
			SessionID: req.SessionID,
			Role:      "assistant",
			Content:   trace.Output,
			Metadata:  metadata,
		})
	}

	s.respondJSON(w, http.StatusOK, ChatExecuteResponse{
		Response:    trace.Output,
		Status:      trace.Status,
		Metadata:    trace.Metadata,
		NodeRecords: trace.Records,
		SessionID:   req.SessionID,
	})
}
