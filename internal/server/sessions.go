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
	"net/http"

	"github.com/google/uuid"

	"github.com/flowrag/flowrag-server/internal/store"
)

// SessionRequest is the body for creating a chat session.
type SessionRequest struct {
	WorkflowID string `json:"workflow_id"`
	Title      string `json:"title"`
}

// SessionsResponse is the response for the list sessions endpoint.
type SessionsResponse struct {
	Sessions []store.Session `json:"sessions"`
}

// MessagesResponse is the response for the list messages endpoint.
type MessagesResponse struct {
	Messages []store.Message `json:"messages"`
}

// handleListSessions handles GET /v1/sessions. An optional workflow_id
// query parameter narrows the listing to one workflow.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context(), r.URL.Query().Get("workflow_id"))
	if err != nil {
		s.respondStoreError(w, err, "sessions")
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	s.respondJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions})
}

// handleCreateSession handles POST /v1/sessions.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.WorkflowID == "" {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"workflow_id is required")
		return
	}

	if _, err := s.store.GetWorkflow(r.Context(), req.WorkflowID); err != nil {
		s.respondStoreError(w, err, "workflow")
		return
	}

	session, err := s.store.CreateSession(r.Context(),
		uuid.NewString(), req.WorkflowID, req.Title)
	if err != nil {
		s.respondStoreError(w, err, "session")
		return
	}
	s.respondJSON(w, http.StatusCreated, session)
}

// handleGetSession handles GET /v1/sessions/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondStoreError(w, err, "session")
		return
	}
	s.respondJSON(w, http.StatusOK, session)
}

// handleListMessages handles GET /v1/sessions/{id}/messages.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetSession(r.Context(), id); err != nil {
		s.respondStoreError(w, err, "session")
		return
	}

	messages, err := s.store.ListMessages(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "messages")
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	s.respondJSON(w, http.StatusOK, MessagesResponse{Messages: messages})
}

// appendMessage persists one chat message, logging rather than failing
// the request when persistence is unavailable.
func (s *Server) appendMessage(r *http.Request, msg store.Message) {
	msg.ID = uuid.NewString()
	if _, err := s.store.AppendMessage(r.Context(), msg); err != nil {
		s.logger.Error("failed to append message",
			"session_id", msg.SessionID,
			"role", msg.Role,
			"error", err)
	}
}
