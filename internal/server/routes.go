//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// API v1 routes
	s.mux.HandleFunc("GET /v1/health", s.handleHealth)

	s.mux.HandleFunc("GET /v1/workflows", s.handleListWorkflows)
	s.mux.HandleFunc("POST /v1/workflows", s.handleCreateWorkflow)
	s.mux.HandleFunc("POST /v1/workflows/validate", s.handleValidateWorkflow)
	s.mux.HandleFunc("GET /v1/workflows/{id}", s.handleGetWorkflow)
	s.mux.HandleFunc("PUT /v1/workflows/{id}", s.handleUpdateWorkflow)
	s.mux.HandleFunc("DELETE /v1/workflows/{id}", s.handleDeleteWorkflow)
	s.mux.HandleFunc("GET /v1/workflows/{id}/documents", s.handleWorkflowDocuments)
	s.mux.HandleFunc("POST /v1/workflows/{id}/documents/{documentID}", s.handleLinkDocument)
	s.mux.HandleFunc("DELETE /v1/workflows/{id}/documents/{documentID}", s.handleUnlinkDocument)

	s.mux.HandleFunc("GET /v1/documents", s.handleListDocuments)
	s.mux.HandleFunc("POST /v1/documents", s.handleUploadDocument)
	s.mux.HandleFunc("GET /v1/documents/{id}", s.handleGetDocument)
	s.mux.HandleFunc("DELETE /v1/documents/{id}", s.handleDeleteDocument)
	s.mux.HandleFunc("POST /v1/documents/{id}/reingest", s.handleReingestDocument)

	s.mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("GET /v1/sessions/{id}/messages", s.handleListMessages)

	s.mux.HandleFunc("POST /v1/chat/execute", s.handleChatExecute)
}
