//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package server provides the HTTP server for the FlowRAG API.
package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flowrag/flowrag-server/internal/config"
	"github.com/flowrag/flowrag-server/internal/engine"
	"github.com/flowrag/flowrag-server/internal/ingest"
	"github.com/flowrag/flowrag-server/internal/store"
)

// DocumentStore is the document persistence the server depends on.
type DocumentStore interface {
	CreateDocument(ctx context.Context, id, filename string, byteSize int64) (*store.Document, error)
	GetDocument(ctx context.Context, id string) (*store.Document, error)
	ListDocuments(ctx context.Context) ([]store.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	DocumentText(ctx context.Context, id string) (string, error)
}

// WorkflowStore is the workflow persistence the server depends on.
type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, id, name, description string, definition json.RawMessage) (*store.Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*store.Workflow, error)
	ListWorkflows(ctx context.Context) ([]store.Workflow, error)
	UpdateWorkflow(ctx context.Context, id, name, description string, definition json.RawMessage) (*store.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
	LinkDocument(ctx context.Context, workflowID, documentID string) error
	UnlinkDocument(ctx context.Context, workflowID, documentID string) error
	WorkflowDocumentIDs(ctx context.Context, workflowID string) ([]string, error)
}

// SessionStore is the chat session persistence the server depends on.
type SessionStore interface {
	CreateSession(ctx context.Context, id, workflowID, title string) (*store.Session, error)
	GetSession(ctx context.Context, id string) (*store.Session, error)
	ListSessions(ctx context.Context, workflowID string) ([]store.Session, error)
	AppendMessage(ctx context.Context, msg store.Message) (*store.Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]store.Message, error)
}

// Store combines the persistence interfaces. *store.Store satisfies it.
type Store interface {
	DocumentStore
	WorkflowStore
	SessionStore
}

// Executor runs workflow graphs.
type Executor interface {
	Execute(ctx context.Context, req engine.Request) (*engine.Trace, error)
}

// Ingestor feeds documents into the vector index.
type Ingestor interface {
	Ingest(ctx context.Context, doc ingest.Document) (*ingest.Result, error)
	IngestText(ctx context.Context, documentID, filename, text string, pageCount int) (*ingest.Result, error)
	Remove(ctx context.Context, documentID string) error
}

// Server is the HTTP server for the FlowRAG API.
type Server struct {
	config   *config.Config
	store    Store
	executor Executor
	ingestor Ingestor
	logger   *slog.Logger
	server   *http.Server
	mux      *http.ServeMux
}

// New creates a new HTTP server.
func New(cfg *config.Config, st Store, ex Executor, ing Ingestor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   cfg,
		store:    st,
		executor: ex,
		ingestor: ing,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	s.setupRoutes()

	return s
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.ListenAddress, s.config.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.applyMiddleware(s.mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting server",
		"address", addr,
		"tls", s.config.Server.TLS.Enabled)

	if s.config.Server.TLS.Enabled {
		return s.serveTLS()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return s.server.Serve(listener)
}

// serveTLS starts the server with TLS.
func (s *Server) serveTLS() error {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	s.server.TLSConfig = tlsCfg

	return s.server.ListenAndServeTLS(
		s.config.Server.TLS.CertFile,
		s.config.Server.TLS.KeyFile,
	)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}

	return nil
}

// Addr returns the server's address. Returns empty string if not started.
func (s *Server) Addr() string {
	if s.server != nil {
		return s.server.Addr
	}
	return ""
}
