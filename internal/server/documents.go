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
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/flowrag/flowrag-server/internal/ingest"
	"github.com/flowrag/flowrag-server/internal/store"
)

// maxUploadBytes caps document uploads at 50 MB.
const maxUploadBytes = 50 << 20

// ingestTimeout bounds a background ingestion run.
const ingestTimeout = 10 * time.Minute

// DocumentsResponse is the response for the list documents endpoint.
type DocumentsResponse struct {
	Documents []store.Document `json:"documents"`
}

// handleListDocuments handles GET /v1/documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := s.store.ListDocuments(r.Context())
	if err != nil {
		s.respondStoreError(w, err, "documents")
		return
	}
	if documents == nil {
		documents = []store.Document{}
	}
	s.respondJSON(w, http.StatusOK, DocumentsResponse{Documents: documents})
}

// handleUploadDocument handles POST /v1/documents. The upload is a
// multipart form with a single "file" field. The document row is created
// immediately with a pending status; extraction and embedding run in the
// background and the caller polls the status.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"multipart field 'file' is required: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"failed to read upload: "+err.Error())
		return
	}
	if len(data) == 0 {
		s.respondError(w, http.StatusBadRequest, "INVALID_REQUEST",
			"uploaded file is empty")
		return
	}

	doc, err := s.store.CreateDocument(r.Context(),
		uuid.NewString(), header.Filename, int64(len(data)))
	if err != nil {
		s.respondStoreError(w, err, "document")
		return
	}

	go s.ingestInBackground(doc.ID, doc.Filename, data)

	s.respondJSON(w, http.StatusAccepted, doc)
}

// ingestInBackground runs ingestion detached from the upload request.
// Failures are recorded on the document's embedding status.
func (s *Server) ingestInBackground(id, filename string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	_, err := s.ingestor.Ingest(ctx, ingest.Document{
		ID:       id,
		Filename: filename,
		Data:     data,
	})
	if err != nil {
		s.logger.Error("ingestion failed",
			"document_id", id,
			"filename", filename,
			"error", err)
	}
}

// handleGetDocument handles GET /v1/documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondStoreError(w, err, "document")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument handles DELETE /v1/documents/{id}. The chunks
// leave the index first so searches never match a document that is gone.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := s.store.GetDocument(r.Context(), id); err != nil {
		s.respondStoreError(w, err, "document")
		return
	}

	if err := s.ingestor.Remove(r.Context(), id); err != nil {
		s.logger.Error("failed to remove document chunks",
			"document_id", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	if err := s.store.DeleteDocument(r.Context(), id); err != nil {
		s.respondStoreError(w, err, "document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReingestDocument handles POST /v1/documents/{id}/reingest. The
// original upload bytes are not retained, so the run re-chunks and
// re-embeds the stored extracted text.
func (s *Server) handleReingestDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "document")
		return
	}

	text, err := s.store.DocumentText(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "document")
		return
	}
	if text == "" {
		s.respondError(w, http.StatusConflict, "NOT_INGESTED",
			"document has no extracted text to re-ingest")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()

		_, err := s.ingestor.IngestText(ctx, doc.ID, doc.Filename, text, doc.PageCount)
		if err != nil {
			s.logger.Error("re-ingestion failed",
				"document_id", doc.ID, "error", err)
		}
	}()

	s.respondJSON(w, http.StatusAccepted, doc)
}
