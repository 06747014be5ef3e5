//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package extract turns uploaded document bytes into plain text plus a
// page count.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Result is the extracted form of a document.
type Result struct {
	Text      string
	PageCount int
}

// Error marks a failed extraction. Ingestion treats it as fatal for the
// document.
type Error struct {
	Filename string
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to extract text from %s: %v", e.Filename, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Extractor produces plain text from one document format.
type Extractor interface {
	// Extract returns the document's text and page count.
	Extract(filename string, data []byte) (*Result, error)
}

// ForFilename picks the extractor for a file by extension. Anything that
// is not a PDF is treated as plain text.
func ForFilename(filename string) Extractor {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return &PDFExtractor{}
	}
	return &TextExtractor{}
}

// TextExtractor passes plain text documents through unchanged.
type TextExtractor struct{}

// Extract returns the bytes as text. Page count approximates one page
// per 3000 characters, matching what pagination-free formats report.
func (t *TextExtractor) Extract(filename string, data []byte) (*Result, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, &Error{Filename: filename, Cause: fmt.Errorf("document contains no text")}
	}

	pages := (len(text) + 2999) / 3000
	return &Result{Text: text, PageCount: pages}, nil
}
