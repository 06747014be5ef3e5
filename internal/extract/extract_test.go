//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestForFilename(t *testing.T) {
	if _, ok := ForFilename("report.pdf").(*PDFExtractor); !ok {
		t.Error("expected PDF extractor for .pdf")
	}
	if _, ok := ForFilename("Report.PDF").(*PDFExtractor); !ok {
		t.Error("expected PDF extractor for .PDF")
	}
	if _, ok := ForFilename("notes.txt").(*TextExtractor); !ok {
		t.Error("expected text extractor for .txt")
	}
	if _, ok := ForFilename("README.md").(*TextExtractor); !ok {
		t.Error("expected text extractor for .md")
	}
}

func TestTextExtractor(t *testing.T) {
	result, err := (&TextExtractor{}).Extract("notes.txt", []byte("  hello world  \n"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Text != "hello world" {
		t.Errorf("expected trimmed text, got %q", result.Text)
	}
	if result.PageCount != 1 {
		t.Errorf("expected 1 page, got %d", result.PageCount)
	}
}

func TestTextExtractor_PageCount(t *testing.T) {
	long := strings.Repeat("a", 3001)
	result, err := (&TextExtractor{}).Extract("big.txt", []byte(long))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.PageCount != 2 {
		t.Errorf("expected 2 pages for %d chars, got %d", len(long), result.PageCount)
	}
}

func TestTextExtractor_Empty(t *testing.T) {
	_, err := (&TextExtractor{}).Extract("empty.txt", []byte("   \n\t"))
	if err == nil {
		t.Fatal("expected error for empty document")
	}

	var extractErr *Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if extractErr.Filename != "empty.txt" {
		t.Errorf("expected filename in error, got %q", extractErr.Filename)
	}
}

func TestPDFExtractor_InvalidBytes(t *testing.T) {
	_, err := (&PDFExtractor{}).Extract("bad.pdf", []byte("this is not a pdf"))
	if err == nil {
		t.Fatal("expected error for invalid PDF bytes")
	}

	var extractErr *Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
}
