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
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor pulls plain text out of PDF documents.
type PDFExtractor struct{}

// Extract parses the PDF and concatenates the text of every page.
func (p *PDFExtractor) Extract(filename string, data []byte) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &Error{Filename: filename, Cause: fmt.Errorf("failed to parse PDF: %w", err)}
	}

	plainText, err := reader.GetPlainText()
	if err != nil {
		return nil, &Error{Filename: filename, Cause: fmt.Errorf("failed to read PDF text: %w", err)}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plainText); err != nil {
		return nil, &Error{Filename: filename, Cause: fmt.Errorf("failed to read PDF text: %w", err)}
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return nil, &Error{Filename: filename, Cause: fmt.Errorf("PDF contains no extractable text")}
	}

	return &Result{Text: text, PageCount: reader.NumPage()}, nil
}
