//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package ingest turns uploaded documents into embedded chunks in the
// vector index.
package ingest

import "strings"

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// Chunker splits document text into overlapping slices. Cut points
// prefer a paragraph or sentence boundary in the back half of the chunk
// so no chunk starts mid-sentence more often than the text forces it to.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. Non-positive size or overlap fall back
// to the defaults; overlap is capped below half the chunk size so the
// window always advances.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap <= 0 {
		overlap = defaultChunkOverlap
	}
	if overlap >= size/2 {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split returns the text's chunks in document order. Whitespace-only
// slices are dropped.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + c.size
		if end >= len(text) {
			end = len(text)
		} else {
			end = c.snapToBoundary(text, start, end)
		}

		piece := strings.TrimSpace(text[start:end])
		if piece != "" {
			chunks = append(chunks, piece)
		}

		if end == len(text) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// snapToBoundary moves the cut point back to the nearest paragraph break
// or sentence end, as long as that keeps more than half the chunk.
func (c *Chunker) snapToBoundary(text string, start, end int) int {
	window := text[start:end]
	half := c.size / 2

	if i := strings.LastIndex(window, "\n\n"); i > half {
		return start + i + 2
	}
	if i := strings.LastIndex(window, ". "); i > half {
		return start + i + 2
	}
	if i := strings.LastIndex(window, "\n"); i > half {
		return start + i + 1
	}
	return end
}
