//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package engine

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/flowrag/flowrag-server/internal/graph"
	"github.com/flowrag/flowrag-server/internal/vector"
)

// render formats the output node's body per its configuration.
func render(cfg graph.OutputConfig, body string, sources []vector.Match, started time.Time) string {
	var b strings.Builder

	switch cfg.Format {
	case graph.FormatHTML:
		b.WriteString(html.EscapeString(body))
	default:
		// text and markdown both pass the body through unchanged; the
		// client decides how to display markdown.
		b.WriteString(body)
	}

	if cfg.ShowSources && len(sources) > 0 {
		b.WriteString(sourcesSection(cfg.Format, sources))
	}

	if cfg.ShowExecutionTime {
		elapsed := time.Since(started).Round(time.Millisecond)
		fmt.Fprintf(&b, "\n\nExecution time: %s", elapsed)
	}

	return b.String()
}

// sourcesSection lists each distinct source document once, keeping the
// best score, in retrieval order.
func sourcesSection(format string, sources []vector.Match) string {
	type source struct {
		label string
		score float64
	}

	seen := make(map[string]int)
	var ordered []source
	for _, m := range sources {
		label := m.Filename
		if label == "" {
			label = m.DocumentID
		}
		if i, ok := seen[m.DocumentID]; ok {
			if m.Score > ordered[i].score {
				ordered[i].score = m.Score
			}
			continue
		}
		seen[m.DocumentID] = len(ordered)
		ordered = append(ordered, source{label: label, score: m.Score})
	}

	var b strings.Builder
	if format == graph.FormatMarkdown {
		b.WriteString("\n\n---\n**Sources:**\n")
	} else {
		b.WriteString("\n\nSources:\n")
	}
	for i, s := range ordered {
		if format == graph.FormatHTML {
			fmt.Fprintf(&b, "%d. %s (relevance: %.2f)\n", i+1, html.EscapeString(s.label), s.score)
		} else {
			fmt.Fprintf(&b, "%d. %s (relevance: %.2f)\n", i+1, s.label, s.score)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
