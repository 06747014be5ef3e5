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
	"time"

	"github.com/flowrag/flowrag-server/internal/graph"
)

// Status is the overall outcome of one run.
type Status string

const (
	// StatusSuccess: every node ran clean.
	StatusSuccess Status = "success"

	// StatusPartial: the run produced output but some node degraded or a
	// dead-end branch failed.
	StatusPartial Status = "partial"

	// StatusFailed: a node on the path to the output failed, or the run
	// was cancelled.
	StatusFailed Status = "failed"
)

// NodeRecord is one node's trace entry.
type NodeRecord struct {
	NodeID  string        `json:"node_id"`
	Kind    graph.Kind    `json:"kind"`
	Input   string        `json:"input,omitempty"`
	Output  string        `json:"output,omitempty"`
	Elapsed time.Duration `json:"elapsed"`

	// Error is the node's failure, verbatim. A non-empty error with
	// Skipped false means the node ran and failed or degraded.
	Error string `json:"error,omitempty"`

	// ErrorCode carries the failure classification when one exists
	// (e.g. rate_limited, invalid_model).
	ErrorCode string `json:"error_code,omitempty"`

	// Warning records a non-fatal degradation, such as a web search
	// that could not run.
	Warning string `json:"warning,omitempty"`

	// Skipped means an upstream failure prevented the node from running.
	Skipped bool `json:"skipped,omitempty"`
}

// Metadata is the run summary handed back with the formatted response.
type Metadata struct {
	Model              string        `json:"model,omitempty"`
	Provider           string        `json:"provider,omitempty"`
	WebSearchPerformed bool          `json:"web_search_performed"`
	RetrievedChunks    int           `json:"retrieved_chunks"`
	TotalTokens        int           `json:"total_tokens,omitempty"`
	Elapsed            time.Duration `json:"elapsed"`
}

// Trace is the full record of one execution: per-node entries in
// topological order, the final formatted output, and the overall status.
type Trace struct {
	Records  []NodeRecord `json:"records"`
	Output   string       `json:"output"`
	Status   Status       `json:"status"`
	Metadata Metadata     `json:"metadata"`
}

// Record returns the trace entry for a node id, or nil.
func (t *Trace) Record(nodeID string) *NodeRecord {
	for i := range t.Records {
		if t.Records[i].NodeID == nodeID {
			return &t.Records[i]
		}
	}
	return nil
}
