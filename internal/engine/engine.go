//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package engine runs a query through a validated workflow graph and
// produces an execution trace.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowrag/flowrag-server/internal/graph"
	"github.com/flowrag/flowrag-server/internal/llm"
	"github.com/flowrag/flowrag-server/internal/llm/gateway"
	"github.com/flowrag/flowrag-server/internal/vector"
	"github.com/flowrag/flowrag-server/internal/websearch"
)

// ErrInvalidInput marks a query rejected by an intake node's validation.
var ErrInvalidInput = errors.New("invalid input")

// Retriever finds indexed chunks similar to a query.
type Retriever interface {
	Search(ctx context.Context, query string, scope vector.Scope, limit int, threshold float64) ([]vector.Match, error)
}

// Generator produces model completions addressed by model name.
type Generator interface {
	Generate(ctx context.Context, req gateway.Request) (*gateway.Result, error)
}

// WebSearcher fetches live web snippets.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]websearch.Snippet, error)
}

// Engine executes workflow graphs. It holds no per-run state, so one
// engine serves concurrent executions.
type Engine struct {
	retriever   Retriever
	generator   Generator
	websearcher WebSearcher
	logger      *slog.Logger
}

// New creates an execution engine. The web searcher may be nil when the
// deployment has no search backend; model nodes then degrade as if every
// lookup failed.
func New(retriever Retriever, generator Generator, opts ...Option) *Engine {
	e := &Engine{
		retriever: retriever,
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Option configures the engine.
type Option func(*Engine)

// WithWebSearcher sets the web search backend.
func WithWebSearcher(ws WebSearcher) Option {
	return func(e *Engine) {
		e.websearcher = ws
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Request binds one query to a graph snapshot.
type Request struct {
	Graph *graph.Graph
	Query string

	// Scope restricts retrieval to specific documents, typically the
	// ones linked to the workflow. Knowledge-base nodes with their own
	// document_ids override it.
	Scope vector.Scope
}

// run is the mutable state of one execution. Nodes touch it only under
// the mutex; the graph snapshot itself is read-only.
type run struct {
	graph   *graph.Graph
	query   string
	scope   vector.Scope
	started time.Time

	// feedsOutput holds the ids of nodes with a path to any output node.
	// A failure inside this set fails the whole run.
	feedsOutput map[string]bool

	mu      sync.Mutex
	values  map[string]*value
	records map[string]*NodeRecord
	aborted bool
}

// valueKind tags a node's realized output.
type valueKind int

const (
	valueText valueKind = iota
	valueContext
	valueFormatted
)

// value is a tagged payload routed along graph edges.
type value struct {
	kind    valueKind
	text    string
	matches []vector.Match

	// model metadata, set by llm-engine nodes
	model     string
	provider  string
	tokens    int
	webSearch bool
	webRan    bool
}

// Execute validates the graph, orders it, and runs the query through it.
// Structural problems fail before any node runs. Node-level failures are
// recorded in the trace per the run's failure policy; Execute returns an
// error only for pre-execution rejection.
func (e *Engine) Execute(ctx context.Context, req Request) (*Trace, error) {
	started := time.Now()

	if req.Graph == nil {
		return nil, fmt.Errorf("no graph to execute")
	}
	if err := graph.Validate(req.Graph).Err(); err != nil {
		return nil, err
	}

	order, err := graph.TopologicalOrder(req.Graph)
	if err != nil {
		return nil, err
	}

	var outputIDs []string
	for _, n := range req.Graph.NodesOfKind(graph.KindOutput) {
		outputIDs = append(outputIDs, n.ID)
	}

	r := &run{
		graph:       req.Graph,
		query:       req.Query,
		scope:       req.Scope,
		started:     started,
		feedsOutput: feedsOutputSet(req.Graph, outputIDs),
		values:      make(map[string]*value),
		records:     make(map[string]*NodeRecord),
	}

	// One goroutine per node, gated on its predecessors. Independent
	// branches run concurrently; a join waits for every feeding branch.
	done := make(map[string]chan struct{}, len(order))
	for _, id := range order {
		done[id] = make(chan struct{})
	}

	var wg sync.WaitGroup
	for _, id := range order {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer close(done[id])

			for _, pred := range r.graph.Predecessors(id) {
				select {
				case <-done[pred]:
				case <-ctx.Done():
					r.recordCancelled(id, ctx.Err())
					return
				}
			}
			if ctx.Err() != nil {
				r.recordCancelled(id, ctx.Err())
				return
			}
			e.runNode(ctx, r, id)
		}(id)
	}
	wg.Wait()

	trace := r.assemble(order)
	trace.Metadata.Elapsed = time.Since(started)
	if ctx.Err() != nil {
		trace.Status = StatusFailed
	}

	e.logger.Info("execution complete",
		"status", trace.Status,
		"nodes", len(trace.Records),
		"elapsed", trace.Metadata.Elapsed,
	)
	return trace, nil
}

// feedsOutputSet computes the ids of nodes upstream of any output node,
// including the outputs themselves.
func feedsOutputSet(g *graph.Graph, outputIDs []string) map[string]bool {
	set := make(map[string]bool)
	frontier := append([]string(nil), outputIDs...)
	for _, id := range outputIDs {
		set[id] = true
	}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		for _, pred := range g.Predecessors(id) {
			if !set[pred] {
				set[pred] = true
				frontier = append(frontier, pred)
			}
		}
	}
	return set
}

// runNode executes one node, unless an upstream failure already skipped
// this part of the graph.
func (e *Engine) runNode(ctx context.Context, r *run, id string) {
	node := r.graph.NodeByID(id)

	if reason := r.skipReason(id); reason != "" {
		r.setRecord(&NodeRecord{
			NodeID:  id,
			Kind:    node.Kind,
			Skipped: true,
			Error:   reason,
		})
		return
	}

	started := time.Now()
	record := &NodeRecord{NodeID: id, Kind: node.Kind}

	var out *value
	var err error
	switch node.Kind {
	case graph.KindQueryIntake:
		out, err = e.runQueryIntake(r, *node, record)
	case graph.KindKnowledgeBase:
		out, err = e.runKnowledgeBase(ctx, r, *node, record)
	case graph.KindModelEngine:
		out, err = e.runModelEngine(ctx, r, *node, record)
	case graph.KindOutput:
		out, err = e.runOutput(r, *node, record)
	default:
		err = fmt.Errorf("unknown node kind %q", node.Kind)
	}

	record.Elapsed = time.Since(started)
	if err != nil {
		record.Error = err.Error()
		if code := llm.CodeOf(err); code != "" {
			record.ErrorCode = code
		}
		e.logger.Warn("node failed",
			"node_id", id,
			"kind", node.Kind,
			"error", err,
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id] = record
	if out != nil {
		r.values[id] = out
	}
	if err != nil && r.feedsOutput[id] {
		r.aborted = true
	}
}

// skipReason returns a non-empty reason when an upstream failure or skip
// blocks this node.
func (r *run) skipReason(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pred := range r.graph.Predecessors(id) {
		rec, ok := r.records[pred]
		if !ok {
			continue
		}
		if rec.Skipped {
			return fmt.Sprintf("skipped: upstream node %s did not run", pred)
		}
		if rec.Error != "" && rec.Warning == "" && r.values[pred] == nil {
			return fmt.Sprintf("skipped: upstream node %s failed", pred)
		}
	}
	return ""
}

// recordCancelled marks a node that never ran because the caller
// cancelled the execution.
func (r *run) recordCancelled(id string, cause error) {
	node := r.graph.NodeByID(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id] = &NodeRecord{
		NodeID:  id,
		Kind:    node.Kind,
		Skipped: true,
		Error:   fmt.Sprintf("execution cancelled: %v", cause),
	}
	r.aborted = true
}

func (r *run) setRecord(rec *NodeRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.NodeID] = rec
}

// valueOf returns a node's realized output, or nil.
func (r *run) valueOf(id string) *value {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[id]
}

// inputsFor gathers the values feeding a node, split by input port.
// Edges with no handle bind to the kind's default port.
func (r *run) inputsFor(node graph.Node) map[string][]*value {
	byPort := make(map[string][]*value)
	for _, e := range r.graph.IncomingEdges(node.ID) {
		handle := e.TargetHandle
		if handle == "" {
			handle = defaultPort(node.Kind)
		}
		if v := r.valueOf(e.Source); v != nil {
			byPort[handle] = append(byPort[handle], v)
		}
	}
	return byPort
}

func defaultPort(kind graph.Kind) string {
	switch kind {
	case graph.KindOutput:
		return "input"
	default:
		return "query"
	}
}

// assemble builds the trace in topological order and derives the overall
// status.
func (r *run) assemble(order []string) *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()

	trace := &Trace{Status: StatusSuccess}

	degraded := false
	for _, id := range order {
		rec, ok := r.records[id]
		if !ok {
			// Unreached node (cancellation mid-run).
			node := r.graph.NodeByID(id)
			rec = &NodeRecord{NodeID: id, Kind: node.Kind, Skipped: true,
				Error: "node did not run"}
		}
		trace.Records = append(trace.Records, *rec)

		if rec.Error != "" && !rec.Skipped {
			degraded = true
		}

		v := r.values[id]
		if v == nil {
			continue
		}
		switch v.kind {
		case valueContext:
			trace.Metadata.RetrievedChunks += len(v.matches)
		case valueText:
			if v.model != "" {
				trace.Metadata.Model = v.model
				trace.Metadata.Provider = v.provider
				trace.Metadata.TotalTokens += v.tokens
				if v.webSearch {
					trace.Metadata.WebSearchPerformed = v.webRan
				}
			}
		case valueFormatted:
			trace.Output = v.text
		}
	}

	switch {
	case r.aborted:
		trace.Status = StatusFailed
	case degraded:
		trace.Status = StatusPartial
	}
	return trace
}
