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
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/flowrag/flowrag-server/internal/graph"
	"github.com/flowrag/flowrag-server/internal/llm"
	"github.com/flowrag/flowrag-server/internal/llm/gateway"
	"github.com/flowrag/flowrag-server/internal/vector"
	"github.com/flowrag/flowrag-server/internal/websearch"
)

// fakeRetriever returns scripted matches.
type fakeRetriever struct {
	matches []vector.Match
	err     error
	calls   int
}

func (f *fakeRetriever) Search(
	_ context.Context, _ string, _ vector.Scope, limit int, _ float64,
) ([]vector.Match, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.matches) > limit {
		return f.matches[:limit], nil
	}
	return f.matches, nil
}

// fakeGenerator echoes a scripted answer and records the prompt.
type fakeGenerator struct {
	text    string
	err     error
	calls   int
	prompts []string
	models  []string
}

func (f *fakeGenerator) Generate(_ context.Context, req gateway.Request) (*gateway.Result, error) {
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)
	f.models = append(f.models, req.Model)
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.Result{
		Text:     f.text,
		Model:    req.Model,
		Provider: "test",
		Usage:    llm.TokenUsage{TotalTokens: 42},
	}, nil
}

// fakeWebSearcher returns scripted snippets.
type fakeWebSearcher struct {
	snippets []websearch.Snippet
	err      error
	calls    int
}

func (f *fakeWebSearcher) Search(_ context.Context, _ string, _ int) ([]websearch.Snippet, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snippets, nil
}

func passthroughGraph() *graph.Graph {
	return &graph.Graph{
		Nodes: []graph.Node{
			{ID: "intake", Kind: graph.KindQueryIntake},
			{ID: "out", Kind: graph.KindOutput, Data: graph.NodeData{Config: map[string]any{
				"show_sources": false,
			}}},
		},
		Edges: []graph.Edge{
			{ID: "e1", Source: "intake", Target: "out", TargetHandle: "input"},
		},
	}
}

func ragTestGraph(llmConfig map[string]any) *graph.Graph {
	if llmConfig == nil {
		llmConfig = map[string]any{"model": "gpt-3.5-turbo"}
	}
	return &graph.Graph{
		Nodes: []graph.Node{
			{ID: "intake", Kind: graph.KindQueryIntake},
			{ID: "kb", Kind: graph.KindKnowledgeBase, Data: graph.NodeData{Config: map[string]any{
				"search_limit":         2,
				"similarity_threshold": 0.5,
			}}},
			{ID: "llm", Kind: graph.KindModelEngine, Data: graph.NodeData{Config: llmConfig}},
			{ID: "out", Kind: graph.KindOutput, Data: graph.NodeData{Config: map[string]any{
				"show_sources": true,
			}}},
		},
		Edges: []graph.Edge{
			{ID: "e1", Source: "intake", Target: "kb", TargetHandle: "query"},
			{ID: "e2", Source: "intake", Target: "llm", TargetHandle: "query"},
			{ID: "e3", Source: "kb", Target: "llm", TargetHandle: "context"},
			{ID: "e4", Source: "llm", Target: "out", TargetHandle: "input"},
		},
	}
}

func twoDocMatches() []vector.Match {
	return []vector.Match{
		{Chunk: vector.Chunk{ID: "c1", DocumentID: "doc-1", Position: 0,
			Content: "pgvector stores embeddings", Filename: "guide.pdf"}, Score: 0.91},
		{Chunk: vector.Chunk{ID: "c2", DocumentID: "doc-2", Position: 3,
			Content: "cosine distance operator", Filename: "reference.pdf"}, Score: 0.78},
	}
}

func TestExecute_PassthroughGraph(t *testing.T) {
	e := New(&fakeRetriever{}, &fakeGenerator{})

	trace, err := e.Execute(context.Background(), Request{
		Graph: passthroughGraph(),
		Query: "hello",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if trace.Status != StatusSuccess {
		t.Errorf("expected success, got %s", trace.Status)
	}
	if trace.Output != "hello" {
		t.Errorf("expected verbatim 'hello', got %q", trace.Output)
	}
	if len(trace.Records) != 2 {
		t.Errorf("expected 2 trace records, got %d", len(trace.Records))
	}
}

func TestExecute_FullRAGGraph(t *testing.T) {
	retriever := &fakeRetriever{matches: twoDocMatches()}
	generator := &fakeGenerator{text: "an answer grounded in context"}
	e := New(retriever, generator)

	trace, err := e.Execute(context.Background(), Request{
		Graph: ragTestGraph(nil),
		Query: "how does similarity search work?",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if trace.Status != StatusSuccess {
		t.Fatalf("expected success, got %s (records: %+v)", trace.Status, trace.Records)
	}

	// The prompt carries both chunks, labeled with their source files.
	if generator.calls != 1 {
		t.Fatalf("expected one model call, got %d", generator.calls)
	}
	prompt := generator.prompts[0]
	for _, want := range []string{"guide.pdf", "reference.pdf",
		"pgvector stores embeddings", "cosine distance operator",
		"how does similarity search work?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	// The output appends a sources section naming both documents, in
	// the markdown style an unconfigured output node defaults to.
	if !strings.Contains(trace.Output, "**Sources:**") {
		t.Errorf("expected markdown sources section, got %q", trace.Output)
	}
	if !strings.Contains(trace.Output, "guide.pdf") || !strings.Contains(trace.Output, "reference.pdf") {
		t.Errorf("sources section missing documents: %q", trace.Output)
	}

	if trace.Metadata.Model != "gpt-3.5-turbo" {
		t.Errorf("expected model in metadata, got %q", trace.Metadata.Model)
	}
	if trace.Metadata.RetrievedChunks != 2 {
		t.Errorf("expected 2 retrieved chunks, got %d", trace.Metadata.RetrievedChunks)
	}
}

func TestExecute_RateLimitedFailsRun(t *testing.T) {
	generator := &fakeGenerator{err: &llm.Error{
		Code: llm.ErrCodeRateLimited, Message: "rate limited", StatusCode: 429,
	}}
	e := New(&fakeRetriever{matches: twoDocMatches()}, generator)

	trace, err := e.Execute(context.Background(), Request{
		Graph: ragTestGraph(nil),
		Query: "a question",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if trace.Status != StatusFailed {
		t.Errorf("expected failed status, got %s", trace.Status)
	}

	llmRec := trace.Record("llm")
	if llmRec == nil || llmRec.ErrorCode != llm.ErrCodeRateLimited {
		t.Errorf("expected rate_limited classification on llm record, got %+v", llmRec)
	}

	outRec := trace.Record("out")
	if outRec == nil || !outRec.Skipped {
		t.Errorf("expected output node skipped, got %+v", outRec)
	}
	if trace.Output != "" {
		t.Errorf("expected no formatted output, got %q", trace.Output)
	}
}

func TestExecute_WebSearchFailureDegrades(t *testing.T) {
	searcher := &fakeWebSearcher{err: errors.New("search backend down")}
	generator := &fakeGenerator{text: "answer without web context"}
	e := New(&fakeRetriever{}, generator, WithWebSearcher(searcher))

	trace, err := e.Execute(context.Background(), Request{
		Graph: ragTestGraph(map[string]any{
			"model":             "gpt-3.5-turbo",
			"enable_web_search": true,
		}),
		Query: "a question",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if trace.Status != StatusSuccess {
		t.Errorf("expected success despite web search failure, got %s", trace.Status)
	}
	if trace.Metadata.WebSearchPerformed {
		t.Error("expected web_search_performed=false")
	}
	if rec := trace.Record("llm"); rec == nil || rec.Warning == "" {
		t.Errorf("expected web search warning on llm record, got %+v", rec)
	}
	if trace.Output == "" {
		t.Error("expected the run to complete with output")
	}
}

func TestExecute_WebSearchSnippetsInPrompt(t *testing.T) {
	searcher := &fakeWebSearcher{snippets: []websearch.Snippet{
		{Title: "Release notes", Snippet: "version 0.8 adds iterative scans", URL: "https://example.com"},
	}}
	generator := &fakeGenerator{text: "answer"}
	e := New(&fakeRetriever{}, generator, WithWebSearcher(searcher))

	trace, err := e.Execute(context.Background(), Request{
		Graph: ragTestGraph(map[string]any{
			"model":             "gpt-3.5-turbo",
			"enable_web_search": true,
		}),
		Query: "what's new?",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !trace.Metadata.WebSearchPerformed {
		t.Error("expected web_search_performed=true")
	}
	if !strings.Contains(generator.prompts[0], "iterative scans") {
		t.Errorf("expected web snippet in prompt:\n%s", generator.prompts[0])
	}
}

func TestExecute_RetrievalFailureDegradesToEmptyContext(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("index unavailable")}
	generator := &fakeGenerator{text: "answer from model knowledge"}
	e := New(retriever, generator)

	trace, err := e.Execute(context.Background(), Request{
		Graph: ragTestGraph(nil),
		Query: "a question",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if trace.Status != StatusPartial {
		t.Errorf("expected partial status, got %s", trace.Status)
	}
	if rec := trace.Record("kb"); rec == nil || rec.Error == "" || rec.Skipped {
		t.Errorf("expected kb record with error, not skipped: %+v", rec)
	}
	// The model still ran, with no context block.
	if generator.calls != 1 {
		t.Fatalf("expected model call despite retrieval failure, got %d", generator.calls)
	}
	if strings.Contains(generator.prompts[0], "Context:") {
		t.Errorf("expected no context block in prompt:\n%s", generator.prompts[0])
	}
	if trace.Output == "" {
		t.Error("expected the run to produce output")
	}
}

func TestExecute_DeadEndBranchFailureIsPartial(t *testing.T) {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: "intake", Kind: graph.KindQueryIntake},
			{ID: "dead-llm", Kind: graph.KindModelEngine, Data: graph.NodeData{Config: map[string]any{
				"model": "gpt-4o",
			}}},
			{ID: "out", Kind: graph.KindOutput, Data: graph.NodeData{Config: map[string]any{
				"show_sources": false,
			}}},
		},
		Edges: []graph.Edge{
			{ID: "e1", Source: "intake", Target: "out", TargetHandle: "input"},
			{ID: "e2", Source: "intake", Target: "dead-llm", TargetHandle: "query"},
		},
	}

	generator := &fakeGenerator{err: llm.Unavailable("provider down")}
	e := New(&fakeRetriever{}, generator)

	trace, err := e.Execute(context.Background(), Request{Graph: g, Query: "hello"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if trace.Status != StatusPartial {
		t.Errorf("expected partial status for dead-end failure, got %s", trace.Status)
	}
	if trace.Output != "hello" {
		t.Errorf("expected the critical path to complete, got %q", trace.Output)
	}
}

func TestExecute_EmptyQueryRejectedByIntakeValidation(t *testing.T) {
	g := passthroughGraph()
	g.Nodes[0].Data.Config = map[string]any{"validate_input": true}

	e := New(&fakeRetriever{}, &fakeGenerator{})
	trace, err := e.Execute(context.Background(), Request{Graph: g, Query: "   "})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if trace.Status != StatusFailed {
		t.Errorf("expected failed status, got %s", trace.Status)
	}
	rec := trace.Record("intake")
	if rec == nil || !strings.Contains(rec.Error, "invalid input") {
		t.Errorf("expected invalid input error, got %+v", rec)
	}
}

func TestExecute_InvalidGraphRejectedBeforeExecution(t *testing.T) {
	g := ragTestGraph(nil)
	g.Edges = append(g.Edges, graph.Edge{ID: "back", Source: "llm", Target: "kb", TargetHandle: "query"})

	retriever := &fakeRetriever{}
	generator := &fakeGenerator{}
	e := New(retriever, generator)

	_, err := e.Execute(context.Background(), Request{Graph: g, Query: "q"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	var vErr *graph.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *graph.ValidationError, got %T", err)
	}
	// Fail fast: nothing may have run.
	if retriever.calls != 0 || generator.calls != 0 {
		t.Error("expected no service calls for a rejected graph")
	}
}

func TestExecute_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(&fakeRetriever{}, &fakeGenerator{text: "never used"})
	trace, err := e.Execute(ctx, Request{Graph: passthroughGraph(), Query: "hello"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if trace.Status != StatusFailed {
		t.Errorf("expected failed status for cancelled run, got %s", trace.Status)
	}
	for _, rec := range trace.Records {
		if !rec.Skipped {
			t.Errorf("expected every node skipped, got %+v", rec)
		}
	}
}

func TestExecute_TraceOrderFollowsTopology(t *testing.T) {
	e := New(&fakeRetriever{matches: twoDocMatches()}, &fakeGenerator{text: "answer"})

	trace, err := e.Execute(context.Background(), Request{
		Graph: ragTestGraph(nil),
		Query: "q",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	pos := make(map[string]int)
	for i, rec := range trace.Records {
		pos[rec.NodeID] = i
	}
	if !(pos["intake"] < pos["kb"] && pos["kb"] < pos["llm"] && pos["llm"] < pos["out"]) {
		t.Errorf("trace records out of topological order: %v", trace.Records)
	}
}

func TestExecute_ShowExecutionTime(t *testing.T) {
	g := passthroughGraph()
	g.Nodes[1].Data.Config = map[string]any{
		"show_sources":        false,
		"show_execution_time": true,
	}

	e := New(&fakeRetriever{}, &fakeGenerator{})
	trace, err := e.Execute(context.Background(), Request{Graph: g, Query: "hello"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !strings.Contains(trace.Output, "Execution time:") {
		t.Errorf("expected execution time line, got %q", trace.Output)
	}
}

func TestExecute_HTMLFormatEscapes(t *testing.T) {
	g := passthroughGraph()
	g.Nodes[1].Data.Config = map[string]any{
		"show_sources": false,
		"format":       "html",
	}

	e := New(&fakeRetriever{}, &fakeGenerator{})
	trace, err := e.Execute(context.Background(), Request{Graph: g, Query: "<b>bold</b>"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if strings.Contains(trace.Output, "<b>") {
		t.Errorf("expected HTML-escaped output, got %q", trace.Output)
	}
	if !strings.Contains(trace.Output, "&lt;b&gt;") {
		t.Errorf("expected escaped entities, got %q", trace.Output)
	}
}

func TestExecute_KnowledgeBaseFeedingOutputRendersChunks(t *testing.T) {
	// No model stage: the knowledge base feeds the output directly and
	// the retrieved chunks themselves become the body.
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: "intake", Kind: graph.KindQueryIntake},
			{ID: "kb", Kind: graph.KindKnowledgeBase},
			{ID: "out", Kind: graph.KindOutput},
		},
		Edges: []graph.Edge{
			{ID: "e1", Source: "intake", Target: "kb", TargetHandle: "query"},
			{ID: "e2", Source: "kb", Target: "out", TargetHandle: "input"},
		},
	}

	generator := &fakeGenerator{}
	e := New(&fakeRetriever{matches: twoDocMatches()}, generator)

	trace, err := e.Execute(context.Background(), Request{Graph: g, Query: "lookup"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if trace.Status != StatusSuccess {
		t.Fatalf("expected success, got %s (records: %+v)", trace.Status, trace.Records)
	}
	if generator.calls != 0 {
		t.Errorf("expected no model calls, got %d", generator.calls)
	}
	for _, want := range []string{
		"[1] (guide.pdf) pgvector stores embeddings",
		"[2] (reference.pdf) cosine distance operator",
	} {
		if !strings.Contains(trace.Output, want) {
			t.Errorf("output missing %q:\n%s", want, trace.Output)
		}
	}
}
