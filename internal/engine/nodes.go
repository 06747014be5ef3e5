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
	"fmt"
	"sort"
	"strings"

	"github.com/flowrag/flowrag-server/internal/graph"
	"github.com/flowrag/flowrag-server/internal/llm/gateway"
	"github.com/flowrag/flowrag-server/internal/vector"
	"github.com/flowrag/flowrag-server/internal/websearch"
)

// Node runners return an error only for failures that stop this branch.
// Degradations (empty retrieval, failed web search) are recorded on the
// trace entry and the node still produces a value.

func (e *Engine) runQueryIntake(r *run, node graph.Node, record *NodeRecord) (*value, error) {
	cfg, err := graph.QueryIntakeConfigOf(node)
	if err != nil {
		return nil, err
	}

	record.Input = r.query
	if cfg.ValidateInput && strings.TrimSpace(r.query) == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidInput)
	}

	record.Output = r.query
	return &value{kind: valueText, text: r.query}, nil
}

func (e *Engine) runKnowledgeBase(
	ctx context.Context,
	r *run,
	node graph.Node,
	record *NodeRecord,
) (*value, error) {
	cfg, err := graph.KnowledgeBaseConfigOf(node)
	if err != nil {
		return nil, err
	}

	query := r.query
	if inputs := r.inputsFor(node); len(inputs["query"]) > 0 {
		query = inputs["query"][0].text
	}
	record.Input = query

	scope := r.scope
	if len(cfg.DocumentIDs) > 0 {
		scope = vector.Scope{DocumentIDs: cfg.DocumentIDs}
	}

	matches, err := e.retriever.Search(ctx, query, scope, cfg.SearchLimit, cfg.SimilarityThreshold)
	if err != nil {
		// Retrieval failure degrades to an empty context; the run
		// continues with the error on record.
		record.Error = fmt.Sprintf("retrieval failed: %v", err)
		matches = nil
	}

	record.Output = fmt.Sprintf("%d chunks retrieved", len(matches))
	return &value{kind: valueContext, matches: matches}, nil
}

func (e *Engine) runModelEngine(
	ctx context.Context,
	r *run,
	node graph.Node,
	record *NodeRecord,
) (*value, error) {
	cfg, err := graph.ModelEngineConfigOf(node)
	if err != nil {
		return nil, err
	}

	inputs := r.inputsFor(node)

	query := r.query
	if len(inputs["query"]) > 0 {
		query = inputs["query"][0].text
	}

	var matches []vector.Match
	for _, v := range inputs["context"] {
		matches = append(matches, v.matches...)
	}

	var snippets []websearch.Snippet
	webRan := false
	if cfg.EnableWebSearch {
		if e.websearcher == nil {
			record.Warning = "web search enabled but no search backend is configured"
		} else {
			snippets, err = e.websearcher.Search(ctx, query, cfg.WebSearchQueries)
			if err != nil {
				record.Warning = fmt.Sprintf("web search failed, continuing without web context: %v", err)
				snippets = nil
			} else {
				webRan = true
			}
		}
	}

	prompt := buildPrompt(cfg.CustomPrompt, matches, snippets, query)
	record.Input = prompt

	result, err := e.generator.Generate(ctx, gateway.Request{
		Model:       cfg.Model,
		Prompt:      prompt,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	record.Output = result.Text
	return &value{
		kind:      valueText,
		text:      result.Text,
		model:     result.Model,
		provider:  result.Provider,
		tokens:    result.Usage.TotalTokens,
		webSearch: cfg.EnableWebSearch,
		webRan:    webRan,
	}, nil
}

func (e *Engine) runOutput(r *run, node graph.Node, record *NodeRecord) (*value, error) {
	cfg, err := graph.OutputConfigOf(node)
	if err != nil {
		return nil, err
	}

	body := r.query
	if inputs := r.inputsFor(node); len(inputs["input"]) > 0 {
		in := inputs["input"][0]
		body = in.text
		// A knowledge-base node wired straight into the output carries
		// chunks, not text; render the chunk list itself.
		if body == "" && len(in.matches) > 0 {
			body = contextBody(in.matches)
		}
	}
	record.Input = body

	var sources []vector.Match
	if cfg.ShowSources {
		sources = r.ancestorMatches(node.ID)
	}

	rendered := render(cfg, body, sources, r.started)
	record.Output = rendered
	return &value{kind: valueFormatted, text: rendered}, nil
}

// ancestorMatches collects retrieval matches from every knowledge-base
// node upstream of the given node. Ancestors are guaranteed complete
// before this node runs. Knowledge-base nodes are visited in ascending
// id order so the result is deterministic.
func (r *run) ancestorMatches(nodeID string) []vector.Match {
	ancestors := make(map[string]bool)
	frontier := []string{nodeID}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		for _, pred := range r.graph.Predecessors(id) {
			if !ancestors[pred] {
				ancestors[pred] = true
				frontier = append(frontier, pred)
			}
		}
	}

	var kbIDs []string
	for _, n := range r.graph.NodesOfKind(graph.KindKnowledgeBase) {
		if ancestors[n.ID] {
			kbIDs = append(kbIDs, n.ID)
		}
	}
	sort.Strings(kbIDs)

	var matches []vector.Match
	for _, id := range kbIDs {
		if v := r.valueOf(id); v != nil {
			matches = append(matches, v.matches...)
		}
	}
	return matches
}

// buildPrompt assembles the model prompt deterministically: custom
// instructions, then the labeled context block, then the user query.
func buildPrompt(
	customPrompt string,
	matches []vector.Match,
	snippets []websearch.Snippet,
	query string,
) string {
	var b strings.Builder

	if customPrompt != "" {
		b.WriteString(customPrompt)
		b.WriteString("\n\n")
	}

	if len(matches) > 0 || len(snippets) > 0 {
		b.WriteString("Use the following context to answer the question.\n\n")
	}

	if len(matches) > 0 {
		b.WriteString("Context:\n")
		b.WriteString(contextBody(matches))
		b.WriteString("\n")
		b.WriteString("\n")
	}

	if len(snippets) > 0 {
		b.WriteString("Web results:\n")
		for _, s := range snippets {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", s.Title, s.Snippet, s.URL)
		}
		b.WriteString("\n")
	}

	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}

// contextBody renders retrieved chunks as numbered, source-labeled lines.
func contextBody(matches []vector.Match) string {
	var b strings.Builder
	for i, m := range matches {
		label := m.Filename
		if label == "" {
			label = m.DocumentID
		}
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, label, m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
