//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package graph

import (
	"testing"
)

// ragGraph is a well-formed intake -> kb -> llm -> output graph.
func ragGraph() *Graph {
	return &Graph{
		Nodes: []Node{
			node("intake", KindQueryIntake),
			node("kb", KindKnowledgeBase),
			{ID: "llm", Kind: KindModelEngine, Data: NodeData{Config: map[string]any{
				"model": "gpt-4o-mini",
			}}},
			node("out", KindOutput),
		},
		Edges: []Edge{
			{ID: "e1", Source: "intake", Target: "kb", TargetHandle: "query"},
			{ID: "e2", Source: "intake", Target: "llm", TargetHandle: "query"},
			{ID: "e3", Source: "kb", Target: "llm", TargetHandle: "context"},
			{ID: "e4", Source: "llm", Target: "out", TargetHandle: "input"},
		},
	}
}

func violationsByRule(r *ValidationResult) map[string][]Violation {
	byRule := make(map[string][]Violation)
	for _, v := range r.Violations {
		byRule[v.Rule] = append(byRule[v.Rule], v)
	}
	return byRule
}

func TestValidate_WellFormedGraph(t *testing.T) {
	result := Validate(ragGraph())
	if !result.Valid() {
		t.Errorf("expected valid graph, got violations: %v", result.Violations)
	}
	if result.Err() != nil {
		t.Errorf("expected nil error for valid graph")
	}
}

func TestValidate_MissingQueryIntake(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{ID: "llm", Kind: KindModelEngine, Data: NodeData{Config: map[string]any{"model": "gpt-4o"}}},
			node("out", KindOutput),
		},
		Edges: []Edge{edge("llm", "out")},
	}

	result := Validate(g)
	byRule := violationsByRule(result)
	if len(byRule[RuleQueryIntake]) != 1 {
		t.Errorf("expected exactly one query_intake violation, got %v", result.Violations)
	}
}

func TestValidate_MultipleQueryIntakes(t *testing.T) {
	g := ragGraph()
	g.Nodes = append(g.Nodes, node("intake2", KindQueryIntake))
	g.Edges = append(g.Edges, Edge{ID: "e5", Source: "intake2", Target: "out", TargetHandle: "input"})

	result := Validate(g)
	byRule := violationsByRule(result)
	if len(byRule[RuleQueryIntake]) == 0 {
		t.Errorf("expected query_intake violation, got %v", result.Violations)
	}
}

func TestValidate_UnreachableOutput(t *testing.T) {
	g := ragGraph()
	// Cut the graph so no output is downstream of the intake.
	g.Edges = []Edge{
		{ID: "e1", Source: "intake", Target: "kb", TargetHandle: "query"},
		{ID: "e3", Source: "kb", Target: "llm", TargetHandle: "context"},
		{ID: "e2b", Source: "intake", Target: "llm", TargetHandle: "query"},
	}

	result := Validate(g)
	byRule := violationsByRule(result)
	if len(byRule[RuleOutput]) == 0 {
		t.Errorf("expected output violation, got %v", result.Violations)
	}
}

func TestValidate_Cycle(t *testing.T) {
	g := ragGraph()
	g.Edges = append(g.Edges, Edge{ID: "back", Source: "llm", Target: "kb", TargetHandle: "query"})

	result := Validate(g)
	byRule := violationsByRule(result)
	if len(byRule[RuleAcyclic]) == 0 {
		t.Errorf("expected acyclic violation, got %v", result.Violations)
	}
}

func TestValidate_OrphanNode(t *testing.T) {
	g := ragGraph()
	g.Nodes = append(g.Nodes, node("floating", KindKnowledgeBase))

	result := Validate(g)
	byRule := violationsByRule(result)
	orphans := byRule[RuleOrphan]
	if len(orphans) != 1 || orphans[0].NodeID != "floating" {
		t.Errorf("expected one orphan violation for 'floating', got %v", result.Violations)
	}
}

func TestValidate_EdgeToUnknownNode(t *testing.T) {
	g := ragGraph()
	g.Edges = append(g.Edges, Edge{ID: "bad", Source: "llm", Target: "ghost"})

	result := Validate(g)
	byRule := violationsByRule(result)
	if len(byRule[RuleEdgeEndpoint]) == 0 {
		t.Errorf("expected edge_endpoint violation, got %v", result.Violations)
	}
}

func TestValidate_RequiredPortUnconnected(t *testing.T) {
	g := ragGraph()
	// Remove the query edge into the model node.
	g.Edges = []Edge{
		{ID: "e1", Source: "intake", Target: "kb", TargetHandle: "query"},
		{ID: "e3", Source: "kb", Target: "llm", TargetHandle: "context"},
		{ID: "e4", Source: "llm", Target: "out", TargetHandle: "input"},
	}

	result := Validate(g)
	byRule := violationsByRule(result)
	found := false
	for _, v := range byRule[RuleInputPort] {
		if v.NodeID == "llm" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected input_port violation on llm, got %v", result.Violations)
	}
}

func TestValidate_MultiInputContextPortAllowed(t *testing.T) {
	g := ragGraph()
	g.Nodes = append(g.Nodes, node("kb2", KindKnowledgeBase))
	g.Edges = append(g.Edges,
		Edge{ID: "e5", Source: "intake", Target: "kb2", TargetHandle: "query"},
		Edge{ID: "e6", Source: "kb2", Target: "llm", TargetHandle: "context"},
	)

	result := Validate(g)
	if !result.Valid() {
		t.Errorf("two context edges into llm should be valid, got %v", result.Violations)
	}
}

func TestValidate_ParallelEdgesNotACycle(t *testing.T) {
	// The same source feeding two ports of one node must not read as a
	// cycle.
	g := ragGraph()
	g.Edges = append(g.Edges,
		Edge{ID: "e5", Source: "intake", Target: "llm", TargetHandle: "context"},
	)

	result := Validate(g)
	if !result.Valid() {
		t.Errorf("parallel edges into llm should be valid, got %v", result.Violations)
	}
}

func TestValidate_SingleInputPortConflict(t *testing.T) {
	g := ragGraph()
	g.Edges = append(g.Edges, Edge{ID: "e5", Source: "kb", Target: "out", TargetHandle: "input"})

	result := Validate(g)
	byRule := violationsByRule(result)
	found := false
	for _, v := range byRule[RuleInputPort] {
		if v.NodeID == "out" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected input_port violation on out, got %v", result.Violations)
	}
}

func TestValidate_KnowledgeBaseConfigBounds(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		valid  bool
	}{
		{"defaults", nil, true},
		{"limit too low", map[string]any{"search_limit": 0}, false},
		{"limit too high", map[string]any{"search_limit": 21}, false},
		{"limit at bounds", map[string]any{"search_limit": 20}, true},
		{"threshold too low", map[string]any{"similarity_threshold": 0.05}, false},
		{"threshold too high", map[string]any{"similarity_threshold": 1.5}, false},
		{"threshold at bounds", map[string]any{"similarity_threshold": 0.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := ragGraph()
			g.Nodes[1].Data.Config = tt.config

			result := Validate(g)
			if result.Valid() != tt.valid {
				t.Errorf("expected valid=%v, got violations: %v", tt.valid, result.Violations)
			}
		})
	}
}

func TestValidate_ModelEngineRequiresModel(t *testing.T) {
	g := ragGraph()
	g.Nodes[2].Data.Config = map[string]any{}

	result := Validate(g)
	byRule := violationsByRule(result)
	if len(byRule[RuleNodeConfig]) == 0 {
		t.Errorf("expected node_config violation for missing model, got %v", result.Violations)
	}
}

func TestValidate_OutputFormat(t *testing.T) {
	g := ragGraph()
	g.Nodes[3].Data.Config = map[string]any{"format": "pdf"}

	result := Validate(g)
	byRule := violationsByRule(result)
	if len(byRule[RuleNodeConfig]) == 0 {
		t.Errorf("expected node_config violation for bad format, got %v", result.Violations)
	}
}

func TestConfigDefaults(t *testing.T) {
	kb, err := KnowledgeBaseConfigOf(node("kb", KindKnowledgeBase))
	if err != nil {
		t.Fatalf("KnowledgeBaseConfigOf failed: %v", err)
	}
	if kb.SearchLimit != 5 || kb.SimilarityThreshold != 0.7 {
		t.Errorf("unexpected knowledge base defaults: %+v", kb)
	}

	llm, err := ModelEngineConfigOf(node("llm", KindModelEngine))
	if err != nil {
		t.Fatalf("ModelEngineConfigOf failed: %v", err)
	}
	if llm.Temperature != 0.7 || llm.MaxTokens != 1000 || llm.WebSearchQueries != 3 {
		t.Errorf("unexpected model engine defaults: %+v", llm)
	}

	out, err := OutputConfigOf(node("out", KindOutput))
	if err != nil {
		t.Fatalf("OutputConfigOf failed: %v", err)
	}
	if out.Format != FormatMarkdown || !out.ShowSources || out.ShowExecutionTime {
		t.Errorf("unexpected output defaults: %+v", out)
	}
}

func TestConfigCoercion(t *testing.T) {
	// JSON decoding yields float64 for integer keys.
	n := Node{ID: "kb", Kind: KindKnowledgeBase, Data: NodeData{Config: map[string]any{
		"search_limit":         float64(10),
		"similarity_threshold": 0.5,
		"document_ids":         []any{"doc-1", "doc-2"},
	}}}

	cfg, err := KnowledgeBaseConfigOf(n)
	if err != nil {
		t.Fatalf("KnowledgeBaseConfigOf failed: %v", err)
	}
	if cfg.SearchLimit != 10 {
		t.Errorf("expected search_limit 10, got %d", cfg.SearchLimit)
	}
	if len(cfg.DocumentIDs) != 2 || cfg.DocumentIDs[0] != "doc-1" {
		t.Errorf("unexpected document ids: %v", cfg.DocumentIDs)
	}
}

func TestConfigTypeMismatch(t *testing.T) {
	n := Node{ID: "llm", Kind: KindModelEngine, Data: NodeData{Config: map[string]any{
		"model":       42,
		"temperature": "hot",
	}}}

	_, err := ModelEngineConfigOf(n)
	if err == nil {
		t.Error("expected error for mistyped config values")
	}
}

func TestParse(t *testing.T) {
	data := []byte(`{
		"nodes": [
			{"id": "n1", "type": "user-query", "position": {"x": 10, "y": 20}},
			{"id": "n2", "type": "output", "data": {"label": "Result", "config": {"format": "markdown"}}}
		],
		"edges": [
			{"id": "e1", "source": "n1", "target": "n2", "targetHandle": "input"}
		]
	}`)

	g, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Fatalf("unexpected graph shape: %d nodes, %d edges", len(g.Nodes), len(g.Edges))
	}
	if g.Nodes[0].Kind != KindQueryIntake {
		t.Errorf("expected user-query kind, got %s", g.Nodes[0].Kind)
	}

	cfg, err := OutputConfigOf(g.Nodes[1])
	if err != nil {
		t.Fatalf("OutputConfigOf failed: %v", err)
	}
	if cfg.Format != FormatMarkdown {
		t.Errorf("expected markdown format, got %s", cfg.Format)
	}
}
