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
	"errors"
	"fmt"
	"strings"
)

// Rule identifiers reported in validation violations.
const (
	RuleQueryIntake   = "query_intake"
	RuleOutput        = "output"
	RuleAcyclic       = "acyclic"
	RuleOrphan        = "orphan"
	RuleEdgeEndpoint  = "edge_endpoint"
	RuleInputPort     = "input_port"
	RuleNodeConfig    = "node_config"
	RuleNodeKind      = "node_kind"
	RuleDuplicateNode = "duplicate_node"
)

// Violation is one failed validation rule.
type Violation struct {
	Rule    string `json:"rule"`
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.NodeID != "" {
		return fmt.Sprintf("%s (node %s): %s", v.Rule, v.NodeID, v.Message)
	}
	return fmt.Sprintf("%s: %s", v.Rule, v.Message)
}

// ValidationResult lists every rule a graph violates. An empty list
// means the graph is executable.
type ValidationResult struct {
	Violations []Violation `json:"violations"`
}

// Valid reports whether the graph passed every check.
func (r *ValidationResult) Valid() bool {
	return len(r.Violations) == 0
}

// Err returns a ValidationError carrying the violations, or nil.
func (r *ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Violations: r.Violations}
}

func (r *ValidationResult) add(rule, nodeID, format string, args ...any) {
	r.Violations = append(r.Violations, Violation{
		Rule:    rule,
		NodeID:  nodeID,
		Message: fmt.Sprintf(format, args...),
	})
}

// ValidationError is the error form of a failed validation.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.String())
	}
	return "invalid workflow graph: " + strings.Join(msgs, "; ")
}

// inputPort declares one input a node kind accepts.
type inputPort struct {
	name     string
	required bool
	multi    bool
}

// inputPorts declares the input contract per node kind. The first entry
// is the kind's default port for edges with no target handle.
var inputPorts = map[Kind][]inputPort{
	KindQueryIntake:   nil,
	KindKnowledgeBase: {{name: "query", required: true}},
	KindModelEngine:   {{name: "query", required: true}, {name: "context", multi: true}},
	KindOutput:        {{name: "input", required: true}},
}

// Validate checks a graph's structure and per-node configuration. It
// reports every violated rule rather than stopping at the first, and
// never mutates the graph.
func Validate(g *Graph) *ValidationResult {
	result := &ValidationResult{}

	nodeIDs := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if nodeIDs[n.ID] {
			result.add(RuleDuplicateNode, n.ID, "duplicate node id")
			continue
		}
		nodeIDs[n.ID] = true

		if !knownKinds[n.Kind] {
			result.add(RuleNodeKind, n.ID, "unknown node kind %q", n.Kind)
		}
	}

	for _, e := range g.Edges {
		if !nodeIDs[e.Source] {
			result.add(RuleEdgeEndpoint, "", "edge %s references unknown source node %q", e.ID, e.Source)
		}
		if !nodeIDs[e.Target] {
			result.add(RuleEdgeEndpoint, "", "edge %s references unknown target node %q", e.ID, e.Target)
		}
	}

	intakes := g.NodesOfKind(KindQueryIntake)
	switch len(intakes) {
	case 1:
		if len(g.IncomingEdges(intakes[0].ID)) > 0 {
			result.add(RuleQueryIntake, intakes[0].ID, "query intake node must have no incoming edges")
		}
	case 0:
		result.add(RuleQueryIntake, "", "graph must contain exactly one query intake node, found none")
	default:
		result.add(RuleQueryIntake, "", "graph must contain exactly one query intake node, found %d", len(intakes))
	}

	outputs := g.NodesOfKind(KindOutput)
	if len(outputs) == 0 {
		result.add(RuleOutput, "", "graph must contain at least one output node")
	} else if len(intakes) == 1 {
		reached := g.reachableFrom(intakes[0].ID)
		anyReachable := false
		for _, out := range outputs {
			if reached[out.ID] {
				anyReachable = true
				break
			}
		}
		if !anyReachable {
			result.add(RuleOutput, "", "no output node is reachable from the query intake node")
		}
	}

	if _, err := TopologicalOrder(g); errors.Is(err, ErrCycleDetected) {
		result.add(RuleAcyclic, "", "graph contains a cycle")
	}

	// Orphans: nodes neither downstream of the intake nor upstream of an
	// output take no part in any run.
	if len(intakes) == 1 && len(outputs) > 0 {
		fromIntake := g.reachableFrom(intakes[0].ID)
		outputIDs := make([]string, 0, len(outputs))
		for _, out := range outputs {
			outputIDs = append(outputIDs, out.ID)
		}
		toOutput := g.reachableTo(outputIDs)
		for _, n := range g.Nodes {
			if !fromIntake[n.ID] && !toOutput[n.ID] {
				result.add(RuleOrphan, n.ID, "node is connected to neither the query intake nor any output")
			}
		}
	}

	for _, n := range g.Nodes {
		validatePorts(g, n, result)
		validateConfig(n, result)
	}

	return result
}

// validatePorts checks that every required input port is fed and that
// single-input ports have at most one incoming edge.
func validatePorts(g *Graph, n Node, result *ValidationResult) {
	ports := inputPorts[n.Kind]
	if ports == nil {
		return
	}

	counts := make(map[string]int)
	for _, e := range g.IncomingEdges(n.ID) {
		handle := e.TargetHandle
		if handle == "" {
			handle = ports[0].name
		}
		counts[handle]++
	}

	declared := make(map[string]inputPort, len(ports))
	for _, p := range ports {
		declared[p.name] = p
		if p.required && counts[p.name] == 0 {
			result.add(RuleInputPort, n.ID, "required input port %q is not connected", p.name)
		}
		if !p.multi && counts[p.name] > 1 {
			result.add(RuleInputPort, n.ID, "input port %q accepts a single edge, found %d", p.name, counts[p.name])
		}
	}
	for handle := range counts {
		if _, ok := declared[handle]; !ok {
			result.add(RuleInputPort, n.ID, "unknown input port %q", handle)
		}
	}
}

// validateConfig checks the kind-specific configuration schema.
func validateConfig(n Node, result *ValidationResult) {
	switch n.Kind {
	case KindKnowledgeBase:
		cfg, err := KnowledgeBaseConfigOf(n)
		if err != nil {
			result.add(RuleNodeConfig, n.ID, "%v", err)
			return
		}
		if cfg.SearchLimit < 1 || cfg.SearchLimit > 20 {
			result.add(RuleNodeConfig, n.ID, "search_limit must be between 1 and 20, got %d", cfg.SearchLimit)
		}
		if cfg.SimilarityThreshold < 0.1 || cfg.SimilarityThreshold > 1.0 {
			result.add(RuleNodeConfig, n.ID, "similarity_threshold must be between 0.1 and 1.0, got %g", cfg.SimilarityThreshold)
		}
	case KindModelEngine:
		cfg, err := ModelEngineConfigOf(n)
		if err != nil {
			result.add(RuleNodeConfig, n.ID, "%v", err)
			return
		}
		if cfg.Model == "" {
			result.add(RuleNodeConfig, n.ID, "model must not be empty")
		}
		if cfg.Temperature < 0 || cfg.Temperature > 2 {
			result.add(RuleNodeConfig, n.ID, "temperature must be between 0 and 2, got %g", cfg.Temperature)
		}
		if cfg.MaxTokens < 1 {
			result.add(RuleNodeConfig, n.ID, "max_tokens must be positive, got %d", cfg.MaxTokens)
		}
	case KindOutput:
		cfg, err := OutputConfigOf(n)
		if err != nil {
			result.add(RuleNodeConfig, n.ID, "%v", err)
			return
		}
		switch cfg.Format {
		case FormatText, FormatMarkdown, FormatHTML:
		default:
			result.add(RuleNodeConfig, n.ID, "format must be one of text, markdown, html, got %q", cfg.Format)
		}
	}
}
