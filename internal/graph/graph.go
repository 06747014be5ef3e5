//-------------------------------------------------------------------------
//
// FlowRAG Server
//
// Copyright (c) 2025 - 2026, the FlowRAG authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package graph models the workflow graph: typed nodes, directed edges
// between named ports, structural validation, and topological ordering.
package graph

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies a node's behavior. The values match the node type
// strings the canvas editor stores in workflow definitions.
type Kind string

const (
	KindQueryIntake   Kind = "user-query"
	KindKnowledgeBase Kind = "knowledge-base"
	KindModelEngine   Kind = "llm-engine"
	KindOutput        Kind = "output"
)

// knownKinds is the set of node kinds the engine can execute.
var knownKinds = map[Kind]bool{
	KindQueryIntake:   true,
	KindKnowledgeBase: true,
	KindModelEngine:   true,
	KindOutput:        true,
}

// Position is canvas placement metadata. The engine never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData wraps the per-node configuration map the editor stores under
// the node's data field.
type NodeData struct {
	Label  string         `json:"label,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// Node is one vertex in a workflow graph.
type Node struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"type"`
	Data     NodeData `json:"data"`
	Position Position `json:"position"`
}

// Edge connects a producing node's output port to a consuming node's
// input port. Empty handles mean the kind's default port.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Graph is a workflow's node/edge structure. A graph handed to the
// execution engine is treated as an immutable snapshot.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Parse decodes a graph from its stored JSON definition.
func Parse(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse workflow definition: %w", err)
	}
	return &g, nil
}

// NodeByID returns the node with the given id, or nil.
func (g *Graph) NodeByID(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// NodesOfKind returns all nodes of the given kind in declaration order.
func (g *Graph) NodesOfKind(kind Kind) []Node {
	var nodes []Node
	for _, n := range g.Nodes {
		if n.Kind == kind {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Predecessors returns the ids of nodes with an edge into id, sorted
// ascending for determinism.
func (g *Graph) Predecessors(id string) []string {
	seen := make(map[string]bool)
	var preds []string
	for _, e := range g.Edges {
		if e.Target == id && !seen[e.Source] {
			seen[e.Source] = true
			preds = append(preds, e.Source)
		}
	}
	sort.Strings(preds)
	return preds
}

// Successors returns the ids of nodes id has an edge into, sorted
// ascending for determinism.
func (g *Graph) Successors(id string) []string {
	seen := make(map[string]bool)
	var succs []string
	for _, e := range g.Edges {
		if e.Source == id && !seen[e.Target] {
			seen[e.Target] = true
			succs = append(succs, e.Target)
		}
	}
	sort.Strings(succs)
	return succs
}

// IncomingEdges returns the edges targeting id in declaration order.
func (g *Graph) IncomingEdges(id string) []Edge {
	var edges []Edge
	for _, e := range g.Edges {
		if e.Target == id {
			edges = append(edges, e)
		}
	}
	return edges
}

// reachableFrom walks edges forward from start and returns the set of
// reachable node ids, including start.
func (g *Graph) reachableFrom(start string) map[string]bool {
	reached := map[string]bool{start: true}
	frontier := []string{start}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		for _, next := range g.Successors(id) {
			if !reached[next] {
				reached[next] = true
				frontier = append(frontier, next)
			}
		}
	}
	return reached
}

// reachableTo walks edges backward from a set of targets and returns the
// set of node ids with a path into any of them, including the targets.
func (g *Graph) reachableTo(targets []string) map[string]bool {
	reached := make(map[string]bool)
	frontier := append([]string(nil), targets...)
	for _, t := range targets {
		reached[t] = true
	}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		for _, prev := range g.Predecessors(id) {
			if !reached[prev] {
				reached[prev] = true
				frontier = append(frontier, prev)
			}
		}
	}
	return reached
}
