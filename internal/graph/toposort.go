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
	"sort"
)

// ErrCycleDetected is returned when the graph contains a cycle and no
// topological order exists.
var ErrCycleDetected = errors.New("cycle detected in workflow graph")

// TopologicalOrder returns the node ids in an order where every edge's
// source precedes its target. Kahn's algorithm with an explicit ready
// set; ties between ready nodes break by ascending node id so the order
// is deterministic for a given graph.
func TopologicalOrder(g *Graph) ([]string, error) {
	inDegree := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range g.Edges {
		_, sourceKnown := inDegree[e.Source]
		_, targetKnown := inDegree[e.Target]
		if sourceKnown && targetKnown {
			inDegree[e.Target]++
		}
	}

	var ready []string
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		// Drain per edge, not per distinct successor: parallel edges
		// into the same target (one per input port) each contribute
		// one unit of in-degree.
		freed := false
		for _, e := range g.Edges {
			if e.Source != id {
				continue
			}
			if _, ok := inDegree[e.Target]; !ok {
				continue
			}
			inDegree[e.Target]--
			if inDegree[e.Target] == 0 {
				ready = append(ready, e.Target)
				freed = true
			}
		}
		if freed {
			sort.Strings(ready)
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, ErrCycleDetected
	}
	return order, nil
}
