// SPDX-License-Identifier: MPL-2.0

// Package dag orders mod identities so that every dependency comes before the
// mods that require it. Among nodes that become ready at the same time, the
// lexically smallest identity is emitted first, which keeps plans stable
// regardless of map iteration or traversal order.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle lists the nodes left unordered, sorted. It contains at least
		// the members of one cycle.
		Cycle []string
	}

	// Graph is a directed graph keyed by identity. An edge from A to B means
	// A must be processed before B.
	Graph struct {
		adjacency map[string][]string
		edges     map[[2]string]bool
		nodeSet   map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		edges:     make(map[[2]string]bool),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	g.nodeSet[name] = true
}

// AddEdge adds a directed edge from -> to, meaning "from" must come before "to".
// Both nodes are implicitly added. Repeated edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	key := [2]string{from, to}
	if g.edges[key] {
		return
	}
	g.edges[key] = true
	g.adjacency[from] = append(g.adjacency[from], to)
}

// HasNode reports whether name was added.
func (g *Graph) HasNode(name string) bool {
	return g.nodeSet[name]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodeSet)
}

// TopologicalSort returns an order using Kahn's algorithm, always taking the
// smallest ready identity next. Returns CycleError if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodeSet) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodeSet))
	for node := range g.nodeSet {
		inDegree[node] += 0
		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]++
		}
	}

	// ready is kept sorted so ready[0] is always the next node.
	var ready []string
	for node, d := range inDegree {
		if d == 0 {
			ready = append(ready, node)
		}
	}
	slices.Sort(ready)

	result := make([]string, 0, len(g.nodeSet))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				i, _ := slices.BinarySearch(ready, neighbor)
				ready = slices.Insert(ready, i, neighbor)
			}
		}
	}

	if len(result) != len(g.nodeSet) {
		var cycleNodes []string
		for node, d := range inDegree {
			if d > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		slices.Sort(cycleNodes)
		return nil, &CycleError{Cycle: cycleNodes}
	}

	return result, nil
}
