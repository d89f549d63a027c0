package compiler

import (
	"fmt"
	"strings"
)

// CycleError reports definitions that feed each other in a loop: each
// one's main dataset is the next one's staging dataset.
type CycleError struct {
	Path []string `json:"path"` // ["a", "b", "a"]
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("ingestion cycle: %s", strings.Join(e.Path, " -> "))
}

// Order returns defs sorted so that a definition reading another's main
// dataset as its staging dataset runs after it. Independent definitions
// keep their input order.
//
// The algorithm:
//  1. Build a producer -> consumer graph over dataset references
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report the first SCC with size > 1 or a self-loop as a CycleError
//  4. Otherwise emit definitions with Kahn's algorithm, earliest input first
func Order(defs []*Definition) ([]*Definition, error) {
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if seen[d.Name] {
			return nil, fmt.Errorf("ingest definition %q appears more than once", d.Name)
		}
		seen[d.Name] = true
	}
	g := buildFeedGraph(defs)

	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || g.hasSelfLoop(scc[0]) {
			return nil, &CycleError{Path: reconstructCyclePath(scc, g)}
		}
	}

	indegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		for _, m := range g.edges[n] {
			indegree[m]++
		}
	}
	byName := make(map[string]*Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	out := make([]*Definition, 0, len(defs))
	done := make(map[string]bool, len(g.nodes))
	for len(out) < len(g.nodes) {
		for _, n := range g.nodes {
			if done[n] || indegree[n] > 0 {
				continue
			}
			done[n] = true
			out = append(out, byName[n])
			for _, m := range g.edges[n] {
				indegree[m]--
			}
			break
		}
	}
	return out, nil
}

// feedGraph maps a definition name to the definitions consuming its main
// dataset. nodes keeps input order so traversal is deterministic.
type feedGraph struct {
	nodes []string
	edges map[string][]string
}

func buildFeedGraph(defs []*Definition) feedGraph {
	g := feedGraph{edges: make(map[string][]string, len(defs))}

	readers := make(map[string][]string)
	for _, d := range defs {
		g.nodes = append(g.nodes, d.Name)
		ref := d.Datasets.Staging.Ref()
		readers[ref] = append(readers[ref], d.Name)
	}
	for _, d := range defs {
		g.edges[d.Name] = append(g.edges[d.Name], readers[d.Datasets.Main.Ref()]...)
	}
	return g
}

func (g feedGraph) hasSelfLoop(node string) bool {
	for _, neighbor := range g.edges[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(g feedGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside the SCC from its first member
// back to itself.
func reconstructCyclePath(scc []string, g feedGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}
	// start from the member that appears first in input order
	start := scc[0]
	for _, n := range g.nodes {
		if members[n] {
			start = n
			break
		}
	}

	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, neighbor := range g.edges[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
