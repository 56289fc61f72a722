package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/automata/internal/ir"
)

// dependencyGraph maps a definition key to the keys it uses, in declared order.
type dependencyGraph map[ir.DefinitionKey][]ir.DefinitionKey

// buildOrder returns the keys ordered so that every defined dependency comes
// before its dependents. Ties keep declaration order.
//
// Dependencies that are not declared in the document are left in the graph;
// they are reported later, per definition, when the build cannot find them.
// Cycles are compile errors: a definition cannot embed itself.
func buildOrder(declared []ir.DefinitionKey, graph dependencyGraph) ([]ir.DefinitionKey, error) {
	if cycle := findCycle(declared, graph); cycle != nil {
		return nil, &CompileError{
			Field:   "process",
			Message: fmt.Sprintf("dependency cycle: %s", joinKeys(cycle, " → ")),
		}
	}

	known := make(map[ir.DefinitionKey]bool, len(declared))
	for _, k := range declared {
		known[k] = true
	}

	order := make([]ir.DefinitionKey, 0, len(declared))
	placed := make(map[ir.DefinitionKey]bool, len(declared))

	var visit func(ir.DefinitionKey)
	visit = func(k ir.DefinitionKey) {
		if placed[k] {
			return
		}
		placed[k] = true
		for _, dep := range graph[k] {
			if known[dep] {
				visit(dep)
			}
		}
		order = append(order, k)
	}

	for _, k := range declared {
		visit(k)
	}
	return order, nil
}

// findCycle returns a cycle path such as [A, B, A], or nil for a DAG.
// The first strongly connected component found in declaration order wins.
func findCycle(declared []ir.DefinitionKey, graph dependencyGraph) []ir.DefinitionKey {
	for _, scc := range tarjanSCC(declared, graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			return reconstructCyclePath(scc, graph)
		}
	}
	return nil
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node ir.DefinitionKey, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Roots are visited in declaration order so the result is deterministic.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(declared []ir.DefinitionKey, graph dependencyGraph) [][]ir.DefinitionKey {
	var (
		index   = 0
		stack   []ir.DefinitionKey
		indices = make(map[ir.DefinitionKey]int)
		lowlink = make(map[ir.DefinitionKey]int)
		onStack = make(map[ir.DefinitionKey]bool)
		sccs    [][]ir.DefinitionKey
	)

	var strongConnect func(ir.DefinitionKey)
	strongConnect = func(v ir.DefinitionKey) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []ir.DefinitionKey
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

	for _, node := range declared {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []ir.DefinitionKey, graph dependencyGraph) []ir.DefinitionKey {
	if len(scc) == 1 {
		return []ir.DefinitionKey{scc[0], scc[0]}
	}

	sccSet := make(map[ir.DefinitionKey]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []ir.DefinitionKey{current}
	visited := make(map[ir.DefinitionKey]bool)

	for {
		visited[current] = true

		var next ir.DefinitionKey
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
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

func joinKeys(keys []ir.DefinitionKey, sep string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, sep)
}
