package compiler

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/automata/internal/ir"
)

// SilentLabel marks internal transitions. Fair abstraction hides it.
const SilentLabel = "tau"

var transitionPattern = regexp.MustCompile(`^(\S+)\s+-(\S+?)->\s+(\S+)$`)

type transition struct {
	from, label, to string
}

// parseTransition parses "from -label-> to".
func parseTransition(s string) (transition, error) {
	m := transitionPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return transition{}, fmt.Errorf("malformed transition %q: expected \"from -label-> to\"", s)
	}
	return transition{from: m[1], label: m[2], to: m[3]}, nil
}

// graphBuilder accumulates nodes and edges in first-seen order.
type graphBuilder struct {
	g     *ir.Graph
	nodes map[string]bool
	edges map[ir.Edge]bool
}

func newGraphBuilder() *graphBuilder {
	return &graphBuilder{
		g:     &ir.Graph{Nodes: []ir.Node{}, Edges: []ir.Edge{}},
		nodes: make(map[string]bool),
		edges: make(map[ir.Edge]bool),
	}
}

func (b *graphBuilder) node(id string) {
	if b.nodes[id] {
		return
	}
	b.nodes[id] = true
	b.g.Nodes = append(b.g.Nodes, ir.Node{ID: id})
}

func (b *graphBuilder) edge(e ir.Edge) {
	b.node(e.From)
	b.node(e.To)
	if b.edges[e] {
		return
	}
	b.edges[e] = true
	b.g.Edges = append(b.g.Edges, e)
}

// buildGraph assembles the graph of proc. A transition endpoint naming a used
// definition is redirected to that definition's root.
func buildGraph(proc *process, table ir.SymbolTable, fair bool) (*ir.Graph, error) {
	deps := make(map[string]*ir.Graph, len(proc.uses))
	for _, dep := range proc.uses {
		g, ok := table[dep]
		if !ok || g == nil {
			return nil, &ir.DependencyError{Key: proc.key, Dependency: dep}
		}
		deps[string(dep)] = g
	}

	resolve := func(id string) string {
		if g, ok := deps[id]; ok {
			return id + "." + g.Root
		}
		return id
	}

	b := newGraphBuilder()
	for i, raw := range proc.transitions {
		t, err := parseTransition(raw)
		if err != nil {
			return nil, &CompileError{
				Field:   string(proc.key) + ".transitions",
				Message: err.Error(),
				Pos:     proc.pos,
			}
		}
		from, to := resolve(t.from), resolve(t.to)
		if i == 0 {
			b.g.Root = from
		}
		if fair && t.label == SilentLabel && from == to {
			b.node(from)
			continue
		}
		b.edge(ir.Edge{From: from, To: to, Label: t.label})
	}

	for _, dep := range proc.uses {
		prefix := string(dep) + "."
		g := deps[string(dep)]
		for _, n := range g.Nodes {
			b.node(prefix + n.ID)
		}
		for _, e := range g.Edges {
			b.edge(ir.Edge{From: prefix + e.From, To: prefix + e.To, Label: e.Label})
		}
	}

	return b.g, nil
}

// labels returns the sorted distinct edge labels of g.
// With fair abstraction the silent label is omitted.
func labels(g *ir.Graph, fair bool) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, e := range g.Edges {
		if seen[e.Label] || (fair && e.Label == SilentLabel) {
			continue
		}
		seen[e.Label] = true
		out = append(out, e.Label)
	}
	slices.Sort(out)
	return out
}

// stopNodes returns nodes without an outgoing edge, in node order.
// Unlike ir.Graph.StopNodes it does not depend on MarkStopNodes having run.
func stopNodes(g *ir.Graph) []string {
	outgoing := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		outgoing[e.From] = true
	}
	out := []string{}
	for _, n := range g.Nodes {
		if !outgoing[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}
