package ir

// Graph is the compiled form of a definition: a labelled transition graph.
type Graph struct {
	Root  string `json:"root"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a state of a compiled graph.
type Node struct {
	ID   string `json:"id"`
	Stop bool   `json:"stop,omitempty"` // Set by MarkStopNodes
}

// Edge is a labelled transition between two nodes.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	if g == nil {
		return 0
	}
	return len(g.Nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	if g == nil {
		return 0
	}
	return len(g.Edges)
}

// MarkStopNodes flags every node without an outgoing edge as a stop node.
//
// The result depends only on the edge set, so calling it again (for example on
// a graph reused from a previous build) leaves the graph unchanged.
func (g *Graph) MarkStopNodes() {
	if g == nil {
		return
	}
	outgoing := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		outgoing[e.From] = true
	}
	for i := range g.Nodes {
		g.Nodes[i].Stop = !outgoing[g.Nodes[i].ID]
	}
}

// StopNodes returns the ids of nodes currently flagged as stop nodes.
func (g *Graph) StopNodes() []string {
	stops := []string{}
	if g == nil {
		return stops
	}
	for _, n := range g.Nodes {
		if n.Stop {
			stops = append(stops, n.ID)
		}
	}
	return stops
}

// HasNode reports whether the graph contains a node with the given id.
func (g *Graph) HasNode(id string) bool {
	if g == nil {
		return false
	}
	for _, n := range g.Nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{
		Root:  g.Root,
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	copy(out.Nodes, g.Nodes)
	copy(out.Edges, g.Edges)
	return out
}
