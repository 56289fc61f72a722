package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/automata/internal/ir"
)

// marshalGraph converts a graph to JSON TEXT for storage.
// Node and edge order is kept as built so reads are byte-identical.
func marshalGraph(g *ir.Graph) (string, error) {
	if g == nil {
		g = &ir.Graph{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // Labels like "a->b" stay readable
	if err := enc.Encode(g); err != nil {
		return "", fmt.Errorf("marshal graph: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalGraph parses graph JSON TEXT.
// Nil slices are replaced with empty ones to match freshly built graphs.
func unmarshalGraph(data string) (*ir.Graph, error) {
	var g ir.Graph
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	if g.Nodes == nil {
		g.Nodes = []ir.Node{}
	}
	if g.Edges == nil {
		g.Edges = []ir.Edge{}
	}
	return &g, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
