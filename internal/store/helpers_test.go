package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/automata/internal/ir"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testGraph(root string, to ...string) *ir.Graph {
	g := &ir.Graph{Root: root, Nodes: []ir.Node{{ID: root}}, Edges: []ir.Edge{}}
	for _, id := range to {
		g.Nodes = append(g.Nodes, ir.Node{ID: id})
		g.Edges = append(g.Edges, ir.Edge{From: root, To: id, Label: "go"})
	}
	g.MarkStopNodes()
	return g
}

func testRecord(gen int64, token string) CycleRecord {
	return CycleRecord{
		Generation: gen,
		CycleToken: token,
		Status:     "completed",
		SourceHash: ir.SourceHash("source"),
		Definitions: []DefinitionRecord{
			{Key: "Light", Text: "Light: {}", TextHash: "h1", Graph: testGraph("off", "on"), Rebuilt: true},
			{Key: "Lamp", Text: "Lamp: {}", TextHash: "h2", Graph: testGraph("idle"), Rebuilt: false},
		},
		Outcomes: []OutcomeRecord{
			{Key: "Light", Status: "rebuilt"},
			{Key: "Lamp", Status: "reused"},
		},
		Diagnostics: []string{"Interpreted successfully after 0.001 seconds.", "Rendered successfully after 0.001 seconds."},
	}
}
