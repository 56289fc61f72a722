// Package render implements views that turn render jobs into output.
package render

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/roach88/automata/internal/ir"
)

// startNode is the invisible node whose edge marks the root.
const startNode = "__start"

// WriteDOT writes g as a Graphviz digraph. Stop nodes are drawn as double
// circles and the root gets an entry arrow.
func WriteDOT(w io.Writer, key ir.DefinitionKey, g *ir.Graph) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "digraph %s {\n", strconv.Quote(string(key)))
	fmt.Fprintln(bw, "\trankdir=LR;")
	fmt.Fprintln(bw, "\tnode [shape=circle];")
	if g.Root != "" {
		fmt.Fprintf(bw, "\t%s [shape=point];\n", strconv.Quote(startNode))
		fmt.Fprintf(bw, "\t%s -> %s;\n", strconv.Quote(startNode), strconv.Quote(g.Root))
	}
	for _, n := range g.Nodes {
		if n.Stop {
			fmt.Fprintf(bw, "\t%s [shape=doublecircle];\n", strconv.Quote(n.ID))
		} else {
			fmt.Fprintf(bw, "\t%s;\n", strconv.Quote(n.ID))
		}
	}
	for _, e := range g.Edges {
		fmt.Fprintf(bw, "\t%s -> %s [label=%s];\n",
			strconv.Quote(e.From), strconv.Quote(e.To), strconv.Quote(e.Label))
	}
	fmt.Fprintln(bw, "}")

	return bw.Flush()
}
