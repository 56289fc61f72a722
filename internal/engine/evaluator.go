package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/automata/internal/ir"
)

// Evaluation is the tallied outcome of one operation batch.
type Evaluation struct {
	Results []ir.OperationResult
	Pass    int
	Fail    int

	// Lines is "<input> = <true|false>" per result, preceded by the
	// summary line when there is at least one result.
	Lines []string
}

// Evaluate concatenates the operation fragments, hands them to the parser
// and tallies the results. Parser errors are returned unchanged.
func Evaluate(parser Parser, fragments []string, table ir.SymbolTable, fair bool) (*Evaluation, error) {
	results, err := parser.ParseOperations(strings.Join(fragments, "\n"), table, fair)
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{Results: results, Lines: []string{}}
	if len(results) == 0 {
		return ev, nil
	}

	lines := make([]string, 0, len(results)+1)
	lines = append(lines, "") // summary placeholder
	for _, r := range results {
		if r.Passed {
			ev.Pass++
		} else {
			ev.Fail++
		}
		lines = append(lines, fmt.Sprintf("%s = %t", r.Input, r.Passed))
	}
	lines[0] = fmt.Sprintf("Total Operations: %d (Pass: %d, Fail: %d)", ev.Pass+ev.Fail, ev.Pass, ev.Fail)
	ev.Lines = lines
	return ev, nil
}
