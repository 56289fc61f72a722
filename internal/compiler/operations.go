package compiler

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/roach88/automata/internal/ir"
)

// FairVariable is the CEL variable holding the fair abstraction flag.
const FairVariable = "fair"

// ParseOperations evaluates every non-empty line of text as a CEL boolean
// expression.
//
// Each definition in table is bound as a variable named after its key with the
// fields nodes, edges, stops, labels and root. The first failing line aborts
// evaluation with an *OperationError.
func (p *Parser) ParseOperations(text string, table ir.SymbolTable, fair bool) ([]ir.OperationResult, error) {
	results := []ir.OperationResult{}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return results, nil
	}

	env, err := buildEnv(table)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression environment: %w", err)
	}
	activation := bindings(table, fair)

	for _, line := range lines {
		passed, err := evalBool(env, line, activation)
		if err != nil {
			return nil, &OperationError{Input: line, Message: err.Error()}
		}
		results = append(results, ir.OperationResult{Input: line, Passed: passed})
	}

	slog.Debug("evaluated operations", "count", len(results))
	return results, nil
}

// buildEnv declares one dyn variable per definition, sorted by key.
func buildEnv(table ir.SymbolTable) (*cel.Env, error) {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, string(k))
	}
	slices.Sort(keys)

	opts := []cel.EnvOption{cel.Variable(FairVariable, cel.BoolType)}
	for _, k := range keys {
		if k == FairVariable {
			continue
		}
		opts = append(opts, cel.Variable(k, cel.DynType))
	}
	return cel.NewEnv(opts...)
}

func bindings(table ir.SymbolTable, fair bool) map[string]any {
	vars := make(map[string]any, len(table)+1)
	for k, g := range table {
		if g == nil {
			continue
		}
		vars[string(k)] = map[string]any{
			"nodes":  int64(g.NodeCount()),
			"edges":  int64(g.EdgeCount()),
			"stops":  stopNodes(g),
			"labels": labels(g, fair),
			"root":   g.Root,
		}
	}
	vars[FairVariable] = fair
	return vars
}

// evalBool compiles and runs expr, which must produce a bool.
func evalBool(env *cel.Env, expr string, vars map[string]any) (bool, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("compile error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("program construction error: %w", err)
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("did not return bool, got %s", out.Type().TypeName())
	}
	return result, nil
}
