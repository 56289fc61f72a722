// Package compiler turns source documents into build manifests and compiled
// graphs. Sources are CUE documents:
//
//	process: {
//		Light: transitions: ["off -on-> lit", "lit -off-> off"]
//		Lamp: {
//			uses: ["Light"]
//			transitions: ["idle -plug-> Light"]
//		}
//	}
//	operation: ["Lamp.nodes > Light.nodes"]
//
// Uses the CUE SDK's Go API directly (not CLI subprocess).
package compiler

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"
	"cuelang.org/go/cue/token"

	"github.com/roach88/automata/internal/ir"
)

// SourceFilename is the name reported in positions of compiled documents.
const SourceFilename = "source.cue"

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Parser compiles source documents, builds definitions and evaluates
// operations. A Parser is not safe for concurrent use; the engine calls it
// from a single goroutine.
type Parser struct {
	ctx *cue.Context
}

// NewParser creates a parser with a fresh CUE context.
func NewParser() *Parser {
	return &Parser{ctx: cuecontext.New()}
}

// process is the decoded form of one definition body.
type process struct {
	key         ir.DefinitionKey
	uses        []ir.DefinitionKey
	transitions []string
	pos         token.Pos
}

// Compile parses a whole document into a manifest with definitions in
// dependency order.
func (p *Parser) Compile(source string) (*ir.Manifest, error) {
	v := p.ctx.CompileString(source, cue.Filename(SourceFilename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	manifest := &ir.Manifest{
		Definitions: []ir.DefinitionSource{},
		Operations:  []string{},
	}

	procs := make(map[ir.DefinitionKey]ir.DefinitionSource)
	var declared []ir.DefinitionKey
	graph := make(dependencyGraph)

	procVal := v.LookupPath(cue.ParsePath("process"))
	if procVal.Exists() {
		iter, err := procVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			proc, err := decodeProcess(iter.Selector().String(), iter.Value())
			if err != nil {
				return nil, err
			}
			text, err := fragmentText(proc.key, iter.Value())
			if err != nil {
				return nil, err
			}
			declared = append(declared, proc.key)
			graph[proc.key] = proc.uses
			procs[proc.key] = ir.DefinitionSource{
				Key:          proc.key,
				Text:         text,
				Dependencies: proc.uses,
			}
		}
	}

	order, err := buildOrder(declared, graph)
	if err != nil {
		return nil, err
	}
	for _, key := range order {
		manifest.Definitions = append(manifest.Definitions, procs[key])
	}

	opVal := v.LookupPath(cue.ParsePath("operation"))
	if opVal.Exists() {
		ops, err := stringList(opVal, "operation")
		if err != nil {
			return nil, err
		}
		for _, op := range ops {
			op = strings.Join(strings.Fields(op), " ")
			if op != "" {
				manifest.Operations = append(manifest.Operations, op)
			}
		}
	}

	slog.Debug("compiled source",
		"definitions", len(manifest.Definitions),
		"operations", len(manifest.Operations),
	)
	return manifest, nil
}

// ParseDefinition builds the graph of one definition fragment as produced by
// Compile. Graphs of the definitions it uses are taken from table and
// embedded with their node ids prefixed by the dependency name.
//
// With fair abstraction, silent self-loops are dropped.
func (p *Parser) ParseDefinition(text string, table ir.SymbolTable, liveBuilding, fair bool) (*ir.Graph, error) {
	v := p.ctx.CompileString(text, cue.Filename(SourceFilename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var proc *process
	for iter.Next() {
		if proc != nil {
			return nil, &CompileError{
				Field:   "process",
				Message: "a definition fragment must contain exactly one definition",
				Pos:     iter.Value().Pos(),
			}
		}
		proc, err = decodeProcess(iter.Selector().String(), iter.Value())
		if err != nil {
			return nil, err
		}
	}
	if proc == nil {
		return nil, &CompileError{Field: "process", Message: "empty definition fragment"}
	}

	slog.Debug("building definition",
		"key", proc.key,
		"uses", len(proc.uses),
		"live_building", liveBuilding,
		"fair", fair,
	)
	return buildGraph(proc, table, fair)
}

// decodeProcess reads the uses and transitions of one definition.
func decodeProcess(label string, v cue.Value) (*process, error) {
	if !keyPattern.MatchString(label) {
		return nil, &CompileError{
			Field:   "process",
			Message: fmt.Sprintf("invalid definition name %s: must match %s", label, keyPattern),
			Pos:     v.Pos(),
		}
	}
	proc := &process{key: ir.DefinitionKey(label), pos: v.Pos()}

	usesVal := v.LookupPath(cue.ParsePath("uses"))
	if usesVal.Exists() {
		uses, err := stringList(usesVal, label+".uses")
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(uses))
		for _, u := range uses {
			if !keyPattern.MatchString(u) {
				return nil, &CompileError{
					Field:   label + ".uses",
					Message: fmt.Sprintf("invalid dependency name %q", u),
					Pos:     usesVal.Pos(),
				}
			}
			if seen[u] {
				continue
			}
			seen[u] = true
			proc.uses = append(proc.uses, ir.DefinitionKey(u))
		}
	}

	transVal := v.LookupPath(cue.ParsePath("transitions"))
	if !transVal.Exists() {
		return nil, &CompileError{
			Field:   label,
			Message: "transitions is required",
			Pos:     v.Pos(),
		}
	}
	transitions, err := stringList(transVal, label+".transitions")
	if err != nil {
		return nil, err
	}
	if len(transitions) == 0 {
		return nil, &CompileError{
			Field:   label + ".transitions",
			Message: "at least one transition is required",
			Pos:     transVal.Pos(),
		}
	}
	for _, t := range transitions {
		if _, err := parseTransition(t); err != nil {
			return nil, &CompileError{
				Field:   label + ".transitions",
				Message: err.Error(),
				Pos:     transVal.Pos(),
			}
		}
	}
	proc.transitions = transitions
	if proc.uses == nil {
		proc.uses = []ir.DefinitionKey{}
	}
	return proc, nil
}

// stringList decodes a CUE list of strings.
func stringList(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "expected a list of strings",
			Pos:     v.Pos(),
		}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   field,
				Message: "expected a list of strings",
				Pos:     iter.Value().Pos(),
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// fragmentText renders a definition back to canonical CUE so that later
// ParseDefinition calls see exactly one self-contained field.
func fragmentText(key ir.DefinitionKey, v cue.Value) (string, error) {
	b, err := format.Node(v.Syntax(cue.Final(), cue.Concrete(true)))
	if err != nil {
		return "", &CompileError{
			Field:   string(key),
			Message: fmt.Sprintf("failed to format definition: %v", err),
			Pos:     v.Pos(),
		}
	}
	return fmt.Sprintf("%s: %s", key, strings.TrimSpace(string(b))), nil
}
