package engine

import (
	"fmt"
	"sync"

	"github.com/roach88/automata/internal/ir"
)

// stubParser builds graphs keyed by definition text and counts calls.
type stubParser struct {
	manifest *ir.Manifest
	compile  error
	graphs   map[string]*ir.Graph
	errs     map[string]error
	ops      []ir.OperationResult
	opsErr   error

	built   []string
	opsText []string
}

func newStubParser() *stubParser {
	return &stubParser{
		graphs: make(map[string]*ir.Graph),
		errs:   make(map[string]error),
	}
}

func (p *stubParser) Compile(string) (*ir.Manifest, error) {
	if p.compile != nil {
		return nil, p.compile
	}
	return p.manifest, nil
}

func (p *stubParser) ParseDefinition(text string, table ir.SymbolTable, liveBuilding, fair bool) (*ir.Graph, error) {
	p.built = append(p.built, text)
	if err := p.errs[text]; err != nil {
		return nil, err
	}
	if g, ok := p.graphs[text]; ok {
		return g.Clone(), nil
	}
	return chainGraph(2), nil
}

func (p *stubParser) ParseOperations(text string, table ir.SymbolTable, fair bool) ([]ir.OperationResult, error) {
	p.opsText = append(p.opsText, text)
	if p.opsErr != nil {
		return nil, p.opsErr
	}
	return p.ops, nil
}

// chainGraph returns n nodes s0 -> s1 -> ... -> s(n-1).
func chainGraph(n int) *ir.Graph {
	g := &ir.Graph{Root: "s0"}
	for i := 0; i < n; i++ {
		g.Nodes = append(g.Nodes, ir.Node{ID: fmt.Sprintf("s%d", i)})
		if i > 0 {
			g.Edges = append(g.Edges, ir.Edge{From: fmt.Sprintf("s%d", i-1), To: fmt.Sprintf("s%d", i), Label: "a"})
		}
	}
	return g
}

func def(key, text string, deps ...string) ir.DefinitionSource {
	d := ir.DefinitionSource{Key: ir.DefinitionKey(key), Text: text, Dependencies: []ir.DefinitionKey{}}
	for _, dep := range deps {
		d.Dependencies = append(d.Dependencies, ir.DefinitionKey(dep))
	}
	return d
}

func keyList(s ...string) []ir.DefinitionKey {
	out := make([]ir.DefinitionKey, len(s))
	for i, k := range s {
		out[i] = ir.DefinitionKey(k)
	}
	return out
}

// memSink records lines with the same Clear semantics as the console.
type memSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *memSink) Log(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *memSink) Clear(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n >= len(s.lines) {
		s.lines = nil
		return
	}
	s.lines = s.lines[:len(s.lines)-n]
}

func (s *memSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.lines...)
}

// syncView signals every job as soon as it is shown, optionally in reverse.
type syncView struct {
	reverse bool
	shown   [][]ir.DefinitionKey
}

func (v *syncView) Show(list *JobList) {
	keys := make([]ir.DefinitionKey, len(list.Jobs))
	for i, job := range list.Jobs {
		keys[i] = job.Key
	}
	v.shown = append(v.shown, keys)

	for i := range list.Jobs {
		idx := i
		if v.reverse {
			idx = len(list.Jobs) - 1 - i
		}
		list.Done(list.Jobs[idx].Key)
	}
}

// holdView keeps job lists so tests decide when jobs finish.
type holdView struct {
	lists []*JobList
}

func (v *holdView) Show(list *JobList) {
	v.lists = append(v.lists, list)
}

func (v *holdView) last() *JobList {
	return v.lists[len(v.lists)-1]
}

// reportLog collects cycle reports.
type reportLog struct {
	reports []CycleReport
}

func (r *reportLog) CycleFinished(report CycleReport) {
	r.reports = append(r.reports, report)
}

func (r *reportLog) last() CycleReport {
	return r.reports[len(r.reports)-1]
}
