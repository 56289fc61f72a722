package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/automata/internal/compiler"
	"github.com/roach88/automata/internal/config"
	"github.com/roach88/automata/internal/ir"
)

const lampSource = `
process: {
	Light: transitions: ["off -on-> lit", "lit -off-> off"]
	Lamp: {
		uses: ["Light"]
		transitions: ["idle -plug-> Light"]
	}
}
operation: ["Lamp.nodes > Light.nodes"]
`

type harness struct {
	engine  *Engine
	buffer  *Buffer
	sink    *memSink
	reports *reportLog
}

func newTestEngine(t *testing.T, parser Parser, view RenderView, settings config.Settings) *harness {
	t.Helper()
	h := &harness{
		buffer:  NewBuffer(""),
		sink:    &memSink{},
		reports: &reportLog{},
	}
	h.engine = New(parser, h.buffer, h.sink, view, config.NewProvider(settings),
		WithNow(frozen),
		WithTokenGenerator(NewFixedGenerator()),
		WithObserver(h.reports),
	)
	return h
}

func (h *harness) submit(t *testing.T, text string, force bool) {
	t.Helper()
	h.buffer.SetText(text)
	require.True(t, h.engine.Submit(force))
	require.NoError(t, h.engine.RunPending(context.Background()))
}

func TestEngine_FullCycle(t *testing.T) {
	view := &syncView{}
	h := newTestEngine(t, compiler.NewParser(), view, config.Defaults())

	h.submit(t, lampSource, false)

	assert.Equal(t, []string{
		"Interpreted successfully after 0.001 seconds.",
		"Light: States - 2, Transitions - 2",
		"Lamp: States - 3, Transitions - 3",
		"",
		"Operations:",
		"Total Operations: 1 (Pass: 1, Fail: 0)",
		"Lamp.nodes > Light.nodes = true",
		"Evaluated operations after 0.001 seconds.",
		"Rendered successfully after 0.001 seconds.",
	}, h.sink.Lines())

	assert.Equal(t, [][]ir.DefinitionKey{{}, keyList("Lamp", "Light")}, view.shown,
		"empty list first, then jobs most-recent-first")

	require.Len(t, h.reports.reports, 1)
	r := h.reports.last()
	assert.Equal(t, CycleCompleted, r.Status)
	assert.Equal(t, int64(1), r.Generation)
	assert.Equal(t, "cycle-1", r.Token)
	assert.Equal(t, keyList("Light", "Lamp"), r.Order)
	assert.Equal(t, keyList("Lamp", "Light"), r.RenderOrder)
	assert.Equal(t, h.sink.Lines(), r.Diagnostics)
	assert.NoError(t, r.Err)
	for _, o := range r.Outcomes {
		assert.Equal(t, StatusRebuilt, o.Status)
	}
}

func TestEngine_UnchangedSourceIsNoop(t *testing.T) {
	h := newTestEngine(t, compiler.NewParser(), &syncView{}, config.Defaults())
	h.submit(t, lampSource, false)
	before := h.sink.Lines()

	h.submit(t, lampSource, false)

	assert.Len(t, h.reports.reports, 1, "no new cycle")
	assert.Equal(t, int64(1), h.engine.Generation())
	assert.Equal(t, before, h.sink.Lines())
}

func TestEngine_ForceReusesEverything(t *testing.T) {
	h := newTestEngine(t, compiler.NewParser(), &syncView{}, config.Defaults())
	h.submit(t, lampSource, false)
	h.submit(t, lampSource, true)

	require.Len(t, h.reports.reports, 2)
	r := h.reports.last()
	assert.Equal(t, CycleCompleted, r.Status)
	for _, o := range r.Outcomes {
		assert.Equal(t, StatusReused, o.Status, "key %s", o.Key)
	}
}

func TestEngine_LiveBuildingOffRebuildsEverything(t *testing.T) {
	settings := config.Defaults()
	settings.LiveBuilding = false
	h := newTestEngine(t, compiler.NewParser(), &syncView{}, settings)
	h.submit(t, lampSource, false)
	h.submit(t, lampSource, true)

	for _, o := range h.reports.last().Outcomes {
		assert.Equal(t, StatusRebuilt, o.Status)
	}
}

func TestEngine_EditRebuildsDependents(t *testing.T) {
	h := newTestEngine(t, compiler.NewParser(), &syncView{}, config.Defaults())
	h.submit(t, lampSource, false)

	edited := `
process: {
	Light: transitions: ["off -on-> lit", "lit -off-> off", "lit -dim-> low"]
	Lamp: {
		uses: ["Light"]
		transitions: ["idle -plug-> Light"]
	}
	Desk: transitions: ["a -b-> c"]
}
`
	h.submit(t, edited, false)

	r := h.reports.last()
	assert.Equal(t, CycleCompleted, r.Status)
	statuses := map[ir.DefinitionKey]KeyStatus{}
	for _, o := range r.Outcomes {
		statuses[o.Key] = o.Status
	}
	assert.Equal(t, map[ir.DefinitionKey]KeyStatus{
		"Light": StatusRebuilt,
		"Lamp":  StatusRebuilt,
		"Desk":  StatusRebuilt,
	}, statuses)
	assert.Nil(t, r.Operations, "no operations block without operations")
	assert.NotContains(t, h.sink.Lines(), "Operations:")
}

func TestEngine_EmptySourceResets(t *testing.T) {
	h := newTestEngine(t, compiler.NewParser(), &syncView{}, config.Defaults())
	h.submit(t, lampSource, false)
	require.NotNil(t, h.engine.Coordinator().Current())

	h.submit(t, "", false)

	assert.Empty(t, h.sink.Lines())
	assert.Nil(t, h.engine.Coordinator().Current())
	assert.Equal(t, "", h.engine.lastText)
	assert.Len(t, h.reports.reports, 1)

	// The same text compiles again after a reset
	h.submit(t, lampSource, false)
	assert.Len(t, h.reports.reports, 2)
	for _, o := range h.reports.last().Outcomes {
		assert.Equal(t, StatusRebuilt, o.Status)
	}
}

func TestEngine_WhitespaceSourceCompiles(t *testing.T) {
	h := newTestEngine(t, compiler.NewParser(), &syncView{}, config.Defaults())
	h.submit(t, lampSource, false)

	h.submit(t, "  \n\t", false)

	require.Len(t, h.reports.reports, 2)
	r := h.reports.last()
	assert.Equal(t, CycleCompleted, r.Status)
	assert.Empty(t, r.Outcomes)
	assert.Equal(t, "  \n\t", h.engine.lastText)
	assert.Contains(t, h.sink.Lines(), "Rendered successfully after 0.001 seconds.")

	// Resubmitting the same whitespace is a no-op
	h.submit(t, "  \n\t", false)
	assert.Len(t, h.reports.reports, 2)
}

func TestEngine_ForcedEmptySourceBuilds(t *testing.T) {
	view := &syncView{}
	h := newTestEngine(t, compiler.NewParser(), view, config.Defaults())
	h.submit(t, "", true)

	require.Len(t, h.reports.reports, 1)
	assert.Equal(t, CycleCompleted, h.reports.last().Status)
	assert.Equal(t, []string{
		"Interpreted successfully after 0.001 seconds.",
		"Rendered successfully after 0.001 seconds.",
	}, h.sink.Lines())
	assert.Equal(t, [][]ir.DefinitionKey{{}, {}}, view.shown)
}

func TestEngine_StaleGenerationDropped(t *testing.T) {
	h := newTestEngine(t, compiler.NewParser(), &syncView{}, config.Defaults())
	h.buffer.SetText(lampSource)
	h.engine.Submit(true)
	h.engine.Submit(true)
	require.NoError(t, h.engine.RunPending(context.Background()))

	require.Len(t, h.reports.reports, 1, "the first build never ran")
	assert.Equal(t, int64(2), h.reports.last().Generation)
	assert.Equal(t, "cycle-2", h.reports.last().Token)
}

func TestEngine_EmptySubmitSupersedesPendingBuild(t *testing.T) {
	h := newTestEngine(t, compiler.NewParser(), &syncView{}, config.Defaults())
	h.submit(t, lampSource, false)
	require.Len(t, h.reports.reports, 1)

	// Process one submit by hand so its build is queued but not yet run
	h.buffer.SetText(lampSource + "\n")
	require.NoError(t, h.engine.processEvent(Event{Type: EventTypeSubmit}))
	require.Equal(t, 1, h.engine.QueueLen())

	h.buffer.SetText("")
	h.engine.Submit(false)
	require.NoError(t, h.engine.RunPending(context.Background()))

	assert.Len(t, h.reports.reports, 1, "queued build was dropped")
	assert.Empty(t, h.sink.Lines())
}

func TestEngine_StaleRenderSignalsDropped(t *testing.T) {
	view := &holdView{}
	h := newTestEngine(t, compiler.NewParser(), view, config.Defaults())

	h.submit(t, lampSource, false)
	require.Len(t, view.lists, 2)
	first := view.last()
	assert.Equal(t, "Rendering...", h.sink.Lines()[len(h.sink.Lines())-1])
	assert.Empty(t, h.reports.reports, "cycle waits for rendering")

	h.submit(t, lampSource, true)
	require.Len(t, h.reports.reports, 1)
	assert.Equal(t, CycleSuperseded, h.reports.last().Status)
	second := view.last()
	assert.NotEqual(t, first.Barrier(), second.Barrier())

	for _, job := range first.Jobs {
		first.Done(job.Key)
	}
	require.NoError(t, h.engine.RunPending(context.Background()))
	assert.Len(t, h.reports.reports, 1, "old barrier signals are not counted")
	assert.Equal(t, "Rendering...", h.sink.Lines()[len(h.sink.Lines())-1])

	second.Done(second.Jobs[0].Key)
	require.NoError(t, h.engine.RunPending(context.Background()))
	assert.Len(t, h.reports.reports, 1)

	second.Done(second.Jobs[1].Key)
	require.NoError(t, h.engine.RunPending(context.Background()))
	require.Len(t, h.reports.reports, 2)
	assert.Equal(t, CycleCompleted, h.reports.last().Status)
	assert.Equal(t, "Rendered successfully after 0.001 seconds.", h.sink.Lines()[len(h.sink.Lines())-1])
	assert.NotContains(t, h.sink.Lines(), "Rendering...")
}

func TestEngine_RenderCompletionAnyOrder(t *testing.T) {
	view := &syncView{reverse: true}
	h := newTestEngine(t, compiler.NewParser(), view, config.Defaults())
	h.submit(t, lampSource, false)

	require.Len(t, h.reports.reports, 1)
	assert.Equal(t, CycleCompleted, h.reports.last().Status)
	lines := h.sink.Lines()
	assert.Equal(t, "Rendered successfully after 0.001 seconds.", lines[len(lines)-1])
}

func TestEngine_CompileError(t *testing.T) {
	p := newStubParser()
	p.compile = errors.New("source.cue:1:1: cue: expected '}'")
	view := &syncView{}
	h := newTestEngine(t, p, view, config.Defaults())

	h.submit(t, "process: {", false)

	assert.Equal(t, []string{"source.cue:1:1: cue: expected '}'"}, h.sink.Lines())
	r := h.reports.last()
	assert.Equal(t, CycleCompileFailed, r.Status)
	assert.True(t, IsCompileError(r.Err))
	assert.Empty(t, view.shown, "nothing is rendered")
}

func TestEngine_BuildError(t *testing.T) {
	p := newStubParser()
	p.manifest = &ir.Manifest{Definitions: []ir.DefinitionSource{def("A", "A: a")}}
	p.errs["A: a"] = errors.New("bad graph")
	h := newTestEngine(t, p, &syncView{}, config.Defaults())

	h.submit(t, "anything", false)

	r := h.reports.last()
	assert.Equal(t, CycleBuildFailed, r.Status)
	assert.True(t, IsStage(r.Err, StageBuild))
	assert.Equal(t, []string{"failed to build A: bad graph"}, h.sink.Lines())
	assert.Nil(t, h.engine.Coordinator().Current())
}

func TestEngine_OperationErrorStopsBeforeRender(t *testing.T) {
	p := newStubParser()
	p.manifest = &ir.Manifest{
		Definitions: []ir.DefinitionSource{def("A", "A: a")},
		Operations:  []string{"A.bad"},
	}
	p.opsErr = errors.New(`operation "A.bad": did not return bool`)
	view := &syncView{}
	h := newTestEngine(t, p, view, config.Defaults())

	h.submit(t, "anything", false)

	r := h.reports.last()
	assert.Equal(t, CycleOperationsFailed, r.Status)
	assert.True(t, IsStage(r.Err, StageOperations))
	assert.Empty(t, view.shown)
	assert.Equal(t, `operation "A.bad": did not return bool`, h.sink.Lines()[len(h.sink.Lines())-1])
}

func TestEngine_DependencyFailureDiagnostics(t *testing.T) {
	h := newTestEngine(t, compiler.NewParser(), &syncView{}, config.Defaults())
	h.submit(t, `process: {
	Lamp: {uses: ["Ghost"], transitions: ["idle -plug-> Ghost"]}
	Desk: transitions: ["a -b-> c"]
}`, false)

	assert.Equal(t, []string{
		"Interpretation failed after 0.001 seconds.",
		`  Lamp: dependency "Ghost" of "Lamp" is undefined`,
		"Interpreted successfully after 0.001 seconds.",
		"Desk: States - 2, Transitions - 1",
		"Rendered successfully after 0.001 seconds.",
	}, h.sink.Lines())

	r := h.reports.last()
	assert.Equal(t, CycleCompleted, r.Status)
	assert.Equal(t, StatusFailed, r.Outcomes[0].Status)
	assert.True(t, IsDependencyError(r.Outcomes[0].Err))
}

func TestEngine_SeedServesAsCache(t *testing.T) {
	first := newTestEngine(t, compiler.NewParser(), &syncView{}, config.Defaults())
	first.submit(t, lampSource, false)
	build := first.reports.last().Build

	h := newTestEngine(t, compiler.NewParser(), &syncView{}, config.Defaults())
	require.True(t, h.engine.Seed(build))
	h.submit(t, lampSource, false)

	for _, o := range h.reports.last().Outcomes {
		assert.Equal(t, StatusReused, o.Status)
	}
}

func TestEngine_EditedRespectsLiveCompiling(t *testing.T) {
	settings := config.Defaults()
	settings.LiveCompiling = false
	h := newTestEngine(t, compiler.NewParser(), &syncView{}, settings)
	h.buffer.SetText(lampSource)

	assert.False(t, h.engine.Edited())
	assert.Equal(t, 0, h.engine.QueueLen())

	h.engine.settings.(*config.Provider).Set(config.Defaults())
	assert.True(t, h.engine.Edited())
	require.NoError(t, h.engine.RunPending(context.Background()))
	assert.Len(t, h.reports.reports, 1)
}

func TestEngine_RunLoop(t *testing.T) {
	done := make(chan CycleReport, 1)
	buffer := NewBuffer(lampSource)
	e := New(compiler.NewParser(), buffer, &memSink{}, &syncView{}, nil,
		WithObserver(ObserverFunc(func(r CycleReport) { done <- r })),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()

	e.Submit(false)
	select {
	case r := <-done:
		assert.Equal(t, CycleCompleted, r.Status)
		assert.Len(t, r.Token, 36, "default tokens are UUIDs")
	case <-time.After(5 * time.Second):
		t.Fatal("cycle did not complete")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
	assert.False(t, e.Submit(false), "queue closed after run stops")
}

func TestEngine_StopEndsRun(t *testing.T) {
	e := New(newStubParser(), NewBuffer(""), &memSink{}, &syncView{}, nil)
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(context.Background()) }()

	e.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}
