package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/automata/internal/config"
	"github.com/roach88/automata/internal/ir"
)

// Parser is the external language front end.
// Implemented by compiler.Parser.
type Parser interface {
	// Compile turns a whole source document into a manifest whose
	// definitions are in dependency order.
	Compile(source string) (*ir.Manifest, error)

	// ParseDefinition builds one definition against the symbol table
	// assembled so far in the current pass.
	ParseDefinition(text string, table ir.SymbolTable, liveBuilding, fair bool) (*ir.Graph, error)

	// ParseOperations evaluates newline separated operations.
	ParseOperations(text string, table ir.SymbolTable, fair bool) ([]ir.OperationResult, error)
}

// LogSink receives the user-visible diagnostics of each cycle.
type LogSink interface {
	Log(line string)

	// Clear drops every line when n is 0, otherwise the trailing n lines.
	Clear(n int)
}

// RenderView displays render jobs. It must eventually call Done once per job
// of a list that carries jobs.
type RenderView interface {
	Show(list *JobList)
}

// Source supplies the text to compile.
type Source interface {
	Text() string
}

// SettingsSource supplies the current configuration. It is read once per
// submit and once per build.
type SettingsSource interface {
	Settings() config.Settings
}

// CycleObserver is told about every cycle that finished, failed or was
// superseded.
type CycleObserver interface {
	CycleFinished(report CycleReport)
}

// ObserverFunc adapts a function to CycleObserver.
type ObserverFunc func(CycleReport)

// CycleFinished calls f.
func (f ObserverFunc) CycleFinished(r CycleReport) { f(r) }

// CycleStatus is how a cycle ended.
type CycleStatus string

const (
	CycleCompleted        CycleStatus = "completed"
	CycleCompileFailed    CycleStatus = "compile_failed"
	CycleBuildFailed      CycleStatus = "build_failed"
	CycleOperationsFailed CycleStatus = "operations_failed"
	CycleSuperseded       CycleStatus = "superseded"
)

// CycleReport describes one build cycle.
type CycleReport struct {
	Generation  int64
	Token       string
	Status      CycleStatus
	Source      string
	Order       []ir.DefinitionKey // Manifest order; nil if compile failed
	Build       ir.Build
	Outcomes    []KeyOutcome
	Operations  *Evaluation
	RenderOrder []ir.DefinitionKey // Order jobs were handed to the view
	Diagnostics []string           // Log sink contents at the end of the cycle
	Err         error
}

// Engine is the single-writer compile scheduler.
//
// Thread-safety model:
//   - Submit(), Edited(), Seed(): safe from any goroutine
//   - JobList.Done(): safe from any goroutine
//   - Run() / RunPending(): must be called from exactly one goroutine
type Engine struct {
	parser      Parser
	source      Source
	sink        LogSink
	view        RenderView
	settings    SettingsSource
	observer    CycleObserver
	tokens      TokenGenerator
	clock       *Clock
	now         func() time.Time
	queue       *eventQueue
	coordinator *Coordinator

	// Loop-owned state
	lastText    string
	barrier     *Barrier
	barrierSeq  int64
	pendingJobs []ir.RenderJob
	pending     *CycleReport
	transcript  []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow sets the wall-clock source used for stage timings.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithTokenGenerator sets the cycle token generator (default UUIDv7).
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) {
		e.tokens = g
	}
}

// WithObserver registers a cycle observer.
func WithObserver(o CycleObserver) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithClock sets the generation clock, for example one resumed after a
// persisted generation.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine. A nil settings source uses config.Defaults.
func New(parser Parser, source Source, sink LogSink, view RenderView, settings SettingsSource, opts ...Option) *Engine {
	if settings == nil {
		settings = config.NewProvider(config.Defaults())
	}

	e := &Engine{
		parser:   parser,
		source:   source,
		sink:     sink,
		view:     view,
		settings: settings,
		tokens:   UUIDv7Generator{},
		clock:    NewClock(),
		now:      time.Now,
		queue:    newEventQueue(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.coordinator = NewCoordinator(parser, e.now)
	return e
}

// Submit asks for a compile of the current source.
// With force, the empty and unchanged short-circuits are bypassed.
// Returns false if the engine has been stopped.
func (e *Engine) Submit(force bool) bool {
	return e.queue.Enqueue(Event{Type: EventTypeSubmit, Force: force})
}

// Edited is called on every source change. It submits only when live
// compiling is enabled.
func (e *Engine) Edited() bool {
	if !e.settings.Settings().LiveCompiling {
		return false
	}
	return e.Submit(false)
}

// Seed installs b as the current build generation before the next cycle.
func (e *Engine) Seed(b ir.Build) bool {
	return e.queue.Enqueue(Event{Type: EventTypeSeed, Seed: b})
}

// Generation returns the latest generation stamped by Submit.
func (e *Engine) Generation() int64 {
	return e.clock.Current()
}

// QueueLen returns the number of unprocessed events.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Coordinator exposes the build generations. Only read it while the loop is
// idle.
func (e *Engine) Coordinator() *Coordinator {
	return e.coordinator
}

// Run starts the single-writer event loop.
// Blocks until context is cancelled or Stop() is called.
//
// Event failures are logged and the loop continues.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			if err := e.processEvent(event); err != nil {
				logEventError(event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed
			if e.closed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// RunPending processes queued events, including those enqueued while
// processing, until the queue is empty. It is the synchronous counterpart to
// Run for tests and one-shot commands.
func (e *Engine) RunPending(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		event, ok := e.queue.TryDequeue()
		if !ok {
			return nil
		}
		if err := e.processEvent(event); err != nil {
			logEventError(event, err)
		}
	}
}

// Stop gracefully shuts down the engine.
// Closes the event queue, which will cause Run() to return.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) closed() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed
}

// processEvent routes an event to the appropriate handler.
// CRITICAL: Called only from the loop goroutine - single-writer guarantee.
func (e *Engine) processEvent(event Event) error {
	switch event.Type {
	case EventTypeSubmit:
		e.handleSubmit(event.Force)
	case EventTypeBuild:
		e.handleBuild(event)
	case EventTypePublish:
		e.handlePublish(event)
	case EventTypeRenderDone:
		e.handleRenderDone(event)
	case EventTypeSeed:
		e.coordinator.Seed(event.Seed)
	default:
		return fmt.Errorf("unknown event type: %d", event.Type)
	}
	return nil
}

func logEventError(event Event, err error) {
	slog.Error("event processing failed",
		"event_type", event.Type,
		"generation", event.Generation,
		"error", err,
	)
}

// handleSubmit applies the short-circuit rules and defers the build to the
// next tick.
func (e *Engine) handleSubmit(force bool) {
	text := e.source.Text()

	if !force && text == "" {
		// Invalidate any build still waiting for its tick
		e.clock.Next()
		e.detach()
		e.clear(0)
		e.coordinator.Reset()
		e.lastText = ""
		slog.Debug("source empty, state reset")
		return
	}

	if !force && text == e.lastText {
		slog.Debug("source unchanged, skipping compile")
		return
	}

	e.lastText = text
	gen := e.clock.Next()
	token := e.tokens.Generate()
	slog.Debug("build scheduled", "generation", gen, "cycle_token", token, "force", force)

	e.queue.Enqueue(Event{
		Type:       EventTypeBuild,
		Generation: gen,
		Token:      token,
		Source:     text,
	})
}

// handleBuild runs compile, rebuild and evaluation for one generation and
// starts rendering.
func (e *Engine) handleBuild(event Event) {
	if !e.clock.IsCurrent(event.Generation) {
		slog.Debug("dropping superseded build",
			"generation", event.Generation,
			"current", e.clock.Current(),
		)
		return
	}

	e.detach()
	e.clear(0)

	report := &CycleReport{
		Generation: event.Generation,
		Token:      event.Token,
		Source:     event.Source,
	}
	settings := e.settings.Settings()

	manifest, err := e.parser.Compile(event.Source)
	if err != nil {
		e.log(err.Error())
		e.finish(report, CycleCompileFailed, &StageError{Stage: StageCompile, Err: err})
		return
	}
	report.Order = manifest.Keys()

	e.log("Interpreting...")
	watch := startStopwatch(e.now)
	res, err := e.coordinator.Rebuild(manifest, settings.LiveBuilding, settings.FairAbstraction)
	e.clear(1)
	if err != nil {
		e.log(err.Error())
		e.finish(report, CycleBuildFailed, &StageError{Stage: StageBuild, Err: err})
		return
	}
	for _, line := range res.Failures {
		e.log(line)
	}
	e.log(fmt.Sprintf("Interpreted successfully after %s seconds.", watch.Seconds()))
	for _, line := range res.Sizes {
		e.log(line)
	}
	report.Build = res.Current
	report.Outcomes = res.Outcomes

	if len(manifest.Operations) > 0 {
		watch = startStopwatch(e.now)
		eval, err := Evaluate(e.parser, manifest.Operations, res.Table, settings.FairAbstraction)
		if err != nil {
			e.log(err.Error())
			e.finish(report, CycleOperationsFailed, &StageError{Stage: StageOperations, Err: err})
			return
		}
		e.log("")
		e.log("Operations:")
		for _, line := range eval.Lines {
			e.log(line)
		}
		e.log(fmt.Sprintf("Evaluated operations after %s seconds.", watch.Seconds()))
		report.Operations = eval
	}

	e.startRender(event.Generation, res.Jobs, report)
}

// startRender publishes the empty list now and the real list on the next
// tick, so the view sees a new list identity even when jobs are unchanged.
func (e *Engine) startRender(gen int64, jobs []ir.RenderJob, report *CycleReport) {
	e.log("Rendering...")

	report.RenderOrder = make([]ir.DefinitionKey, len(jobs))
	for i, job := range jobs {
		report.RenderOrder[i] = job.Key
	}

	e.barrierSeq++
	e.barrier = NewBarrier(e.barrierSeq, len(jobs), e.now, e.rendered)
	e.pendingJobs = jobs
	e.pending = report

	e.view.Show(emptyJobList())
	e.queue.Enqueue(Event{Type: EventTypePublish, Generation: gen, Barrier: e.barrierSeq})
}

func (e *Engine) handlePublish(event Event) {
	if e.barrier == nil || e.barrier.ID() != event.Barrier {
		slog.Debug("dropping stale publish", "barrier", event.Barrier)
		return
	}

	list := newJobList(e.pendingJobs, event.Barrier, e.signalDone)
	e.pendingJobs = nil

	e.barrier.Arm()
	e.view.Show(list)
}

// signalDone is handed to job lists; it runs on renderer goroutines.
func (e *Engine) signalDone(barrier int64, key ir.DefinitionKey) {
	e.queue.Enqueue(Event{Type: EventTypeRenderDone, Barrier: barrier, Key: key})
}

func (e *Engine) handleRenderDone(event Event) {
	if e.barrier == nil || e.barrier.ID() != event.Barrier {
		slog.Debug("dropping stale render signal", "barrier", event.Barrier, "key", event.Key)
		return
	}
	e.barrier.Signal()
}

// rendered is the barrier callback.
func (e *Engine) rendered(elapsed time.Duration) {
	e.clear(1)
	e.log(fmt.Sprintf("Rendered successfully after %s seconds.", formatSeconds(elapsed)))
	e.barrier = nil

	if report := e.pending; report != nil {
		e.pending = nil
		e.finish(report, CycleCompleted, nil)
	}
}

// detach abandons the render in flight, if any. Its late signals are
// dropped because no barrier carries their id any more.
func (e *Engine) detach() {
	e.barrier = nil
	e.pendingJobs = nil
	if report := e.pending; report != nil {
		e.pending = nil
		e.finish(report, CycleSuperseded, nil)
	}
}

func (e *Engine) finish(report *CycleReport, status CycleStatus, err error) {
	report.Status = status
	report.Err = err
	report.Diagnostics = slices.Clone(e.transcript)
	if report.Diagnostics == nil {
		report.Diagnostics = []string{}
	}

	attrs := []any{
		"generation", report.Generation,
		"cycle_token", report.Token,
		"status", status,
	}
	if err != nil {
		slog.Warn("cycle failed", append(attrs, "error", err)...)
	} else {
		slog.Info("cycle finished", attrs...)
	}

	if e.observer != nil {
		e.observer.CycleFinished(*report)
	}
}

// log writes to the sink and mirrors the line into the cycle transcript.
func (e *Engine) log(line string) {
	e.sink.Log(line)
	e.transcript = append(e.transcript, line)
}

func (e *Engine) clear(n int) {
	e.sink.Clear(n)
	if n <= 0 || n >= len(e.transcript) {
		e.transcript = e.transcript[:0]
		return
	}
	e.transcript = e.transcript[:len(e.transcript)-n]
}
