package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/automata/internal/compiler"
	"github.com/roach88/automata/internal/console"
	"github.com/roach88/automata/internal/engine"
	"github.com/roach88/automata/internal/ir"
	"github.com/roach88/automata/internal/render"
	"github.com/roach88/automata/internal/store"
)

// sessionOptions configures the engine a build or watch command drives.
type sessionOptions struct {
	Database string // empty: no persistence, no seeding
	Out      string // empty: jobs are acknowledged without writing files
	Settings engine.SettingsSource
	Tokens   engine.TokenGenerator // nil: UUIDv7
}

// session is one engine wired to the console, the renderer and the store.
type session struct {
	engine   *engine.Engine
	buffer   *engine.Buffer
	console  *console.Console
	store    *store.Store
	recorder *store.Recorder
	dot      *render.DOTView
	reports  chan engine.CycleReport
	seeded   int64 // generation the cache was seeded from, 0 if none
}

// openSession builds the engine. When a database is given, generations
// continue after the last persisted one and the latest build seeds the
// coordinator's cache.
func openSession(ctx context.Context, opts sessionOptions, text string) (*session, error) {
	s := &session{
		buffer:  engine.NewBuffer(text),
		console: console.New(),
		reports: make(chan engine.CycleReport, 16),
	}

	clock := engine.NewClock()
	var seed ir.Build
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, ErrCodeDatabase+": failed to open database", err)
		}
		s.store = st
		s.recorder = store.NewRecorder(ctx, st)

		latest, err := st.LatestGeneration(ctx)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, ErrCodeDatabase+": failed to read generations", err)
		}
		clock = engine.NewClockAt(latest)

		gen, build, err := st.LatestBuild(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			st.Close()
			return nil, WrapExitError(ExitCommandError, ErrCodeDatabase+": failed to load previous build", err)
		default:
			seed = build
			s.seeded = gen
			slog.Debug("seeding from store", "generation", gen, "definitions", len(build))
		}
	}

	var view engine.RenderView = &render.SyncView{}
	if opts.Out != "" {
		if err := os.MkdirAll(opts.Out, 0o755); err != nil {
			s.Close()
			return nil, WrapExitError(ExitCommandError, ErrCodeWriteFailed+": failed to create output directory", err)
		}
		s.dot = render.NewDOTView(opts.Out)
		view = s.dot
	}

	engineOpts := []engine.Option{
		engine.WithClock(clock),
		engine.WithObserver(engine.ObserverFunc(func(r engine.CycleReport) {
			if s.recorder != nil {
				s.recorder.CycleFinished(r)
			}
			select {
			case s.reports <- r:
			case <-ctx.Done():
			}
		})),
	}
	if opts.Tokens != nil {
		engineOpts = append(engineOpts, engine.WithTokenGenerator(opts.Tokens))
	}

	s.engine = engine.New(compiler.NewParser(), s.buffer, s.console, view, opts.Settings, engineOpts...)
	if seed != nil {
		s.engine.Seed(seed)
	}
	return s, nil
}

// storeErrors returns persistence and render failures seen so far.
func (s *session) storeErrors() []error {
	var errs []error
	if s.recorder != nil {
		errs = append(errs, s.recorder.Errors()...)
	}
	if s.dot != nil {
		errs = append(errs, s.dot.Errors()...)
	}
	return errs
}

// Close stops the engine, waits for pending DOT writes and closes the
// store.
func (s *session) Close() error {
	if s.engine != nil {
		s.engine.Stop()
	}
	if s.dot != nil {
		s.dot.Wait()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("closing database: %w", err)
		}
	}
	return nil
}

// CycleSummary is the reported form of one cycle.
type CycleSummary struct {
	Generation  int64    `json:"generation"`
	CycleToken  string   `json:"cycle_token"`
	Status      string   `json:"status"`
	SeededFrom  int64    `json:"seeded_from,omitempty"`
	Rebuilt     []string `json:"rebuilt"`
	Reused      []string `json:"reused"`
	Failed      []string `json:"failed"`
	Skipped     []string `json:"skipped"`
	Rendered    []string `json:"rendered"`
	Passed      int      `json:"operations_passed"`
	FailedOps   int      `json:"operations_failed"`
	Diagnostics []string `json:"diagnostics"`
	Error       string   `json:"error,omitempty"`
}

func summarizeCycle(r engine.CycleReport, seeded int64) CycleSummary {
	sum := CycleSummary{
		Generation:  r.Generation,
		CycleToken:  r.Token,
		Status:      string(r.Status),
		SeededFrom:  seeded,
		Rebuilt:     []string{},
		Reused:      []string{},
		Failed:      []string{},
		Skipped:     []string{},
		Rendered:    []string{},
		Diagnostics: r.Diagnostics,
	}
	for _, o := range r.Outcomes {
		switch o.Status {
		case engine.StatusRebuilt:
			sum.Rebuilt = append(sum.Rebuilt, string(o.Key))
		case engine.StatusReused:
			sum.Reused = append(sum.Reused, string(o.Key))
		case engine.StatusFailed:
			sum.Failed = append(sum.Failed, string(o.Key))
		case engine.StatusSkipped:
			sum.Skipped = append(sum.Skipped, string(o.Key))
		}
	}
	for _, k := range r.RenderOrder {
		sum.Rendered = append(sum.Rendered, string(k))
	}
	if r.Operations != nil {
		sum.Passed = r.Operations.Pass
		sum.FailedOps = r.Operations.Fail
	}
	if r.Err != nil {
		sum.Error = r.Err.Error()
	}
	return sum
}

// cycleFailed reports whether a cycle ended without a usable build.
func cycleFailed(r engine.CycleReport) bool {
	switch r.Status {
	case engine.CycleCompileFailed, engine.CycleBuildFailed, engine.CycleOperationsFailed:
		return true
	}
	return false
}
