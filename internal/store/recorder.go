package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/automata/internal/engine"
	"github.com/roach88/automata/internal/ir"
)

// Recorder persists every finished cycle. It implements engine.CycleObserver.
//
// CycleFinished runs on the engine loop goroutine, so writes are serialized
// with the engine's own state changes.
type Recorder struct {
	store *Store
	ctx   context.Context

	mu   sync.Mutex
	errs []error
}

// NewRecorder creates a recorder writing to s.
func NewRecorder(ctx context.Context, s *Store) *Recorder {
	return &Recorder{store: s, ctx: ctx}
}

// CycleFinished saves the report. Failures are logged and kept for Errors.
func (r *Recorder) CycleFinished(report engine.CycleReport) {
	rec := RecordFromReport(report)
	inserted, err := r.store.SaveCycle(r.ctx, rec)
	if err != nil {
		slog.Error("failed to persist cycle",
			"generation", report.Generation,
			"cycle_token", report.Token,
			"error", err)
		r.mu.Lock()
		r.errs = append(r.errs, err)
		r.mu.Unlock()
		return
	}
	slog.Debug("cycle persisted",
		"generation", report.Generation,
		"cycle_token", report.Token,
		"inserted", inserted)
}

// Errors returns persistence failures seen so far.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// RecordFromReport converts an engine report to its stored form.
// Definitions are listed in manifest order; keys missing from the build
// (failed or skipped) are left out.
func RecordFromReport(report engine.CycleReport) CycleRecord {
	rec := CycleRecord{
		Generation:    report.Generation,
		CycleToken:    report.Token,
		Status:        string(report.Status),
		SourceHash:    ir.SourceHash(report.Source),
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
		Diagnostics:   append([]string{}, report.Diagnostics...),
	}
	if report.Build != nil {
		rec.Definitions = []DefinitionRecord{}
		for _, key := range report.Order {
			entry, ok := report.Build[key]
			if !ok {
				continue
			}
			rec.Definitions = append(rec.Definitions, DefinitionRecord{
				Key:      key,
				Text:     entry.Text,
				TextHash: ir.MustDefinitionHash(ir.DefinitionSource{Key: key, Text: entry.Text}),
				Graph:    entry.Graph,
				Rebuilt:  entry.Rebuilt,
			})
		}
	}
	for _, out := range report.Outcomes {
		o := OutcomeRecord{Key: out.Key, Status: string(out.Status)}
		if out.Err != nil {
			o.Error = out.Err.Error()
		}
		rec.Outcomes = append(rec.Outcomes, o)
	}
	return rec
}
