package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/automata/internal/compiler"
	"github.com/roach88/automata/internal/config"
	"github.com/roach88/automata/internal/console"
	"github.com/roach88/automata/internal/engine"
	"github.com/roach88/automata/internal/ir"
	"github.com/roach88/automata/internal/render"
	"github.com/roach88/automata/internal/testutil"
)

// Harness drives one engine through a scenario's steps.
type Harness struct {
	engine  *engine.Engine
	buffer  *engine.Buffer
	console *console.Console
	reports []engine.CycleReport
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs on a fresh engine with the real compiler, so steps see
// exactly the caching a long-lived editor session would.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	settings := config.Defaults()
	if scenario.Settings != nil {
		settings = settings.Apply(*scenario.Settings)
	}

	var tokens engine.TokenGenerator = engine.NewFixedGenerator()
	if scenario.CycleToken != "" {
		tokens = testutil.NewFixedTokenGenerator(scenario.CycleToken)
	}

	clock := testutil.NewManualClock(testutil.Epoch)
	h := &Harness{
		buffer:  engine.NewBuffer(""),
		console: console.New(),
	}
	h.engine = engine.New(
		compiler.NewParser(),
		h.buffer,
		h.console,
		&render.SyncView{},
		config.NewProvider(settings),
		engine.WithNow(clock.Now),
		engine.WithTokenGenerator(tokens),
		engine.WithObserver(engine.ObserverFunc(func(r engine.CycleReport) {
			h.reports = append(h.reports, r)
		})),
	)
	defer h.engine.Stop()

	result := NewResult()
	for i, step := range scenario.Steps {
		got, err := h.runStep(ctx, i, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		result.Steps = append(result.Steps, got)
		if step.Expect != nil {
			for _, msg := range checkStep(got, step.Expect) {
				result.AddError(fmt.Sprintf("step %d: %s", i, msg))
			}
		}
		slog.Debug("scenario step finished",
			"scenario", scenario.Name,
			"step", i,
			"noop", got.Noop,
			"status", got.Status,
		)
	}
	return result, nil
}

func (h *Harness) runStep(ctx context.Context, index int, step Step) (StepResult, error) {
	before := len(h.reports)
	h.buffer.SetText(step.Source)
	if !h.engine.Submit(step.Force) {
		return StepResult{}, fmt.Errorf("engine stopped")
	}
	if err := h.engine.RunPending(ctx); err != nil {
		return StepResult{}, err
	}

	got := newStepResult(index)
	if len(h.reports) == before {
		got.Noop = true
		return got, nil
	}

	r := h.reports[len(h.reports)-1]
	got.Generation = r.Generation
	got.CycleToken = r.Token
	got.Status = string(r.Status)
	for _, o := range r.Outcomes {
		key := string(o.Key)
		switch o.Status {
		case engine.StatusRebuilt:
			got.Rebuilt = append(got.Rebuilt, key)
		case engine.StatusReused:
			got.Reused = append(got.Reused, key)
		case engine.StatusFailed:
			got.Failed = append(got.Failed, key)
		case engine.StatusSkipped:
			got.Skipped = append(got.Skipped, key)
		}
	}
	got.RenderOrder = keyStrings(r.RenderOrder)
	if r.Operations != nil {
		got.Operations = append(got.Operations, r.Operations.Lines...)
	}
	got.Log = append(got.Log, r.Diagnostics...)
	if r.Err != nil {
		got.Error = r.Err.Error()
	}
	return got, nil
}

// checkStep compares a step result against its expect clause.
func checkStep(got StepResult, want *Expect) []string {
	var errs []string

	if want.Noop != got.Noop {
		errs = append(errs, fmt.Sprintf("noop: expected %t, got %t", want.Noop, got.Noop))
		return errs
	}
	if want.Status != "" && want.Status != got.Status {
		errs = append(errs, fmt.Sprintf("status: expected %q, got %q", want.Status, got.Status))
	}

	lists := []struct {
		name      string
		want, got []string
	}{
		{"rebuilt", want.Rebuilt, got.Rebuilt},
		{"reused", want.Reused, got.Reused},
		{"failed", want.Failed, got.Failed},
		{"skipped", want.Skipped, got.Skipped},
		{"render_order", want.RenderOrder, got.RenderOrder},
		{"operations", want.Operations, got.Operations},
	}
	for _, l := range lists {
		if l.want != nil && !slices.Equal(l.want, l.got) {
			errs = append(errs, fmt.Sprintf("%s: expected %v, got %v", l.name, l.want, l.got))
		}
	}

	for _, sub := range want.LogContains {
		if !slices.ContainsFunc(got.Log, func(line string) bool { return strings.Contains(line, sub) }) {
			errs = append(errs, fmt.Sprintf("log_contains: no line contains %q", sub))
		}
	}

	if want.CompileError != "" {
		if got.Status != string(engine.CycleCompileFailed) {
			errs = append(errs, fmt.Sprintf("compile_error: expected a compile failure, got status %q", got.Status))
		} else if !strings.Contains(got.Error, want.CompileError) {
			errs = append(errs, fmt.Sprintf("compile_error: %q does not contain %q", got.Error, want.CompileError))
		}
	}
	return errs
}

func keyStrings(keys []ir.DefinitionKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
