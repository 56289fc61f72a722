package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/automata/internal/ir"
)

// KeyStatus is what a build pass did with one definition.
type KeyStatus string

const (
	// StatusRebuilt means the definition was compiled in this pass.
	StatusRebuilt KeyStatus = "rebuilt"
	// StatusReused means the previous entry was carried over unchanged.
	StatusReused KeyStatus = "reused"
	// StatusFailed means a dependency was undefined; the key is not built.
	StatusFailed KeyStatus = "failed"
	// StatusSkipped means a dependency failed or was skipped.
	StatusSkipped KeyStatus = "skipped"
)

// KeyOutcome reports the status of one manifest key.
type KeyOutcome struct {
	Key    ir.DefinitionKey `json:"key"`
	Status KeyStatus        `json:"status"`
	Err    error            `json:"-"`
}

// RebuildResult is the outcome of one build pass.
type RebuildResult struct {
	Current  ir.Build
	Table    ir.SymbolTable
	Outcomes []KeyOutcome // Manifest order
	Jobs     []ir.RenderJob

	// Failures holds "Interpretation failed" lines, Sizes the per-key
	// size report.
	Failures []string
	Sizes    []string
}

// Keys returns the keys that reached the given status, in manifest order.
func (r *RebuildResult) Keys(status KeyStatus) []ir.DefinitionKey {
	keys := []ir.DefinitionKey{}
	for _, o := range r.Outcomes {
		if o.Status == status {
			keys = append(keys, o.Key)
		}
	}
	return keys
}

// Coordinator owns the build generations and decides what to rebuild.
//
// It is not safe for concurrent use; the engine calls it only from the loop.
type Coordinator struct {
	parser   Parser
	now      func() time.Time
	previous ir.Build
	current  ir.Build
}

// NewCoordinator creates a coordinator with no generations.
func NewCoordinator(parser Parser, now func() time.Time) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{parser: parser, now: now}
}

// Current returns the latest completed build, or nil.
func (c *Coordinator) Current() ir.Build {
	return c.current
}

// Previous returns the build before Current, or nil.
func (c *Coordinator) Previous() ir.Build {
	return c.previous
}

// Reset drops both generations so the next pass rebuilds everything.
func (c *Coordinator) Reset() {
	c.previous = nil
	c.current = nil
}

// Seed installs b as the current generation, for example a build restored
// from the store.
func (c *Coordinator) Seed(b ir.Build) {
	c.previous = c.current
	c.current = b
}

// Rebuild runs one pass against the current generation. On success the
// generations rotate; on error they are left untouched.
func (c *Coordinator) Rebuild(m *ir.Manifest, liveBuilding, fair bool) (*RebuildResult, error) {
	res, err := rebuild(c.parser, m, c.current, liveBuilding, fair, c.now)
	if err != nil {
		return nil, err
	}
	c.previous = c.current
	c.current = res.Current
	return res, nil
}

// rebuild walks the manifest in order, rebuilding a definition when it is
// new, its normalized text changed, a dependency was rebuilt in this pass,
// or liveBuilding is off. Everything else is copied from previous.
//
// The manifest is assumed to be in dependency order already.
func rebuild(parser Parser, m *ir.Manifest, previous ir.Build, liveBuilding, fair bool, now func() time.Time) (*RebuildResult, error) {
	watch := startStopwatch(now)
	res := &RebuildResult{
		Current:  make(ir.Build, len(m.Definitions)),
		Table:    make(ir.SymbolTable, len(m.Definitions)),
		Outcomes: make([]KeyOutcome, 0, len(m.Definitions)),
		Jobs:     []ir.RenderJob{},
		Failures: []string{},
		Sizes:    []string{},
	}
	status := make(map[ir.DefinitionKey]KeyStatus, len(m.Definitions))

	fail := func(key ir.DefinitionKey, err error) {
		status[key] = StatusFailed
		res.Outcomes = append(res.Outcomes, KeyOutcome{Key: key, Status: StatusFailed, Err: err})
		res.Failures = append(res.Failures,
			fmt.Sprintf("Interpretation failed after %s seconds.", watch.Seconds()),
			fmt.Sprintf("  %s: %v", key, err),
		)
		slog.Warn("definition failed", "key", key, "error", err)
	}

	for _, src := range m.Definitions {
		key := src.Key
		text := ir.NormalizeText(src.Text)

		// Dependents of a failed definition cannot be built either
		if blocked, ok := blockedBy(src.Dependencies, status); ok {
			status[key] = StatusSkipped
			res.Outcomes = append(res.Outcomes, KeyOutcome{
				Key:    key,
				Status: StatusSkipped,
				Err:    &DependencyError{Key: key, Dependency: blocked},
			})
			continue
		}

		// An undefined dependency fails the key even if its text is cached
		if missing, ok := missingDependency(src.Dependencies, res.Table); ok {
			fail(key, &DependencyError{Key: key, Dependency: missing})
			continue
		}

		prev, cached := previous[key]
		needsRebuild := !liveBuilding || !cached || prev.Text != text
		for _, dep := range src.Dependencies {
			if status[dep] == StatusRebuilt {
				needsRebuild = true
				break
			}
		}

		if !needsRebuild {
			prev.Rebuilt = false
			res.Current[key] = prev
			res.Table[key] = prev.Graph
			status[key] = StatusReused
			res.Outcomes = append(res.Outcomes, KeyOutcome{Key: key, Status: StatusReused})
			continue
		}

		g, err := parser.ParseDefinition(text, res.Table, liveBuilding, fair)
		if err != nil {
			if IsDependencyError(err) {
				fail(key, err)
				continue
			}
			return nil, fmt.Errorf("failed to build %s: %w", key, err)
		}

		res.Current[key] = ir.BuiltDefinition{Key: key, Text: text, Graph: g, Rebuilt: true}
		res.Table[key] = g
		status[key] = StatusRebuilt
		res.Outcomes = append(res.Outcomes, KeyOutcome{Key: key, Status: StatusRebuilt})
	}

	for _, src := range m.Definitions {
		entry, ok := res.Current[src.Key]
		if !ok {
			continue
		}
		g := entry.Graph
		line := fmt.Sprintf("%s: States - %d, Transitions - %d", src.Key, g.NodeCount(), g.EdgeCount())
		if g.NodeCount() < ir.RenderThreshold {
			// A reused graph may still be read by the previous generation's
			// renderers, so it is marked on a private copy.
			job := g
			if !entry.Rebuilt {
				job = g.Clone()
			}
			job.MarkStopNodes()
			// Most recently processed key renders first
			res.Jobs = append([]ir.RenderJob{{Key: src.Key, Graph: job}}, res.Jobs...)
		} else {
			line += " (Too large to render)"
		}
		res.Sizes = append(res.Sizes, line)
	}

	slog.Debug("build pass finished",
		"rebuilt", len(res.Keys(StatusRebuilt)),
		"reused", len(res.Keys(StatusReused)),
		"failed", len(res.Keys(StatusFailed)),
		"skipped", len(res.Keys(StatusSkipped)),
		"elapsed", watch.Elapsed(),
	)
	return res, nil
}

// blockedBy returns the first dependency that failed or was skipped.
func blockedBy(deps []ir.DefinitionKey, status map[ir.DefinitionKey]KeyStatus) (ir.DefinitionKey, bool) {
	for _, dep := range deps {
		if s := status[dep]; s == StatusFailed || s == StatusSkipped {
			return dep, true
		}
	}
	return "", false
}

// missingDependency returns the first dependency absent from table.
func missingDependency(deps []ir.DefinitionKey, table ir.SymbolTable) (ir.DefinitionKey, bool) {
	for _, dep := range deps {
		if _, ok := table[dep]; !ok {
			return dep, true
		}
	}
	return "", false
}
