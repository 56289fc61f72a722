package render

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/automata/internal/engine"
	"github.com/roach88/automata/internal/ir"
)

// DefaultParallelism bounds concurrent file writes of a DOTView.
const DefaultParallelism = 4

// DOTView writes each job to <dir>/<key>.dot on its own goroutine and
// signals the job list when the file is written.
//
// A failed write is logged and still signalled, so the batch completes.
// Jobs of a list older than the latest one shown are signalled without
// writing, and a file is never replaced by output of an older list.
type DOTView struct {
	dir string

	group   *errgroup.Group
	pending sync.WaitGroup
	latest  atomic.Int64 // barrier of the newest list shown

	mu      sync.Mutex
	failed  []error
	written map[ir.DefinitionKey]int64 // barrier whose output is on disk
}

// NewDOTView creates a view writing into dir, which is created on demand.
func NewDOTView(dir string) *DOTView {
	g := &errgroup.Group{}
	g.SetLimit(DefaultParallelism)
	return &DOTView{dir: dir, group: g, written: make(map[ir.DefinitionKey]int64)}
}

// Show implements engine.RenderView.
func (v *DOTView) Show(list *engine.JobList) {
	if len(list.Jobs) == 0 {
		return
	}
	barrier := list.Barrier()
	v.latest.Store(barrier)
	v.pending.Add(len(list.Jobs))

	// Launch from a separate goroutine: Go blocks at the limit and Show is
	// called from the engine loop.
	jobs := list.Jobs
	go func() {
		for _, job := range jobs {
			v.group.Go(func() error {
				defer v.pending.Done()
				if barrier < v.latest.Load() {
					slog.Debug("skipping superseded render", "key", job.Key, "barrier", barrier)
				} else if err := v.write(job, barrier); err != nil {
					slog.Error("render failed", "key", job.Key, "error", err)
					v.mu.Lock()
					v.failed = append(v.failed, err)
					v.mu.Unlock()
				}
				list.Done(job.Key)
				return nil
			})
		}
	}()
}

// Wait blocks until every job shown so far has been written or skipped.
func (v *DOTView) Wait() {
	v.pending.Wait()
}

// Path returns the file a job for key is written to.
func (v *DOTView) Path(key ir.DefinitionKey) string {
	return filepath.Join(v.dir, string(key)+".dot")
}

// write renders job into a temporary file and renames it over the target
// unless a newer list already claimed it.
func (v *DOTView) write(job ir.RenderJob, barrier int64) error {
	if err := os.MkdirAll(v.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := v.Path(job.Key)
	f, err := os.CreateTemp(v.dir, string(job.Key)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	tmp := f.Name()
	if err := WriteDOT(f, job.Key, job.Graph); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if barrier < v.written[job.Key] {
		return os.Remove(tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	v.written[job.Key] = barrier
	return nil
}

// Errors returns the write failures seen so far.
func (v *DOTView) Errors() []error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]error(nil), v.failed...)
}

// SyncView signals every job synchronously inside Show. It renders nothing
// and exists for deterministic runs.
type SyncView struct {
	// Reverse signals jobs last-to-first.
	Reverse bool

	mu    sync.Mutex
	shown [][]ir.DefinitionKey
}

// Show implements engine.RenderView.
func (v *SyncView) Show(list *engine.JobList) {
	keys := make([]ir.DefinitionKey, len(list.Jobs))
	for i, job := range list.Jobs {
		keys[i] = job.Key
	}
	v.mu.Lock()
	v.shown = append(v.shown, keys)
	v.mu.Unlock()

	for i := range list.Jobs {
		idx := i
		if v.Reverse {
			idx = len(list.Jobs) - 1 - i
		}
		list.Done(list.Jobs[idx].Key)
	}
}

// Shown returns the keys of every list shown so far, including the empty
// reset lists.
func (v *SyncView) Shown() [][]ir.DefinitionKey {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]ir.DefinitionKey, len(v.shown))
	copy(out, v.shown)
	return out
}

// Last returns the keys of the most recent non-empty list, or nil.
func (v *SyncView) Last() []ir.DefinitionKey {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := len(v.shown) - 1; i >= 0; i-- {
		if len(v.shown[i]) > 0 {
			return v.shown[i]
		}
	}
	return nil
}
