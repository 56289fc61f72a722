package engine

import (
	"sync"
	"time"

	"github.com/roach88/automata/internal/ir"
)

// Barrier waits for a known number of render completions.
//
// It fires its callback exactly once, when the received count reaches the
// expected count, and ignores every signal after that. An expected count of
// zero fires on Arm. Barrier is owned by the loop and is not goroutine safe.
type Barrier struct {
	id       int64
	expected int
	received int
	fired    bool

	watch  stopwatch
	onDone func(elapsed time.Duration)
}

// NewBarrier creates an unarmed barrier. Elapsed time is measured from now.
func NewBarrier(id int64, expected int, now func() time.Time, onDone func(time.Duration)) *Barrier {
	return &Barrier{
		id:       id,
		expected: expected,
		watch:    startStopwatch(now),
		onDone:   onDone,
	}
}

// ID returns the barrier id carried by its job list.
func (b *Barrier) ID() int64 { return b.id }

// Fired reports whether the callback has run.
func (b *Barrier) Fired() bool { return b.fired }

// Arm resolves the barrier immediately if nothing is expected.
func (b *Barrier) Arm() bool {
	if b.expected == 0 {
		return b.fire()
	}
	return false
}

// Signal counts one completion and reports whether this signal fired the
// barrier.
func (b *Barrier) Signal() bool {
	if b.fired {
		return false
	}
	b.received++
	if b.received == b.expected {
		return b.fire()
	}
	return false
}

func (b *Barrier) fire() bool {
	if b.fired {
		return false
	}
	b.fired = true
	if b.onDone != nil {
		b.onDone(b.watch.Elapsed())
	}
	return true
}

// JobList is what a RenderView receives: the jobs to render plus a way to
// report each one finished.
//
// Done may be called from any goroutine and in any order. Repeated calls for
// the same key count once.
type JobList struct {
	Jobs []ir.RenderJob

	barrier int64
	signal  func(barrier int64, key ir.DefinitionKey)

	mu   sync.Mutex
	done map[ir.DefinitionKey]bool
}

// emptyJobList is published first so views drop the previous batch.
func emptyJobList() *JobList {
	return &JobList{Jobs: []ir.RenderJob{}}
}

func newJobList(jobs []ir.RenderJob, barrier int64, signal func(int64, ir.DefinitionKey)) *JobList {
	return &JobList{
		Jobs:    jobs,
		barrier: barrier,
		signal:  signal,
		done:    make(map[ir.DefinitionKey]bool, len(jobs)),
	}
}

// Barrier returns the id of the barrier this list reports to; 0 for the
// empty reset list.
func (l *JobList) Barrier() int64 {
	return l.barrier
}

// Done reports that the job for key has finished rendering.
func (l *JobList) Done(key ir.DefinitionKey) {
	if l.signal == nil {
		return
	}
	l.mu.Lock()
	if l.done[key] {
		l.mu.Unlock()
		return
	}
	l.done[key] = true
	l.mu.Unlock()

	l.signal(l.barrier, key)
}
