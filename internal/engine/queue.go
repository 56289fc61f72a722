package engine

import (
	"sync"

	"github.com/roach88/automata/internal/ir"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeSubmit asks for a compile of the current source.
	EventTypeSubmit EventType = iota + 1
	// EventTypeBuild runs the deferred build of one generation.
	EventTypeBuild
	// EventTypePublish publishes render jobs on the tick after the reset.
	EventTypePublish
	// EventTypeRenderDone is one job completion signal.
	EventTypeRenderDone
	// EventTypeSeed installs a persisted build as the current generation.
	EventTypeSeed
)

// Event is one unit of work for the loop.
type Event struct {
	Type EventType

	Force      bool   // Submit
	Generation int64  // Build, Publish
	Token      string // Build
	Source     string // Build: source text captured at submit time

	Barrier int64            // Publish, RenderDone
	Key     ir.DefinitionKey // RenderDone

	Seed ir.Build // Seed
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so render signals from any number of jobs can be
// enqueued without blocking the renderer.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Release the slot so the seed build can be collected
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
