// Package engine implements the incremental compile-build-render cycle.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Every state change happens on one goroutine (Run or RunPending). This
// covers the coordinator's two build generations, the last submitted text
// and the active render barrier. Submit, Edited and JobList.Done only
// enqueue events, so they may be called from any goroutine.
//
// Cycle Flow:
//  1. Submit applies the short-circuit rules (empty or unchanged source) and
//     stamps a new generation from the Clock.
//  2. The build for that generation runs on the next tick. A build whose
//     generation has been superseded is dropped.
//  3. Parser.Compile produces a manifest. The Coordinator rebuilds only the
//     definitions whose text or dependencies changed.
//  4. Operations are evaluated against the new symbol table.
//  5. Render jobs are published to the RenderView in two ticks: an empty job
//     list first, then the real list bound to a Barrier.
//  6. The Barrier counts JobList.Done signals and reports completion once.
//
// Every finished, failed or superseded cycle is reported to the CycleObserver.
//
// The engine is designed for determinism, not throughput. Rendering may run
// in parallel; the loop itself never does.
package engine
