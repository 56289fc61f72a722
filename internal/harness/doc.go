// Package harness runs conformance scenarios against the real engine.
//
// # Scenario Format
//
// Scenarios are YAML files. Each step replaces the source buffer, submits it
// and checks what the cycle did:
//
//	name: lamp_edit
//	description: "Editing a dependent reuses its dependency"
//	settings:
//	  fair_abstraction: false
//	steps:
//	  - source: |
//	      process: { Light: transitions: ["off -on-> lit"] }
//	    expect:
//	      rebuilt: [Light]
//	  - source: |
//	      process: { Light: transitions: ["off -on-> lit"] }
//	    expect:
//	      noop: true
//
// # Expectations
//
//   - noop: the step produced no cycle (unchanged or empty source)
//   - status: the cycle status (completed, compile_failed, ...)
//   - rebuilt, reused, failed, skipped: exact key lists in manifest order
//   - render_order: keys in the order they were handed to the view
//   - operations: exact evaluation lines, summary first
//   - log_contains: substrings that must each appear in some diagnostics line
//   - compile_error: substring of the compile error
//
// Omitted expectations are not checked.
//
// # Deterministic Testing
//
// Every scenario runs on a fresh engine with:
//   - A manual clock that never advances, so every timing reads 0.001
//   - Sequential cycle tokens (cycle-1, cycle-2, ...) or scenario.cycle_token
//   - render.SyncView, which signals render completion inside Show
//
// so the same scenario always produces byte-identical step results.
package harness
