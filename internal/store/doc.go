// Package store provides SQLite-backed history of build cycles.
//
// Each finished cycle is one row in builds, with its built definitions,
// per-key outcomes and the diagnostics transcript in child tables. The
// latest rotated build can be loaded back to seed the coordinator so a new
// process reuses definitions compiled by an earlier one.
//
// # Ordering
//
//   - All queries include an explicit ORDER BY (generation, position,
//     line_no) so results are identical across runs.
//   - Graphs are stored as JSON produced by encoding/json from ir.Graph;
//     node and edge order is preserved.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Source and definition hashes come from internal/ir/hash.go.
package store
