// Package engine is a reference engine for dry runs.
//
// It accepts the same command stream a live engine does and keeps the
// bookkeeping a live engine performs before any numerics:
//
//   - tags are unique per category and recorders are numbered by the engine
//   - references must name entities that already exist
//   - node coordinates and masses match the model dimensions
//   - analyze advances a pseudo-time: dt per step for transient analyses,
//     the load increment per step for static ones
//
// Rejections carry engine-style diagnostics, so a transcript that passes
// here fails on a live engine only for numerical reasons. The Engine also
// records a reference Graph for inspection.
//
// A Batch checks many models at once, one engine per model, on a bounded
// worker pool.
package engine
