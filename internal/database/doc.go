// Package database provides SQLite-based storage for rank runs.
//
// This package implements the RankDB, which stores:
//   - One row per ranking run with its parameters and the full report
//   - One row per page and run with both estimates
//
// Design decision: We use SQLite (via modernc.org/sqlite) because the
// database is a single local file and the CGO-free driver allows easy
// cross-compilation. WAL mode lets the history command read while a
// batch is being saved.
package database
