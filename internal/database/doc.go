// Package database provides SQLite-based storage for gather runs.
//
// RunDB keeps every run's merged artifacts so that later runs of the same
// URL can be compared with earlier ones.
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode provides good concurrent read performance
package database
