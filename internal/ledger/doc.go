// Package ledger persists per-task conversion outcomes in SQLite and keeps
// the flat-file import/export boundary around it.
//
// The Store manages the durable progress table: one row per task id with a
// nullable output locator and a nullable error message. Rows are seeded
// from the input task list CSV, merged in checkpoint batches during a run,
// and exported back to CSV so downstream tooling never has to read the
// database. A stored row is never trusted as success on its own; the resume
// pass re-validates the referenced artifact every run.
//
// Only the orchestrating process mutates the store, so it needs no
// cross-process locking beyond the run lock the CLI already holds.
package ledger
