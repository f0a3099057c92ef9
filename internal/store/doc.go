// Package store persists video scripts, generation jobs, and published video
// records.
//
// The Store wraps database/sql over either a local SQLite file
// (modernc.org/sqlite) or the hosted Postgres database (lib/pq). Queries are
// written once with ? placeholders and rebound for Postgres. Job status
// transitions into a terminal state are write-once: the UPDATE is guarded by
// the non-terminal statuses so a second transition affects no rows and
// surfaces ErrTerminal.
//
// Schema changes bump schemaVersion in schema.go alongside both schema files.
package store
