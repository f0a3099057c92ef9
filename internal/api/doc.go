// Package api defines wire-format types and converters for the daemon's HTTP
// job API and the CLI's JSON output. It translates store models into
// transport-friendly DTOs so consumers do not couple to internal types.
//
// # Key Types
//
// Job: transport representation of a generation job, including the
// partial-render warning and the published video id.
//
// Script: summary of a stored script (slide count, not slide bodies).
//
// Health: daemon running state, worker diagnostics and job counts.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Job statuses are exposed as the lowercase
// strings stored in the database. Timestamps use RFC3339 with milliseconds.
package api
