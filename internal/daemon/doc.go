// Package daemon coordinates the long-running slidereeld process.
//
// It wires configuration, the job store, the pipeline worker, the janitor
// schedule and the job API into a single lifecycle with flock-based locking
// to prevent multiple instances. Job processing lives in the pipeline package;
// the daemon focuses on startup, shutdown and the thin HTTP surface used to
// submit, inspect and cancel jobs.
package daemon
