// Package preflight provides readiness checks for the filesystem paths,
// database and external tools slidereel depends on.
//
// The daemon runs RunAll at startup and logs every failed check; the CLI
// "slidereel deps" command renders the same results as a table.
package preflight
