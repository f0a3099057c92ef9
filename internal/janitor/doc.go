// Package janitor reconciles the job records, the published videos table and
// the artifact store.
//
// A pass runs four phases in order:
//  1. delete failed and cancelled job records
//  2. delete generated published videos whose file is gone
//  3. remove orphaned working directories and stray files
//  4. fail processing jobs older than the stale ceiling
//
// Working directories owned by a queued or processing job are never touched.
// A job timed out in phase 4 has its directory reclaimed on the next pass.
// Passes are serialized across processes with a file lock.
package janitor
