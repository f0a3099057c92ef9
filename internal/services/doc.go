// Package services defines shared utilities consumed by the pipeline stages
// and the external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, script IDs, stage names, and
//     correlation identifiers for logging.
//   - Error kind markers plus the Wrap helper so a failed job records a
//     consistent "Kind: detail" message.
//   - The Executor abstraction that makes external command invocation testable.
package services
