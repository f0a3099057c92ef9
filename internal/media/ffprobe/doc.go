// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Prober: duration lookups used by the synchronizer
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - Client.Duration: container duration, falling back to the longest stream
package ffprobe
