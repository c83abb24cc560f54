// Package ffprobe wraps ffprobe JSON output and answers the two questions the
// transform pipeline asks of a source: its display dimensions and whether it
// carries audio.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Prober: resolution source used by the job coordinator and HTTP API
//
// Display dimensions honour rotation metadata, so a phone clip stored as
// 1920x1080 with a 90 degree rotation reports 1080x1920.
package ffprobe
