// Package batch runs many transforms described by a YAML manifest.
//
// A manifest names an output directory, shared defaults, and one entry per
// source. Entries are validated up front with the same bounds the HTTP API
// enforces, then run concurrently through a job runner with a fixed
// concurrency limit. One failing entry never stops the others.
package batch
