// Package api defines wire-format types and converters for the HTTP API.
// It translates internal queue models into transport-friendly DTOs that the
// web UI and the CLI can render without coupling to internal types.
//
// # Key Types
//
// Job: transport representation of a queued transform with progress, target
// geometry, and caption outcome.
//
// TransformRequest: the submission payload. Validate enforces the bounds the
// UI exposes (custom ratio terms 1..100, percentages 10..100 in steps of 5)
// and converts the request into a queue.Spec.
//
// DaemonStatus / WorkflowStatus: aggregated runtime information.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the submission payload. Timestamps
// use RFC3339 with milliseconds.
package api
