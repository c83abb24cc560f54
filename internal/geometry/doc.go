// Package geometry resolves aspect-ratio specifications and plans output
// dimensions for a transform job.
//
// Everything here is pure: no I/O and no shared state, so every function is
// safe to call from concurrent jobs without synchronization.
//
// Key entry points:
//   - Resolve: turns a preset or custom AspectRatio into a positive W:H pair
//   - Plan: fits a scale envelope to that pair without exceeding the source
//   - AvailableResolutions: labels offered for a given source
//   - DefaultAspectRatio: platform-style defaults for long and short videos
package geometry
