// Package job coordinates one transform: resolve the aspect ratio, probe and
// plan the target, transcode, then optionally caption.
//
// The coordinator owns the stage order and error tagging only. Probing,
// encoding and captioning are injected collaborators, so the queue worker,
// the CLI and tests all drive the same Run.
package job
