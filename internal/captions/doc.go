// Package captions turns a video's audio into a sidecar SRT subtitle track.
//
// Pipeline.Run drives a small state machine:
//
//	NotRequested -> AudioExtracted -> Transcribed -> SegmentsBuilt -> Done
//
// with Failed reachable from extraction, transcription, or writing. Every exit
// reports a Status and a human-readable note; caption problems never surface
// as job failures. The transcriber lives behind a Handle that loads it once,
// reports why it is unavailable when loading fails, and is closed on shutdown.
//
// Extracted audio is written to a per-run temporary directory that is removed
// on every exit path.
package captions
