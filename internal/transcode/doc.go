// Package transcode re-encodes a source video to planned target dimensions
// with ffmpeg.
//
// The invoker picks codecs per container, builds the scale filter chain for
// the configured fit mode, and streams ffmpeg's machine-readable progress to
// an optional callback. A failed or timed out run never leaves a partial
// output file behind.
package transcode
