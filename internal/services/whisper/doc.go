// Package whisper runs the openai-whisper CLI as a lighter transcription
// backend and returns the same segment shape as the whisperx package.
package whisper
