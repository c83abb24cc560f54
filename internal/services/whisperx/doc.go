// Package whisperx runs WhisperX through uvx and reads its JSON transcript.
//
// The service only knows how to invoke the CLI and parse segments; audio
// extraction and caption timing belong to the captions package. Options
// (model, CUDA, VAD method, Hugging Face token) arrive via Config.
package whisperx
