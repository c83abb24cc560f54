package captions

// State is a caption pipeline state.
type State int

const (
	StateNotRequested State = iota
	StateAudioExtracted
	StateTranscribed
	StateSegmentsBuilt
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotRequested:
		return "not_requested"
	case StateAudioExtracted:
		return "audio_extracted"
	case StateTranscribed:
		return "transcribed"
	case StateSegmentsBuilt:
		return "segments_built"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Status summarises how a caption run ended.
type Status string

const (
	StatusNotRequested        Status = "not_requested"
	StatusGenerated           Status = "generated"
	StatusNoAudio             Status = "no_audio"
	StatusUnavailable         Status = "unavailable"
	StatusNoSpeech            Status = "no_speech"
	StatusExtractionFailed    Status = "extraction_failed"
	StatusTranscriptionFailed Status = "transcription_failed"
	StatusWriteFailed         Status = "write_failed"
)

// Notes attached to outcomes.
const (
	NoteGenerated   = "Captions generated"
	NoteNoAudio     = "No audio detected"
	NoteUnavailable = "Captions not available. Transcriber not loaded."
	NoteNoSpeech    = "No speech detected"
)

// Produced reports whether the status comes with a track file.
func (s Status) Produced() bool {
	return s == StatusGenerated
}
