package whisperx

// Config selects the WhisperX model and where it runs.
type Config struct {
	// Model defaults to DefaultModel.
	Model       string
	CUDAEnabled bool
	// VADMethod is VADMethodSilero (default) or VADMethodPyannote. Pyannote
	// needs HFToken.
	VADMethod string
	HFToken   string
}

const (
	DefaultModel      = "large-v3-turbo"
	UVXCommand        = "uvx"
	VADMethodSilero   = "silero"
	VADMethodPyannote = "pyannote"
)

const (
	pypiIndex  = "https://pypi.org/simple"
	torchIndex = "https://download.pytorch.org/whl/cu128"
)

// Sentence-level segments and a short chunk size keep caption cues readable
// on portrait video.
var decodeFlags = []string{
	"--output_format", "json",
	"--segment_resolution", "sentence",
	"--batch_size", "4",
	"--chunk_size", "15",
	"--vad_onset", "0.08",
	"--vad_offset", "0.07",
	"--beam_size", "5",
	"--temperature", "0.0",
}

func (c Config) model() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

func (c Config) vadMethod() string {
	if c.VADMethod != "" {
		return c.VADMethod
	}
	return VADMethodSilero
}

// indexArgs point uvx at CUDA torch wheels when the GPU is enabled.
func (c Config) indexArgs() []string {
	if c.CUDAEnabled {
		return []string{"--index-url", torchIndex, "--extra-index-url", pypiIndex}
	}
	return []string{"--index-url", pypiIndex}
}

func (c Config) deviceArgs() []string {
	if c.CUDAEnabled {
		return []string{"--device", "cuda"}
	}
	return []string{"--device", "cpu", "--compute_type", "float32"}
}
