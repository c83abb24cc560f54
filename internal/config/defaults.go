package config

// Fit modes for the transcode stage.
const (
	FitStretch = "stretch"
	FitCrop    = "crop"
	FitPad     = "pad"
)

// Transcriber backends.
const (
	TranscriberWhisperX = "whisperx"
	TranscriberWhisper  = "whisper"
	TranscriberNone     = "none"
)

const (
	defaultConfigPath                  = "~/.config/reframe/config.toml"
	defaultDataDir                     = "~/.local/share/reframe"
	defaultBind                        = "127.0.0.1:7488"
	defaultMaxUploadMB                 = 2048
	defaultWorkers                     = 2
	defaultPollInterval                = 2
	defaultErrorRetryInterval          = 10
	defaultFFmpegBinary                = "ffmpeg"
	defaultFFprobeBinary               = "ffprobe"
	defaultX264Preset                  = "medium"
	defaultCRF                         = 23
	defaultTranscodeTimeoutSeconds     = 3600
	defaultMinFreeGiB                  = 1
	defaultCaptionLanguage             = "en"
	defaultWhisperXModel               = "large-v3-turbo"
	defaultWhisperXVADMethod           = "silero"
	defaultWhisperModel                = "base"
	defaultFallbackSegmentSeconds      = 30
	defaultExtractionTimeoutSeconds    = 600
	defaultTranscriptionTimeoutSeconds = 3600
	defaultNotificationTimeout         = 10
	defaultLogFormat                   = "console"
	defaultLogLevel                    = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Server: Server{
			Bind:        defaultBind,
			MaxUploadMB: defaultMaxUploadMB,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Transcode: Transcode{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			FitMode:        FitStretch,
			X264Preset:     defaultX264Preset,
			CRF:            defaultCRF,
			TimeoutSeconds: defaultTranscodeTimeoutSeconds,
			MinFreeGiB:     defaultMinFreeGiB,
		},
		Captions: Captions{
			Enabled:                     true,
			Transcriber:                 TranscriberWhisperX,
			Language:                    defaultCaptionLanguage,
			WhisperXModel:               defaultWhisperXModel,
			WhisperXVADMethod:           defaultWhisperXVADMethod,
			WhisperModel:                defaultWhisperModel,
			FallbackSegmentSeconds:      defaultFallbackSegmentSeconds,
			ExtractionTimeoutSeconds:    defaultExtractionTimeoutSeconds,
			TranscriptionTimeoutSeconds: defaultTranscriptionTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotificationTimeout,
			OnSuccess:      true,
			OnFailure:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
