package config

import "captioner/internal/captions"

const (
	defaultConfigPath            = "~/.config/captioner/config.toml"
	defaultWorkDir               = "~/.local/share/captioner/work"
	defaultCacheDir              = "~/.cache/captioner"
	defaultLogDir                = "~/.local/share/captioner/logs"
	defaultFFmpeg                = "ffmpeg"
	defaultFFprobe               = "ffprobe"
	defaultBackend               = BackendWhisperX
	defaultWhisperXModel         = "large-v3"
	defaultOpenAIModel           = "whisper-1"
	defaultOpenAIBaseURL         = "https://api.openai.com/v1"
	defaultVADMethod             = "silero"
	defaultTimeoutSeconds        = 600
	defaultBiasSeconds           = 0.15
	defaultPollIntervalMS        = 33
	defaultExportFormat          = "mp4"
	defaultExportQuality         = 720
	defaultExportBitrateKbps     = 5000
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	maxWordsPerCaption           = 50
	maxPlaybackBiasSeconds       = 2.0
	minPlaybackPollIntervalMS    = 5
	maxPlaybackPollIntervalMS    = 1000
	defaultTranscriptionLanguage = ""
)

// Transcription backend identifiers.
const (
	BackendWhisperX = "whisperx"
	BackendOpenAI   = "openai"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpeg,
			FFprobe: defaultFFprobe,
		},
		Transcription: Transcription{
			Backend:        defaultBackend,
			Language:       defaultTranscriptionLanguage,
			VADMethod:      defaultVADMethod,
			TimeoutSeconds: defaultTimeoutSeconds,
			CacheEnabled:   true,
		},
		Segmentation: Segmentation{
			WordsPerCaption: 0,
		},
		Playback: Playback{
			BiasSeconds:    defaultBiasSeconds,
			PollIntervalMS: defaultPollIntervalMS,
		},
		Style: captions.DefaultStyle(),
		Export: Export{
			Format:      defaultExportFormat,
			Quality:     defaultExportQuality,
			BitrateKbps: defaultExportBitrateKbps,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
