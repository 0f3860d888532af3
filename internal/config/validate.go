package config

import (
	"errors"
	"fmt"
)

var supportedExportFormats = map[string]struct{}{
	"webm": {}, "mp4": {}, "mov": {}, "avi": {}, "mkv": {}, "gif": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSegmentation(); err != nil {
		return err
	}
	if err := c.validatePlayback(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.Style.Validate(); err != nil {
		return fmt.Errorf("style: %w", err)
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Backend {
	case BackendWhisperX:
		switch c.Transcription.VADMethod {
		case "silero", "pyannote":
		default:
			return fmt.Errorf("transcription.vad_method must be silero or pyannote, got %q", c.Transcription.VADMethod)
		}
		return nil
	case BackendOpenAI:
		if c.Transcription.APIKey == "" {
			path, err := DefaultConfigPath()
			if err != nil {
				path = defaultConfigPath
			}
			return fmt.Errorf("transcription.api_key is required for the openai backend. Set OPENAI_API_KEY or edit %s (create with 'captioner config init')", path)
		}
		return nil
	default:
		return fmt.Errorf("transcription.backend: unsupported value %q", c.Transcription.Backend)
	}
}

func (c *Config) validateSegmentation() error {
	if c.Segmentation.WordsPerCaption < 0 {
		return errors.New("segmentation.words_per_caption must be >= 0 (0 selects automatic)")
	}
	if c.Segmentation.WordsPerCaption > maxWordsPerCaption {
		return fmt.Errorf("segmentation.words_per_caption must be <= %d", maxWordsPerCaption)
	}
	return nil
}

func (c *Config) validatePlayback() error {
	if c.Playback.BiasSeconds > maxPlaybackBiasSeconds {
		return fmt.Errorf("playback.bias_seconds must be <= %.1f", maxPlaybackBiasSeconds)
	}
	if c.Playback.PollIntervalMS < minPlaybackPollIntervalMS || c.Playback.PollIntervalMS > maxPlaybackPollIntervalMS {
		return fmt.Errorf("playback.poll_interval_ms must be between %d and %d", minPlaybackPollIntervalMS, maxPlaybackPollIntervalMS)
	}
	return nil
}

func (c *Config) validateExport() error {
	if _, ok := supportedExportFormats[c.Export.Format]; !ok {
		return fmt.Errorf("export.format: unsupported value %q (webm, mp4, mov, avi, mkv, gif)", c.Export.Format)
	}
	if c.Export.Quality != 0 && (c.Export.Quality < 144 || c.Export.Quality > 4320) {
		return errors.New("export.quality must be 0 (source) or a frame height between 144 and 4320")
	}
	return nil
}
