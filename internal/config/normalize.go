package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeTranscription()
	c.normalizePlayback()
	c.normalizeExport()
	c.Style = c.Style.Normalize()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpeg
	}
	c.Tools.Drapto = strings.TrimSpace(c.Tools.Drapto)
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobe
	}
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Backend = strings.ToLower(strings.TrimSpace(t.Backend))
	if t.Backend == "" {
		t.Backend = defaultBackend
	}
	t.Model = strings.TrimSpace(t.Model)
	if t.Model == "" {
		switch t.Backend {
		case BackendOpenAI:
			t.Model = defaultOpenAIModel
		default:
			t.Model = defaultWhisperXModel
		}
	}
	t.Language = strings.ToLower(strings.TrimSpace(t.Language))
	if t.Language == "auto" {
		t.Language = ""
	}
	t.VADMethod = strings.ToLower(strings.TrimSpace(t.VADMethod))
	if t.VADMethod == "" {
		t.VADMethod = defaultVADMethod
	}
	t.HFToken = strings.TrimSpace(t.HFToken)
	if t.HFToken == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			t.HFToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			t.HFToken = strings.TrimSpace(value)
		}
	}
	t.APIKey = strings.TrimSpace(t.APIKey)
	if t.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			t.APIKey = strings.TrimSpace(value)
		}
	}
	t.BaseURL = strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	if t.BaseURL == "" {
		t.BaseURL = defaultOpenAIBaseURL
	}
	if t.TimeoutSeconds <= 0 {
		t.TimeoutSeconds = defaultTimeoutSeconds
	}
}

func (c *Config) normalizePlayback() {
	if c.Playback.BiasSeconds < 0 {
		c.Playback.BiasSeconds = 0
	}
	if c.Playback.PollIntervalMS <= 0 {
		c.Playback.PollIntervalMS = defaultPollIntervalMS
	}
}

func (c *Config) normalizeExport() {
	c.Export.Format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Export.Format)), ".")
	if c.Export.Format == "" {
		c.Export.Format = defaultExportFormat
	}
	if c.Export.Quality < 0 {
		c.Export.Quality = 0
	}
	if c.Export.BitrateKbps <= 0 {
		c.Export.BitrateKbps = defaultExportBitrateKbps
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
