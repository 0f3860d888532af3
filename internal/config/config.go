package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"captioner/internal/captions"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working, cache, and log directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
}

// Tools names the external media binaries.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
	// Drapto names a drapto binary for the AV1 post-pass. Empty runs the
	// encoder in-process through the drapto library.
	Drapto string `toml:"drapto"`
}

// Transcription contains configuration for the speech model backend.
type Transcription struct {
	// Backend selects the model implementation ("whisperx" or "openai").
	Backend  string `toml:"backend"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
	// CUDAEnabled enables GPU acceleration for the whisperx backend.
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
	// APIKey and BaseURL configure the OpenAI-compatible HTTP backend.
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	CacheEnabled   bool   `toml:"cache_enabled"`
}

// Segmentation controls how word tokens are grouped into captions.
type Segmentation struct {
	// WordsPerCaption is the fixed word count; 0 selects automatic segmentation.
	WordsPerCaption int `toml:"words_per_caption"`
}

// Playback contains synchronizer timing.
type Playback struct {
	BiasSeconds    float64 `toml:"bias_seconds"`
	PollIntervalMS int     `toml:"poll_interval_ms"`
}

// Export contains burned-in video export defaults.
type Export struct {
	Format string `toml:"format"`
	// Quality is the target frame height in pixels; 0 keeps the source height.
	Quality     int  `toml:"quality"`
	BitrateKbps int  `toml:"bitrate_kbps"`
	Realtime    bool `toml:"realtime"`
	AV1PostPass bool `toml:"av1_post_pass"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for captioner.
//
// Configuration sections by subsystem:
//   - Paths: working, cache, and log directories
//   - Tools: ffmpeg/ffprobe binaries
//   - Transcription: speech model backend and transcript cache
//   - Segmentation: caption grouping policy
//   - Playback: active-caption bias and clock polling
//   - Style: default caption style
//   - Export: burned-in video export defaults
//   - Logging: log format and level
type Config struct {
	Paths         Paths          `toml:"paths"`
	Tools         Tools          `toml:"tools"`
	Transcription Transcription  `toml:"transcription"`
	Segmentation  Segmentation   `toml:"segmentation"`
	Playback      Playback       `toml:"playback"`
	Style         captions.Style `toml:"style"`
	Export        Export         `toml:"export"`
	Logging       Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("captioner.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working, cache, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.FFmpeg) == "" {
		return defaultFFmpeg
	}
	return c.Tools.FFmpeg
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if c == nil || strings.TrimSpace(c.Tools.FFprobe) == "" {
		return defaultFFprobe
	}
	return c.Tools.FFprobe
}

// TranscriptCachePath returns the sqlite database path for cached transcripts.
func (c *Config) TranscriptCachePath() string {
	return filepath.Join(c.Paths.CacheDir, "transcripts.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
