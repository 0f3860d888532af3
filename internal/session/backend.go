package session

import (
	"fmt"
	"log/slog"
	"time"

	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/services"
	"captioner/internal/transcribe"
	"captioner/internal/transcribe/cache"
	"captioner/internal/transcribe/openai"
	"captioner/internal/transcribe/whisperx"
)

// NewLoader returns the model loader for the configured backend.
func NewLoader(cfg *config.Config, logger *slog.Logger) (transcribe.Loader, error) {
	t := cfg.Transcription
	switch t.Backend {
	case config.BackendWhisperX:
		return whisperx.NewLoader(whisperx.Config{
			Model:       t.Model,
			CUDAEnabled: t.CUDAEnabled,
			VADMethod:   t.VADMethod,
			HFToken:     t.HFToken,
			WorkDir:     cfg.Paths.WorkDir,
		}, logger), nil
	case config.BackendOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:  t.APIKey,
			BaseURL: t.BaseURL,
			Model:   t.Model,
			Timeout: time.Duration(t.TimeoutSeconds) * time.Second,
		}, logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "session", "select backend", fmt.Sprintf("unknown transcription backend %q", t.Backend), nil)
	}
}

// NewEngine builds a transcription engine for cfg. The returned cache is nil
// when caching is disabled; callers close it after the engine.
func NewEngine(cfg *config.Config, logger *slog.Logger) (*transcribe.Engine, *cache.Store, error) {
	loader, err := NewLoader(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	opts := []transcribe.Option{transcribe.WithLogger(logger)}

	var store *cache.Store
	if cfg.Transcription.CacheEnabled {
		store, err = cache.Open(cfg.TranscriptCachePath())
		if err != nil {
			logging.WarnWithContext(logging.NewComponentLogger(logger, "session"), "transcript cache unavailable", "cache_open_failed",
				logging.Error(err),
				logging.String("path", cfg.TranscriptCachePath()),
				logging.String(logging.FieldErrorHint, "check cache_dir permissions or run `captioner cache clear`"),
				logging.String(logging.FieldImpact, "every transcription runs inference"),
			)
			store = nil
		} else {
			opts = append(opts, transcribe.WithCache(store))
		}
	}
	return transcribe.NewEngine(loader, opts...), store, nil
}
