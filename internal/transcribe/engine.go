package transcribe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"captioner/internal/captions"
	"captioner/internal/logging"
	"captioner/internal/media/audio"
	"captioner/internal/progress"
	"captioner/internal/services"
)

// Engine-local progress spans. The pipeline maps the whole engine range into
// its own transcription span.
var (
	loadSpan  = progress.Span{Lo: 0, Hi: 85}
	inferSpan = progress.Span{Lo: 85, Hi: 100}
)

// Engine owns one lazily loaded model and runs at most one job at a time.
type Engine struct {
	loader Loader
	cache  Cache
	logger *slog.Logger

	mu       sync.Mutex
	model    Model
	inflight *loadCall

	busy atomic.Bool
}

type loadCall struct {
	done  chan struct{}
	model Model
	err   error
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache enables the transcript cache.
func WithCache(cache Cache) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logging.NewComponentLogger(logger, "transcribe") }
}

// NewEngine creates an engine around loader. Nothing is loaded until the
// first Preload or Transcribe call.
func NewEngine(loader Loader, opts ...Option) *Engine {
	e := &Engine{loader: loader, logger: logging.NewComponentLogger(nil, "transcribe")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Loaded reports whether the model is ready.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model != nil
}

// Busy reports whether a transcription is running.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// Preload loads the model without transcribing. Concurrent callers share the
// same load.
func (e *Engine) Preload(ctx context.Context, report progress.Func) error {
	_, err := e.ensureModel(ctx, report)
	return err
}

// ensureModel returns the loaded model, joining an in-flight load when one
// exists. A failed load is forgotten so the next call retries.
func (e *Engine) ensureModel(ctx context.Context, report progress.Func) (Model, error) {
	e.mu.Lock()
	if e.model != nil {
		model := e.model
		e.mu.Unlock()
		report.Emit(progress.PhaseLoading, 100)
		return model, nil
	}
	call := e.inflight
	leader := call == nil
	if leader {
		call = &loadCall{done: make(chan struct{})}
		e.inflight = call
	}
	e.mu.Unlock()

	if leader {
		started := time.Now()
		e.logger.Info("loading speech model")
		call.model, call.err = e.loader.Load(ctx, report)
		if call.err == nil && call.model == nil {
			call.err = errors.New("loader returned no model")
		}
		e.mu.Lock()
		if call.err == nil {
			e.model = call.model
		}
		e.inflight = nil
		e.mu.Unlock()
		close(call.done)
		if call.err != nil {
			logging.WarnWithContext(e.logger, "speech model load failed", "model_load_failed",
				logging.Error(call.err),
				logging.String(logging.FieldErrorHint, "check network access and backend configuration"),
				logging.String(logging.FieldImpact, "transcription unavailable until the next attempt"),
			)
		} else {
			e.logger.Info("speech model ready",
				logging.String("model", call.model.Name()),
				logging.Duration("load_duration", time.Since(started)),
			)
		}
	} else {
		select {
		case <-call.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if call.err != nil {
		return nil, services.Wrap(services.ErrModelLoad, "loading", "load model", "Speech model could not be loaded", call.err)
	}
	report.Emit(progress.PhaseLoading, 100)
	return call.model, nil
}

// Transcribe runs the model over pcm. A call made while another is running
// fails immediately with services.ErrBusy and does not affect the running job.
func (e *Engine) Transcribe(ctx context.Context, pcm audio.PCM, language string, report progress.Func) (Result, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return Result{}, services.Wrap(services.ErrBusy, "transcribing", "start", "A transcription is already running", nil)
	}
	defer e.busy.Store(false)

	if pcm.SampleRate != audio.ModelSampleRate {
		return Result{}, services.Wrap(services.ErrValidation, "transcribing", "check input",
			"audio must be resampled to the model rate", nil)
	}

	model, err := e.ensureModel(ctx, loadSpan.Wrap(report))
	if err != nil {
		return Result{}, err
	}
	logger := logging.WithContext(ctx, e.logger).With(logging.String("model", model.Name()))

	key := ""
	if e.cache != nil {
		key = CacheKey(pcm, model.Name(), language, GranularityWord)
		if cached, ok, err := e.cache.Lookup(ctx, key); err != nil {
			logging.WarnWithContext(logger, "transcript cache lookup failed", "transcript_cache_lookup_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "running inference instead"),
			)
		} else if ok {
			logger.Info("transcript cache hit", logging.Args(logging.DecisionAttrs("transcript_cache", "hit", "audio fingerprint matched")...)...)
			cached.Cached = true
			report.Emit(progress.PhaseTranscribing, 100)
			return cached, nil
		}
	}

	started := time.Now()
	inferReport := inferSpan.Wrap(report)
	result, err := e.run(ctx, model, pcm, language, inferReport, logger)
	if err != nil {
		return Result{}, err
	}
	logger.Info("transcription complete",
		logging.Int("token_count", len(result.Tokens)),
		logging.Bool("degraded", result.Degraded),
		logging.Float64("audio_seconds", pcm.Seconds()),
		logging.Duration("transcribe_duration", time.Since(started)),
	)

	if e.cache != nil && key != "" {
		if err := e.cache.Store(ctx, key, result); err != nil {
			logging.WarnWithContext(logger, "transcript cache store failed", "transcript_cache_store_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "the next run will transcribe again"),
			)
		}
	}
	report.Emit(progress.PhaseTranscribing, 100)
	return result, nil
}

// run asks for word timing first and falls back once to segment timing.
func (e *Engine) run(ctx context.Context, model Model, pcm audio.PCM, language string, report progress.Func, logger *slog.Logger) (Result, error) {
	out, err := model.Transcribe(ctx, pcm, Options{Language: language, Granularity: GranularityWord}, report)
	if err == nil && len(out.Words) > 0 {
		return Result{
			FullText: textOrJoined(out.Text, out.Words),
			Tokens:   out.Words,
			Segments: out.Segments,
			Language: out.Language,
			Model:    model.Name(),
		}, nil
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	reason := "no word timestamps returned"
	if err != nil {
		reason = err.Error()
	}
	segments := out.Segments
	if err != nil || len(segments) == 0 {
		if err == nil && len(segments) == 0 && out.Text == "" {
			// Silent audio: nothing to fall back to.
			return Result{Model: model.Name(), Language: out.Language}, nil
		}
		logging.WarnWithContext(logger, "word timestamps unavailable; retrying with segment timestamps", "word_timestamps_fallback",
			logging.String("reason", reason),
			logging.Bool("unsupported", errors.Is(err, ErrGranularityUnsupported)),
			logging.String(logging.FieldImpact, "caption timing will be approximate"),
		)
		out, err = model.Transcribe(ctx, pcm, Options{Language: language, Granularity: GranularitySegment}, report)
		if err != nil {
			return Result{}, services.Wrap(services.ErrTranscription, "transcribing", "segment fallback", "Transcription failed", err)
		}
		segments = out.Segments
	} else {
		logging.WarnWithContext(logger, "word timestamps missing; spreading segment timing", "word_timestamps_fallback",
			logging.String("reason", reason),
			logging.String(logging.FieldImpact, "caption timing will be approximate"),
		)
	}

	tokens := SpreadSegments(segments)
	return Result{
		FullText: textOrJoined(out.Text, tokens),
		Tokens:   tokens,
		Segments: segments,
		Language: out.Language,
		Model:    model.Name(),
		Degraded: true,
	}, nil
}

// Close releases the model when it holds resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	model := e.model
	e.model = nil
	e.mu.Unlock()
	if closer, ok := model.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func textOrJoined(text string, tokens []captions.WordToken) string {
	if text != "" {
		return text
	}
	return joinTokens(tokens)
}
