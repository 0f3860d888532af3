package session

import (
	"context"
	"log/slog"
	"strings"

	"captioner/internal/captions"
	"captioner/internal/logging"
	"captioner/internal/media/audio"
	"captioner/internal/progress"
	"captioner/internal/services"
	"captioner/internal/transcribe"
)

// Extractor decodes a source video's primary audio track.
type Extractor interface {
	Extract(ctx context.Context, source string, report progress.Func) (audio.PCM, error)
}

// Transcriber turns model-rate PCM into word tokens.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm audio.PCM, language string, report progress.Func) (transcribe.Result, error)
}

// Outcome is what one pipeline run produced.
type Outcome struct {
	Captions []captions.Caption
	Result   transcribe.Result
	Mode     captions.Mode
	// AudioSeconds is the decoded audio length.
	AudioSeconds float64
}

// Pipeline runs extraction, transcription, and segmentation in order.
type Pipeline struct {
	Extractor   Extractor
	Transcriber Transcriber
	Mode        captions.Mode
	Language    string
	Logger      *slog.Logger
}

// Run transcribes source into captions. Progress is reported on one 0-100
// scale: extraction 0-10, transcription 10-90, segmentation 90-100.
func (p Pipeline) Run(ctx context.Context, source string, report progress.Func) (Outcome, error) {
	if p.Extractor == nil || p.Transcriber == nil {
		return Outcome{}, services.Wrap(services.ErrConfiguration, "pipeline", "run", "extractor and transcriber are required", nil)
	}
	report = progress.Monotonic(report)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.Logger, "pipeline"))

	var pcm audio.PCM
	err := runStage(ctx, logger, "extract", func(ctx context.Context) error {
		var err error
		pcm, err = p.Extractor.Extract(ctx, source, progress.ExtractionSpan.Wrap(report))
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	var result transcribe.Result
	err = runStage(ctx, logger, "transcribe", func(ctx context.Context) error {
		var err error
		result, err = p.Transcriber.Transcribe(ctx, pcm, p.Language, progress.TranscriptionSpan.Wrap(report))
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	segReport := progress.SegmentationSpan.Wrap(report)
	var list []captions.Caption
	_ = runStage(ctx, logger, "segment", func(context.Context) error {
		segReport.Emit(progress.PhaseSegmenting, 0)
		list = captions.Segment(result.Tokens, p.Mode)
		segReport.Emit(progress.PhaseSegmenting, 100)
		return nil
	})
	report.Emit(progress.PhaseDone, 100)

	if len(list) == 0 {
		logging.WarnWithContext(logger, "transcription produced no captions", "pipeline_empty",
			logging.Float64("audio_seconds", pcm.Seconds()),
			logging.String(logging.FieldErrorHint, "check that the video has audible speech"),
			logging.String(logging.FieldImpact, "caption track will be empty"),
		)
	}
	if result.Degraded {
		logging.WarnWithContext(logger, "captions timed from segment timestamps", "pipeline_degraded",
			logging.String("model", result.Model),
			logging.String(logging.FieldImpact, "caption timing is approximate"),
		)
	}
	return Outcome{Captions: list, Result: result, Mode: p.Mode, AudioSeconds: pcm.Seconds()}, nil
}

func runStage(ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) error) error {
	ctx = services.WithPhase(ctx, name)
	stageLogger := logger.With(logging.String(logging.FieldPhase, name))
	stageLogger.Debug("stage started", logging.String(logging.FieldEventType, "stage_start"))
	if err := fn(ctx); err != nil {
		stageLogger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("error_message", strings.TrimSpace(services.UserMessage(err))),
			logging.Error(err),
		)
		return err
	}
	stageLogger.Debug("stage completed", logging.String(logging.FieldEventType, "stage_complete"))
	return nil
}
