package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"captioner/internal/logging"
	"captioner/internal/media/ffprobe"
	"captioner/internal/progress"
	"captioner/internal/services"
)

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// CommandRunner runs a command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Extractor decodes audio tracks with ffmpeg.
type Extractor struct {
	ffmpegBinary      string
	ffprobeBinary     string
	preferredLanguage string
	logger            *slog.Logger
	probe             ProbeFunc
	run               CommandRunner
	yield             YieldFunc
}

// NewExtractor creates an extractor using the given binaries.
func NewExtractor(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *Extractor {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Extractor{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		logger:        logging.NewComponentLogger(logger, "audio"),
		probe:         ffprobe.Inspect,
		run:           runStdout,
	}
}

// WithPreferredLanguage biases stream selection toward a language tag.
func (e *Extractor) WithPreferredLanguage(lang string) *Extractor {
	e.preferredLanguage = lang
	return e
}

// WithProbe sets a custom probe function (for testing).
func (e *Extractor) WithProbe(probe ProbeFunc) *Extractor {
	e.probe = probe
	return e
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Extractor) WithCommandRunner(runner CommandRunner) *Extractor {
	e.run = runner
	return e
}

// WithYield sets the cooperative yield hook used while mixing.
func (e *Extractor) WithYield(yield YieldFunc) *Extractor {
	e.yield = yield
	return e
}

// Extract decodes the primary audio track of source and returns it as mono
// PCM at ModelSampleRate. Missing or undecodable audio fails with
// services.ErrDecode.
func (e *Extractor) Extract(ctx context.Context, source string, report progress.Func) (PCM, error) {
	report.Emit(progress.PhaseExtracting, 0)

	probe, err := e.probe(ctx, e.ffprobeBinary, source)
	if err != nil {
		return PCM{}, services.Wrap(services.ErrDecode, "extracting", "probe", "Could not read the media container", err)
	}
	stream, ok := SelectPrimary(probe.AudioStreams(), e.preferredLanguage)
	if !ok {
		return PCM{}, services.Wrap(services.ErrDecode, "extracting", "select stream", "The video has no audio track", nil)
	}
	channels := stream.Channels
	if channels <= 0 {
		channels = 2
	}
	rate := stream.SampleRateHz()
	if rate <= 0 {
		rate = 48000
	}
	e.logger.Info("audio stream selected",
		logging.Int("stream_index", stream.Index),
		logging.String("codec", stream.CodecName),
		logging.Int("channels", channels),
		logging.Int("sample_rate", rate),
		logging.Float64("duration_seconds", probe.DurationSeconds()),
	)
	report.Emit(progress.PhaseExtracting, 10)

	raw, err := e.run(ctx, e.ffmpegBinary, decodeArgs(source, stream.Index, channels, rate)...)
	if err != nil {
		if ctx.Err() != nil {
			return PCM{}, ctx.Err()
		}
		return PCM{}, services.Wrap(services.ErrDecode, "extracting", "decode", "Could not decode the audio track", err)
	}
	interleaved := decodeF32LE(raw)
	if len(interleaved) < channels {
		return PCM{}, services.Wrap(services.ErrDecode, "extracting", "decode", "The audio track is empty", nil)
	}
	report.Emit(progress.PhaseExtracting, 60)

	mono, err := MixToMono(ctx, interleaved, channels, e.yield)
	if err != nil {
		return PCM{}, err
	}
	report.Emit(progress.PhaseExtracting, 85)

	pcm := PCM{Samples: Resample(mono, rate, ModelSampleRate), SampleRate: ModelSampleRate}
	report.Emit(progress.PhaseExtracting, 100)
	e.logger.Debug("audio decoded",
		logging.Int("samples", len(pcm.Samples)),
		logging.Float64("audio_seconds", pcm.Seconds()),
	)
	return pcm, nil
}

func decodeArgs(source string, streamIndex, channels, rate int) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", fmt.Sprintf("0:%d", streamIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(rate),
		"-f", "f32le",
		"-c:a", "pcm_f32le",
		"pipe:1",
	}
}

func runStdout(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg produced no audio samples")
	}
	return stdout.Bytes(), nil
}
