package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fogleman/gg"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"captioner/internal/captions"
	"captioner/internal/logging"
	"captioner/internal/media/ffprobe"
	"captioner/internal/preflight"
	"captioner/internal/progress"
	"captioner/internal/render"
	"captioner/internal/services"
	"captioner/internal/services/drapto"
)

const (
	defaultEstimateKbps = 8000
	minFreeBytes        = 16 << 20
)

// Job describes one export.
type Job struct {
	Source string
	Output string
	Format Format
	// Quality is the target frame height; 0 keeps the source height.
	Quality     int
	BitrateKbps int
	// Realtime paces frames at playback speed.
	Realtime bool
	// AV1PostPass re-encodes mkv exports through drapto.
	AV1PostPass bool
	Captions    []captions.Caption
	Style       captions.Style
	Bias        float64
}

// Result reports what an export produced.
type Result struct {
	JobID  string
	Output string
	Plan   Plan
	Width  int
	Height int
	FPS    float64
	Frames int
	// Seconds is the media time covered by the written frames.
	Seconds float64
	// Stopped is set when ctx was cancelled; Output then holds the
	// finalized partial file.
	Stopped  bool
	Warnings []string
}

// MediaProbe inspects the source media.
type MediaProbe func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the renderer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logging.NewComponentLogger(logger, "export")
	}
}

// WithMediaProbe replaces ffprobe.
func WithMediaProbe(probe MediaProbe) Option {
	return func(r *Renderer) {
		if probe != nil {
			r.probe = probe
		}
	}
}

// WithCapabilities replaces the ffmpeg encoder probe.
func WithCapabilities(probe ProbeFunc) Option {
	return func(r *Renderer) {
		if probe != nil {
			r.caps = probe
		}
	}
}

// WithFrameSource replaces the ffmpeg decoder.
func WithFrameSource(open SourceOpener) Option {
	return func(r *Renderer) {
		if open != nil {
			r.openSource = open
		}
	}
}

// WithFrameSink replaces the ffmpeg encoder.
func WithFrameSink(open SinkOpener) Option {
	return func(r *Renderer) {
		if open != nil {
			r.openSink = open
		}
	}
}

// WithFreeSpace replaces the free-space lookup.
func WithFreeSpace(fn func(path string) (uint64, error)) Option {
	return func(r *Renderer) {
		if fn != nil {
			r.freeBytes = fn
		}
	}
}

// WithPostPass sets the AV1 encoder used for mkv post-passes.
func WithPostPass(client drapto.Client) Option {
	return func(r *Renderer) {
		r.postPass = client
	}
}

// WithSleep replaces the realtime pacing wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Renderer) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// Renderer burns captions into video files. At most one export runs at a
// time per Renderer.
type Renderer struct {
	ffmpeg     string
	ffprobe    string
	logger     *slog.Logger
	probe      MediaProbe
	caps       ProbeFunc
	openSource SourceOpener
	openSink   SinkOpener
	freeBytes  func(string) (uint64, error)
	postPass   drapto.Client
	sleep      func(context.Context, time.Duration) error
	now        func() time.Time
	busy       atomic.Bool
}

// NewRenderer constructs a Renderer using the given ffmpeg and ffprobe binaries.
func NewRenderer(ffmpegBinary, ffprobeBinary string, opts ...Option) *Renderer {
	r := &Renderer{
		ffmpeg:     ffmpegBinary,
		ffprobe:    ffprobeBinary,
		logger:     logging.NewComponentLogger(nil, "export"),
		probe:      ffprobe.Inspect,
		caps:       ProbeCapabilities,
		openSource: OpenFFmpegSource,
		openSink:   OpenFFmpegSink,
		freeBytes:  preflight.FreeBytes,
		sleep:      sleepContext,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Busy reports whether an export is in flight.
func (r *Renderer) Busy() bool {
	return r.busy.Load()
}

// Export renders job. Cancelling ctx stops the export and finalizes the
// partial file; that is reported through Result.Stopped, not an error. Any
// frame failure aborts the job and removes the output.
func (r *Renderer) Export(ctx context.Context, job Job, report progress.Func) (Result, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return Result{}, services.Wrap(services.ErrBusy, "export", "start", "an export is already running", nil)
	}
	defer r.busy.Store(false)

	if strings.TrimSpace(job.Source) == "" || strings.TrimSpace(job.Output) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "export", "start", "source and output paths are required", nil)
	}
	style := job.Style.Normalize()
	if err := style.Validate(); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "export", "validate style", "", err)
	}

	jobID := uuid.NewString()
	ctx = services.WithJobID(ctx, jobID)
	ctx = services.WithPhase(ctx, string(progress.PhaseExporting))
	logger := logging.WithContext(ctx, r.logger)

	info, err := r.probe(ctx, r.ffprobe, job.Source)
	if err != nil {
		return Result{}, services.Wrap(services.ErrDecode, "export", "probe source", job.Source, err)
	}
	video, ok := info.VideoStream()
	if !ok {
		return Result{}, services.Wrap(services.ErrDecode, "export", "probe source", "no video stream", nil)
	}
	duration := info.DurationSeconds()
	if duration <= 0 {
		return Result{}, services.Wrap(services.ErrDecode, "export", "probe source", "unknown duration", nil)
	}
	width, height := TargetSize(video.Width, video.Height, job.Quality)
	if width == 0 {
		return Result{}, services.Wrap(services.ErrDecode, "export", "probe source", "unknown frame size", nil)
	}

	caps, err := r.caps(ctx, r.ffmpeg)
	if err != nil {
		return Result{}, err
	}
	plan, err := Resolve(job.Format, caps)
	if err != nil {
		logging.ErrorWithContext(logger, "no usable video encoder", "export_encoder_unsupported",
			logging.String("requested", string(job.Format)),
			logging.String(logging.FieldErrorHint, "install an ffmpeg build with libx264 or libvpx"),
		)
		return Result{}, err
	}

	res := Result{JobID: jobID, Plan: plan, Width: width, Height: height, FPS: frameRate(video.FrameRate(), plan.Format)}
	output := job.Output
	if plan.Fallback {
		output = withExtension(output, plan)
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s is not supported by this ffmpeg; exported %s instead", job.Format, plan.Format))
		logging.WarnWithContext(logger, "export container fallback", "export_encoder_fallback",
			logging.String("requested", string(job.Format)),
			logging.String("format", string(plan.Format)),
			logging.String("output", output),
			logging.String(logging.FieldErrorHint, "install an ffmpeg build with the missing encoder"),
			logging.String(logging.FieldImpact, "output uses a different container than requested"),
		)
	} else if filepath.Ext(output) == "" {
		output += plan.Extension()
	}

	audioSource := job.Source
	if !info.HasAudio() {
		audioSource = ""
	} else if plan.AudioEncoder == "" {
		audioSource = ""
		res.Warnings = append(res.Warnings, "no audio encoder for "+string(plan.Format)+"; export is silent")
		logging.WarnWithContext(logger, "exporting without audio", "export_audio_unsupported",
			logging.String("format", string(plan.Format)),
			logging.String(logging.FieldImpact, "exported video is silent"),
		)
	}

	postPass := job.AV1PostPass && plan.Format == FormatMKV && r.postPass != nil
	if job.AV1PostPass && !postPass {
		res.Warnings = append(res.Warnings, "AV1 post-pass only applies to mkv exports; skipped")
	}
	if postPass {
		output = withExtension(output, plan)
	}

	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output directory: %w", err)
	}
	if err := r.checkFreeSpace(dir, duration, job.BitrateKbps, postPass); err != nil {
		return Result{}, err
	}

	lock := flock.New(output + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "export", "lock output", output, err)
	}
	if !locked {
		return Result{}, services.Wrap(services.ErrBusy, "export", "lock output", "another process is writing "+output, nil)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	encodeTarget := output
	renderSpan := progress.Span{Lo: 0, Hi: 100}
	if postPass {
		tmp, err := os.MkdirTemp(dir, ".captioner-render-")
		if err != nil {
			return Result{}, fmt.Errorf("create render directory: %w", err)
		}
		defer os.RemoveAll(tmp)
		encodeTarget = filepath.Join(tmp, filepath.Base(output))
		renderSpan = progress.Span{Lo: 0, Hi: 85}
	}

	logger.Info("export started",
		logging.String("source", job.Source),
		logging.String("output", output),
		logging.String("format", string(plan.Format)),
		logging.String("video_encoder", plan.VideoEncoder),
		logging.String("audio_encoder", plan.AudioEncoder),
		logging.Int("width", width),
		logging.Int("height", height),
		logging.Float64("fps", res.FPS),
		logging.Int("caption_count", len(job.Captions)),
	)

	if !captions.IsSorted(job.Captions) {
		job.Captions = append([]captions.Caption(nil), job.Captions...)
		captions.SortByStart(job.Captions)
	}
	pass := framePass{
		job:      job,
		style:    style,
		plan:     plan,
		duration: duration,
		width:    width,
		height:   height,
		fps:      res.FPS,
		output:   encodeTarget,
		audio:    audioSource,
		report:   renderSpan.Wrap(report),
	}
	frames, stopped, err := r.renderFrames(ctx, logger, pass)
	if err != nil {
		_ = os.Remove(encodeTarget)
		return Result{}, err
	}
	res.Frames = frames
	res.Seconds = float64(frames) / res.FPS
	res.Output = output
	res.Stopped = stopped

	if postPass {
		if stopped {
			if err := os.Rename(encodeTarget, output); err != nil {
				return res, fmt.Errorf("keep partial export: %w", err)
			}
		} else if warn := r.runPostPass(ctx, logger, encodeTarget, output, progress.Span{Lo: 85, Hi: 100}.Wrap(report)); warn != "" {
			res.Warnings = append(res.Warnings, warn)
		}
	}

	if stopped {
		logger.Info("export stopped", logging.String("output", output), logging.Int("frames", frames), logging.Float64("seconds", res.Seconds))
		return res, nil
	}
	report.Emit(progress.PhaseDone, 100)
	logger.Info("export complete", logging.String("output", output), logging.Int("frames", frames))
	return res, nil
}

type framePass struct {
	job      Job
	style    captions.Style
	plan     Plan
	duration float64
	width    int
	height   int
	fps      float64
	output   string
	audio    string
	report   progress.Func
}

func (r *Renderer) renderFrames(ctx context.Context, logger *slog.Logger, p framePass) (int, bool, error) {
	src, err := r.openSource(ctx, SourceSpec{FFmpeg: r.ffmpeg, Path: p.job.Source, Width: p.width, Height: p.height, FPS: p.fps})
	if err != nil {
		return 0, false, services.Wrap(services.ErrDecode, "export", "open decoder", p.job.Source, err)
	}
	sink, err := r.openSink(ctx, SinkSpec{
		FFmpeg:      r.ffmpeg,
		Output:      p.output,
		Plan:        p.plan,
		Width:       p.width,
		Height:      p.height,
		FPS:         p.fps,
		BitrateKbps: p.job.BitrateKbps,
		AudioSource: p.audio,
	})
	if err != nil {
		_ = src.Close()
		return 0, false, services.Wrap(services.ErrExternalTool, "export", "open encoder", p.output, err)
	}

	abort := func(frame int, err error) (int, bool, error) {
		_ = src.Close()
		_ = sink.Abort()
		logging.ErrorWithContext(logger, "export aborted", "export_frame_failed",
			logging.Int("frame", frame),
			logging.Error(err),
		)
		return frame, false, services.Wrap(services.ErrExternalTool, "export", "render frame", fmt.Sprintf("frame %d", frame), err)
	}

	frame := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	dc := gg.NewContextForRGBA(frame)
	size := render.Size{Width: p.width, Height: p.height}
	scale := render.ScaleFor(p.height)
	sampler := logging.NewProgressSampler(5)
	start := r.now()

	frames := 0
	stopped := false
	for {
		if ctx.Err() != nil {
			stopped = true
			break
		}
		if err := src.Next(frame); err != nil {
			if ctx.Err() != nil {
				stopped = true
				break
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return abort(frames, err)
		}
		at := float64(frames) / p.fps
		if _, _, err := render.Overlay(dc, size, p.job.Captions, at, p.style, scale, p.job.Bias); err != nil {
			return abort(frames, err)
		}
		if err := sink.WriteFrame(frame); err != nil {
			return abort(frames, err)
		}
		frames++

		percent := 100 * float64(frames) / p.fps / p.duration
		p.report.Emit(progress.PhaseExporting, percent)
		if sampler.ShouldLog(percent, string(progress.PhaseExporting)) {
			logger.Debug("export progress", logging.Float64(logging.FieldProgressPercent, percent), logging.Int("frames", frames))
		}

		if p.job.Realtime {
			due := start.Add(time.Duration(float64(frames) / p.fps * float64(time.Second)))
			if wait := due.Sub(r.now()); wait > 0 {
				if err := r.sleep(ctx, wait); err != nil {
					stopped = true
					break
				}
			}
		}
	}

	_ = src.Close()
	if err := sink.Close(); err != nil {
		return frames, stopped, services.Wrap(services.ErrExternalTool, "export", "finalize", p.output, err)
	}
	if !stopped {
		p.report.Emit(progress.PhaseExporting, 100)
	}
	return frames, stopped, nil
}

// runPostPass re-encodes input to AV1 at output. A failed post-pass keeps the
// rendered file and returns a warning instead of failing the export.
func (r *Renderer) runPostPass(ctx context.Context, logger *slog.Logger, input, output string, report progress.Func) string {
	logger.Info("starting AV1 post-pass", logging.String("input", input))
	sampler := logging.NewProgressSampler(5)
	encoded, err := r.postPass.Encode(ctx, input, filepath.Dir(output), func(update drapto.ProgressUpdate) {
		if update.Percent <= 0 && update.Type != drapto.EventTypeEncodingProgress {
			return
		}
		report.Emit(progress.PhaseEncoding, update.Percent)
		if sampler.ShouldLog(update.Percent, update.Stage) {
			logger.Info("drapto progress",
				logging.Float64(logging.FieldProgressPercent, update.Percent),
				logging.String("progress_stage", update.Stage),
			)
		}
	})
	if err == nil && encoded != output {
		err = os.Rename(encoded, output)
	}
	if err == nil {
		report.Emit(progress.PhaseEncoding, 100)
		return ""
	}

	logging.WarnWithContext(logger, "AV1 post-pass failed; keeping rendered file", "export_post_pass_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the drapto installation"),
		logging.String(logging.FieldImpact, "output keeps the intermediate encoding"),
	)
	if rerr := os.Rename(input, output); rerr != nil {
		return fmt.Sprintf("AV1 post-pass failed (%v) and the rendered file could not be kept: %v", err, rerr)
	}
	return fmt.Sprintf("AV1 post-pass failed: %v", err)
}

func (r *Renderer) checkFreeSpace(dir string, seconds float64, bitrateKbps int, postPass bool) error {
	if bitrateKbps <= 0 {
		bitrateKbps = defaultEstimateKbps
	}
	need := uint64(seconds*float64(bitrateKbps)*1000/8*1.2) + minFreeBytes
	if postPass {
		need *= 2
	}
	free, err := r.freeBytes(dir)
	if err != nil {
		return services.Wrap(services.ErrValidation, "export", "check free space", dir, err)
	}
	if free < need {
		return services.Wrap(services.ErrValidation, "export", "check free space",
			fmt.Sprintf("%s free in %s, need about %s", humanize.IBytes(free), dir, humanize.IBytes(need)), nil)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
