package session

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"captioner/internal/captions"
	"captioner/internal/export"
	"captioner/internal/logging"
	"captioner/internal/media/ffprobe"
	"captioner/internal/playback"
	"captioner/internal/progress"
	"captioner/internal/services"
)

// Exporter renders the caption track into a video file.
type Exporter interface {
	Export(ctx context.Context, job export.Job, report progress.Func) (export.Result, error)
}

// MediaProbe inspects a source video.
type MediaProbe func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Options configures a Session.
type Options struct {
	Pipeline Pipeline
	Exporter Exporter
	Probe    MediaProbe
	FFprobe  string
	Style    captions.Style
	// Playback.Bias is used as given by the synchronizer, stills, and
	// exports; zero disables the pre-roll. Negative values become zero.
	Playback playback.Options
	Logger   *slog.Logger
}

// Session is one open video with its caption track, style, and playback.
type Session struct {
	pipeline Pipeline
	exporter Exporter
	probe    MediaProbe
	ffprobe  string
	syncOpts playback.Options
	logger   *slog.Logger

	track *captions.Track

	mu       sync.RWMutex
	source   string
	duration float64
	style    captions.Style
	tokens   []captions.WordToken
	clock    *playback.VirtualClock
	syncer   *playback.Synchronizer

	transcribing atomic.Bool
}

// New creates a session with an empty caption track. A zero Style selects
// captions.DefaultStyle.
func New(opts Options) (*Session, error) {
	style := opts.Style
	if style == (captions.Style{}) {
		style = captions.DefaultStyle()
	}
	style = style.Normalize()
	if err := style.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "session", "new", "invalid style", err)
	}
	track, err := captions.NewTrack(nil)
	if err != nil {
		return nil, err
	}
	probe := opts.Probe
	if probe == nil {
		probe = ffprobe.Inspect
	}
	if opts.Playback.Bias < 0 {
		opts.Playback.Bias = 0
	}
	return &Session{
		pipeline: opts.Pipeline,
		exporter: opts.Exporter,
		probe:    probe,
		ffprobe:  opts.FFprobe,
		syncOpts: opts.Playback,
		logger:   logging.NewComponentLogger(opts.Logger, "session"),
		track:    track,
		style:    style,
	}, nil
}

// Open probes source and loads it into a fresh virtual playback clock. The
// caption track is kept; call Reset to discard it.
func (s *Session) Open(ctx context.Context, source string) error {
	info, err := s.probe(ctx, s.ffprobe, source)
	if err != nil {
		return services.Wrap(services.ErrDecode, "session", "open", source, err)
	}
	duration := info.DurationSeconds()
	if duration <= 0 {
		return services.Wrap(services.ErrDecode, "session", "open", "unknown duration", nil)
	}

	clock := playback.NewVirtualClock(duration)
	syncer := playback.NewSynchronizer(clock, s.track, s.syncOpts)
	if err := syncer.Load(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.syncer != nil {
		s.syncer.Unload()
	}
	s.source = source
	s.duration = duration
	s.clock = clock
	s.syncer = syncer
	s.mu.Unlock()

	s.logger.Info("video opened",
		logging.String("source", source),
		logging.Float64("duration_seconds", duration),
		logging.Bool("has_audio", info.HasAudio()),
	)
	return nil
}

// Source returns the open video path.
func (s *Session) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Duration returns the open video's length in seconds.
func (s *Session) Duration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duration
}

// Bias returns the pre-roll, in seconds, shared by playback, stills, and
// exports.
func (s *Session) Bias() float64 {
	return s.syncOpts.Bias
}

// Synchronizer returns the playback synchronizer, or nil before Open.
func (s *Session) Synchronizer() *playback.Synchronizer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncer
}

// Clock returns the virtual clock driving playback, or nil before Open.
func (s *Session) Clock() *playback.VirtualClock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock
}

// Transcribe runs the pipeline over the open video. On success the caption
// track is replaced with the new captions; on failure it is left untouched.
// A second call while one runs fails with services.ErrBusy.
func (s *Session) Transcribe(ctx context.Context, report progress.Func) (Outcome, error) {
	source := s.Source()
	if source == "" {
		return Outcome{}, services.Wrap(services.ErrValidation, "session", "transcribe", "no video is open", nil)
	}
	if !s.transcribing.CompareAndSwap(false, true) {
		return Outcome{}, services.Wrap(services.ErrBusy, "session", "transcribe", "a transcription is already running", nil)
	}
	defer s.transcribing.Store(false)

	outcome, err := s.pipeline.Run(ctx, source, report)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.track.Replace(outcome.Captions); err != nil {
		return Outcome{}, err
	}

	s.mu.Lock()
	s.tokens = append([]captions.WordToken(nil), outcome.Result.Tokens...)
	s.mu.Unlock()

	s.logger.Info("captions installed",
		logging.Int("caption_count", len(outcome.Captions)),
		logging.Int("token_count", len(outcome.Result.Tokens)),
		logging.String("segmentation", outcome.Mode.String()),
		logging.Bool("degraded", outcome.Result.Degraded),
		logging.Bool("cached", outcome.Result.Cached),
	)
	return outcome, nil
}

// Resegment rebuilds the track from the last transcription's tokens using
// mode, without running inference again.
func (s *Session) Resegment(mode captions.Mode) ([]captions.Caption, error) {
	s.mu.RLock()
	tokens := s.tokens
	s.mu.RUnlock()
	if len(tokens) == 0 {
		return nil, services.Wrap(services.ErrValidation, "session", "resegment", "no word tokens; transcribe first", nil)
	}
	list := captions.Segment(tokens, mode)
	if err := s.track.Replace(list); err != nil {
		return nil, err
	}
	return s.track.Snapshot(), nil
}

// LoadTokens installs previously saved word tokens for Resegment.
func (s *Session) LoadTokens(tokens []captions.WordToken) {
	s.mu.Lock()
	s.tokens = append([]captions.WordToken(nil), tokens...)
	s.mu.Unlock()
}

// LoadCaptions replaces the track with list.
func (s *Session) LoadCaptions(list []captions.Caption) error {
	return s.track.Replace(list)
}

// Captions returns a sorted snapshot of the caption track.
func (s *Session) Captions() []captions.Caption {
	return s.track.Snapshot()
}

// Track exposes the caption track for readers such as the overlay.
func (s *Session) Track() *captions.Track {
	return s.track
}

// Reset discards every caption and saved token.
func (s *Session) Reset() {
	s.track.Reset()
	s.mu.Lock()
	s.tokens = nil
	s.mu.Unlock()
}

// Playhead returns the current playback position, or 0 before Open.
func (s *Session) Playhead() float64 {
	if clock := s.Clock(); clock != nil {
		return clock.Position()
	}
	return 0
}

// AddAtPlayhead inserts a caption spanning captions.DefaultManualSpan from
// the current playhead.
func (s *Session) AddAtPlayhead(text string) (captions.Caption, error) {
	return s.track.Add(text, s.Playhead())
}

// Retype replaces a caption's text.
func (s *Session) Retype(id, text string) (captions.Caption, error) {
	return s.track.SetText(id, text)
}

// Retime sets a caption's span, as when its edges are dragged on the timeline.
func (s *Session) Retime(id string, start, end float64) (captions.Caption, error) {
	return s.track.SetSpan(id, start, end)
}

// Drag moves a caption to start at start, keeping its duration.
func (s *Session) Drag(id string, start float64) (captions.Caption, error) {
	return s.track.MoveSpan(id, start)
}

// Duplicate copies a caption to start where the original ends.
func (s *Session) Duplicate(id string) (captions.Caption, error) {
	return s.track.Duplicate(id)
}

// Delete removes a caption.
func (s *Session) Delete(id string) error {
	if syncer := s.Synchronizer(); syncer != nil && syncer.Selected() == id {
		syncer.Select("")
	}
	return s.track.Delete(id)
}

// Shift offsets every caption by delta seconds.
func (s *Session) Shift(delta float64) error {
	return s.track.Shift(delta)
}

// Style returns the current caption style.
func (s *Session) Style() captions.Style {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.style
}

// SetStyle replaces the caption style after validating it.
func (s *Session) SetStyle(style captions.Style) error {
	style = style.Normalize()
	if err := style.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "session", "set style", "", err)
	}
	s.mu.Lock()
	s.style = style
	s.mu.Unlock()
	return nil
}

// MoveOverlay repositions the caption anchor to x%/y% of the frame, as when
// the overlay is dragged.
func (s *Session) MoveOverlay(xPercent, yPercent float64) captions.Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.style = s.style.WithCustomPosition(xPercent, yPercent).Normalize()
	return s.style
}

// ResizeOverlay scales the caption font size by factor, as when the overlay
// is resized.
func (s *Session) ResizeOverlay(factor float64) (captions.Style, error) {
	if factor <= 0 {
		return captions.Style{}, services.Wrap(services.ErrValidation, "session", "resize overlay", "factor must be positive", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.style = s.style.WithFontSize(s.style.FontSize * factor).Normalize()
	return s.style, nil
}

// ExportOptions are the per-export choices.
type ExportOptions struct {
	Output      string
	Format      export.Format
	Quality     int
	BitrateKbps int
	Realtime    bool
	AV1PostPass bool
}

// Export renders the open video with the current captions and style.
func (s *Session) Export(ctx context.Context, opts ExportOptions, report progress.Func) (export.Result, error) {
	if s.exporter == nil {
		return export.Result{}, services.Wrap(services.ErrConfiguration, "session", "export", "no exporter configured", nil)
	}
	source := s.Source()
	if source == "" {
		return export.Result{}, services.Wrap(services.ErrValidation, "session", "export", "no video is open", nil)
	}
	output := strings.TrimSpace(opts.Output)
	if output == "" {
		output = strings.TrimSuffix(source, filepath.Ext(source)) + ".captioned." + string(opts.Format)
	}
	return s.exporter.Export(ctx, export.Job{
		Source:      source,
		Output:      output,
		Format:      opts.Format,
		Quality:     opts.Quality,
		BitrateKbps: opts.BitrateKbps,
		Realtime:    opts.Realtime,
		AV1PostPass: opts.AV1PostPass,
		Captions:    s.track.Snapshot(),
		Style:       s.Style(),
		Bias:        s.syncOpts.Bias,
	}, report)
}
