package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"captioner/internal/captions"
	"captioner/internal/logging"
)

const (
	DefaultPollInterval = 33 * time.Millisecond
	DefaultBias         = 0.15
)

// PlaybackState is the snapshot published on every poll.
type PlaybackState struct {
	CurrentTime       float64 `json:"currentTime"`
	Duration          float64 `json:"duration"`
	IsPlaying         bool    `json:"isPlaying"`
	SelectedCaptionID string  `json:"selectedCaptionId,omitempty"`
	Status            Status  `json:"-"`
}

// Update pairs a state with the caption that should be visible.
type Update struct {
	State     PlaybackState
	Active    captions.Caption
	HasActive bool
}

// CaptionSource answers which caption is visible at a time.
type CaptionSource interface {
	Active(at, bias float64) (captions.Caption, bool)
	Get(id string) (captions.Caption, bool)
}

// Options configures a Synchronizer.
type Options struct {
	PollInterval time.Duration
	Bias         float64
	// OnUpdate, when set, is called synchronously after every poll.
	OnUpdate func(Update)
	Logger   *slog.Logger
}

// Synchronizer polls a transport and publishes caption visibility.
type Synchronizer struct {
	transport Transport
	source    CaptionSource
	interval  time.Duration
	bias      float64
	onUpdate  func(Update)
	logger    *slog.Logger

	mu       sync.Mutex
	status   Status
	resume   Status
	selected string
	subs     map[int]chan Update
	nextSub  int
	last     Update
}

// NewSynchronizer creates a synchronizer in StatusIdle.
func NewSynchronizer(transport Transport, source CaptionSource, opts Options) *Synchronizer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Bias < 0 {
		opts.Bias = 0
	}
	return &Synchronizer{
		transport: transport,
		source:    source,
		interval:  opts.PollInterval,
		bias:      opts.Bias,
		onUpdate:  opts.OnUpdate,
		logger:    logging.NewComponentLogger(opts.Logger, "playback"),
		status:    StatusIdle,
		subs:      make(map[int]chan Update),
	}
}

// Status returns the current transport status.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Synchronizer) transition(next Status) error {
	if !s.status.CanTransition(next) {
		return transitionError(s.status, next)
	}
	s.logger.Debug("playback transition",
		logging.String("from", s.status.String()),
		logging.String("to", next.String()),
	)
	s.status = next
	return nil
}

// Load marks media as ready.
func (s *Synchronizer) Load() error {
	s.mu.Lock()
	err := s.transition(StatusLoaded)
	s.mu.Unlock()
	if err == nil {
		s.Poll()
	}
	return err
}

// Unload returns to StatusIdle from any state.
func (s *Synchronizer) Unload() {
	s.mu.Lock()
	if s.status != StatusIdle {
		s.transport.Pause()
		s.status = StatusIdle
		s.selected = ""
	}
	s.mu.Unlock()
	s.Poll()
}

// Play starts the transport.
func (s *Synchronizer) Play() error {
	s.mu.Lock()
	if s.status == StatusPlaying {
		s.mu.Unlock()
		return nil
	}
	if err := s.transition(StatusPlaying); err != nil {
		s.mu.Unlock()
		return err
	}
	s.transport.Play()
	s.mu.Unlock()
	s.Poll()
	return nil
}

// Pause freezes the transport.
func (s *Synchronizer) Pause() error {
	s.mu.Lock()
	if s.status == StatusPaused {
		s.mu.Unlock()
		return nil
	}
	if err := s.transition(StatusPaused); err != nil {
		s.mu.Unlock()
		return err
	}
	s.transport.Pause()
	s.mu.Unlock()
	s.Poll()
	return nil
}

// Seek snaps the playhead to seconds, clamped to [0, duration], and returns
// to the status held before the seek. A Play or Pause accepted while the
// seek is in flight wins over the earlier status.
func (s *Synchronizer) Seek(seconds float64) error {
	s.mu.Lock()
	prev := s.status
	if err := s.transition(StatusSeeking); err != nil {
		s.mu.Unlock()
		return err
	}
	s.resume = prev
	s.mu.Unlock()
	s.Poll()

	s.transport.Seek(clampTime(seconds, s.transport.Duration()))

	s.mu.Lock()
	if s.status == StatusSeeking {
		s.status = s.resume
	}
	s.mu.Unlock()
	s.Poll()
	return nil
}

// SeekToCaption seeks to the caption's start and selects it.
func (s *Synchronizer) SeekToCaption(id string) error {
	c, ok := s.source.Get(id)
	if !ok {
		return captions.ErrNotFound
	}
	s.Select(id)
	return s.Seek(c.Start)
}

// Select marks a caption as selected; an empty id clears the selection.
func (s *Synchronizer) Select(id string) {
	s.mu.Lock()
	s.selected = id
	s.mu.Unlock()
}

// Selected returns the selected caption id, or "" when none is selected.
func (s *Synchronizer) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Subscribe returns a channel that always holds the latest update. Slow
// readers skip intermediate states. The returned func unsubscribes.
func (s *Synchronizer) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 1)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	}
}

// Last returns the most recently published update.
func (s *Synchronizer) Last() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run polls until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.Poll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Poll()
		}
	}
}

// Poll reads the clock once and publishes the result.
func (s *Synchronizer) Poll() Update {
	pos := s.transport.Position()
	duration := s.transport.Duration()

	s.mu.Lock()
	if s.status == StatusPlaying && duration > 0 && pos >= duration {
		s.transport.Pause()
		s.status = StatusPaused
		s.logger.Debug("playback reached end", logging.Float64("duration_seconds", duration))
	}
	state := PlaybackState{
		CurrentTime:       pos,
		Duration:          duration,
		IsPlaying:         s.status == StatusPlaying,
		SelectedCaptionID: s.selected,
		Status:            s.status,
	}
	update := Update{State: state}
	if s.status != StatusIdle && s.source != nil {
		update.Active, update.HasActive = s.source.Active(pos, s.bias)
	}
	s.last = update
	for _, ch := range s.subs {
		publishLatest(ch, update)
	}
	onUpdate := s.onUpdate
	s.mu.Unlock()

	if onUpdate != nil {
		onUpdate(update)
	}
	return update
}

func publishLatest(ch chan Update, update Update) {
	select {
	case ch <- update:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- update:
	default:
	}
}
