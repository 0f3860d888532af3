package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"captioner/internal/captions"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTrack(t *testing.T) *captions.Track {
	t.Helper()
	track, err := captions.NewTrack([]captions.Caption{
		{ID: "a", Text: "Hello world.", Start: 1.0, End: 2.0},
		{ID: "b", Text: "Second", Start: 3.0, End: 4.0},
	})
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	return track
}

func newSync(t *testing.T) (*Synchronizer, *VirtualClock, *fakeNow) {
	t.Helper()
	now := &fakeNow{t: time.Unix(0, 0)}
	clock := NewVirtualClockWithTime(10, now.Now)
	s := NewSynchronizer(clock, newTrack(t), Options{Bias: DefaultBias})
	return s, clock, now
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusIdle, StatusLoaded, true},
		{StatusIdle, StatusPlaying, false},
		{StatusIdle, StatusSeeking, false},
		{StatusLoaded, StatusPlaying, true},
		{StatusPlaying, StatusPaused, true},
		{StatusPaused, StatusSeeking, true},
		{StatusSeeking, StatusPlaying, true},
		{StatusPaused, StatusLoaded, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.ok {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestPlayRequiresLoadedMedia(t *testing.T) {
	s, _, _ := newSync(t)
	if err := s.Play(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := s.Seek(1); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for seek, got %v", err)
	}
}

func TestPollHonorsPreRollBias(t *testing.T) {
	s, clock, _ := newSync(t)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	clock.Seek(0.86)
	if u := s.Poll(); !u.HasActive || u.Active.ID != "a" {
		t.Fatalf("expected caption a at 0.86, got %+v", u)
	}
	clock.Seek(0.5)
	if u := s.Poll(); u.HasActive {
		t.Fatalf("expected no caption at 0.5, got %+v", u.Active)
	}
	clock.Seek(2.05)
	if u := s.Poll(); u.HasActive {
		t.Fatal("bias must not extend past the end")
	}
}

func TestPlayAdvancesWithClock(t *testing.T) {
	s, _, now := newSync(t)
	_ = s.Load()
	if err := s.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	now.Advance(3500 * time.Millisecond)
	u := s.Poll()
	if !u.State.IsPlaying || u.State.CurrentTime != 3.5 || u.Active.ID != "b" {
		t.Fatalf("unexpected update %+v", u)
	}
	if err := s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	now.Advance(time.Second)
	if u := s.Poll(); u.State.IsPlaying || u.State.CurrentTime != 3.5 {
		t.Fatalf("paused clock moved: %+v", u.State)
	}
}

func TestPlaybackStopsAtEnd(t *testing.T) {
	s, _, now := newSync(t)
	_ = s.Load()
	_ = s.Play()
	now.Advance(time.Minute)
	u := s.Poll()
	if u.State.CurrentTime != 10 || u.State.IsPlaying || s.Status() != StatusPaused {
		t.Fatalf("expected paused at end, got %+v status=%s", u.State, s.Status())
	}
}

func TestSeekClampsAndRestoresStatus(t *testing.T) {
	s, _, _ := newSync(t)
	_ = s.Load()
	_ = s.Play()

	ch, cancel := s.Subscribe()
	defer cancel()

	if err := s.Seek(-5); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if s.Status() != StatusPlaying {
		t.Fatalf("status = %s, want playing", s.Status())
	}
	if got := s.Last().State.CurrentTime; got != 0 {
		t.Fatalf("seek below zero = %v", got)
	}
	latest := <-ch
	if latest.State.Status != StatusPlaying {
		t.Fatalf("subscriber should hold latest update, got %s", latest.State.Status)
	}

	_ = s.Seek(99)
	if got := s.Last().State.CurrentTime; got != 10 {
		t.Fatalf("seek past end = %v", got)
	}
}

// hookedTransport runs onSeek while the synchronizer is in StatusSeeking.
type hookedTransport struct {
	*VirtualClock
	onSeek func()
}

func (h *hookedTransport) Seek(seconds float64) {
	h.VirtualClock.Seek(seconds)
	if h.onSeek != nil {
		h.onSeek()
	}
}

func TestSeekKeepsTransportCommandIssuedDuringSeek(t *testing.T) {
	now := &fakeNow{t: time.Unix(0, 0)}
	transport := &hookedTransport{VirtualClock: NewVirtualClockWithTime(10, now.Now)}
	s := NewSynchronizer(transport, newTrack(t), Options{Bias: DefaultBias})
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	var cmdErr error
	transport.onSeek = func() { cmdErr = s.Pause() }
	if err := s.Seek(4); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if cmdErr != nil {
		t.Fatalf("Pause during seek: %v", cmdErr)
	}
	if s.Status() != StatusPaused {
		t.Fatalf("status = %s, want paused", s.Status())
	}
	now.Advance(time.Second)
	if u := s.Poll(); u.State.IsPlaying || u.State.CurrentTime != 4 {
		t.Fatalf("transport and status disagree: %+v", u.State)
	}

	transport.onSeek = func() { cmdErr = s.Play() }
	if err := s.Seek(5); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if cmdErr != nil || s.Status() != StatusPlaying {
		t.Fatalf("status = %s (err %v), want playing", s.Status(), cmdErr)
	}
}

func TestSeekToCaptionSelects(t *testing.T) {
	s, _, _ := newSync(t)
	_ = s.Load()
	if err := s.SeekToCaption("b"); err != nil {
		t.Fatalf("SeekToCaption: %v", err)
	}
	u := s.Last()
	if u.State.CurrentTime != 3.0 || u.State.SelectedCaptionID != "b" || u.Active.ID != "b" {
		t.Fatalf("unexpected update %+v", u)
	}
	if err := s.SeekToCaption("missing"); !errors.Is(err, captions.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunPublishesUntilCancelled(t *testing.T) {
	var (
		mu    sync.Mutex
		count int
	)
	clock := NewVirtualClock(5)
	s := NewSynchronizer(clock, newTrack(t), Options{
		PollInterval: time.Millisecond,
		OnUpdate: func(Update) {
			mu.Lock()
			count++
			mu.Unlock()
		},
	})
	_ = s.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if count < 2 {
		t.Fatalf("expected several polls, got %d", count)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s, _, _ := newSync(t)
	ch, cancel := s.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	s.Poll()
}

func TestVirtualClockRate(t *testing.T) {
	now := &fakeNow{t: time.Unix(0, 0)}
	clock := NewVirtualClockWithTime(100, now.Now)
	clock.Play()
	now.Advance(time.Second)
	clock.SetRate(2)
	now.Advance(time.Second)
	if got := clock.Position(); got != 3 {
		t.Fatalf("position = %v, want 3", got)
	}
}
