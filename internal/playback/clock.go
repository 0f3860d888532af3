package playback

import (
	"sync"
	"time"
)

// Clock reports the media position. Implementations wrap whatever player
// actually renders the video.
type Clock interface {
	// Position returns the current media time in seconds.
	Position() float64
	// Duration returns the media length in seconds, or 0 when unknown.
	Duration() float64
}

// Transport is a Clock that can also be driven.
type Transport interface {
	Clock
	Play()
	Pause()
	Seek(seconds float64)
}

// VirtualClock advances media time from wall time. It is safe for concurrent use.
type VirtualClock struct {
	mu       sync.Mutex
	now      func() time.Time
	duration float64
	base     float64
	started  time.Time
	playing  bool
	rate     float64
}

// NewVirtualClock creates a paused clock for media of the given duration.
func NewVirtualClock(duration float64) *VirtualClock {
	return NewVirtualClockWithTime(duration, time.Now)
}

// NewVirtualClockWithTime uses now as the wall time source.
func NewVirtualClockWithTime(duration float64, now func() time.Time) *VirtualClock {
	if duration < 0 {
		duration = 0
	}
	return &VirtualClock{now: now, duration: duration, rate: 1}
}

// Position returns the current media time, clamped to the duration.
func (c *VirtualClock) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *VirtualClock) positionLocked() float64 {
	pos := c.base
	if c.playing {
		pos += c.now().Sub(c.started).Seconds() * c.rate
	}
	return clampTime(pos, c.duration)
}

// Duration returns the media length.
func (c *VirtualClock) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// Playing reports whether the clock is advancing.
func (c *VirtualClock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Play starts advancing from the current position.
func (c *VirtualClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.started = c.now()
	c.playing = true
}

// Pause freezes the current position.
func (c *VirtualClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.base = c.positionLocked()
	c.playing = false
}

// Seek jumps to seconds, clamped to [0, duration].
func (c *VirtualClock) Seek(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = clampTime(seconds, c.duration)
	c.started = c.now()
}

// SetRate changes the playback speed; non-positive rates are ignored.
func (c *VirtualClock) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = c.positionLocked()
	c.started = c.now()
	c.rate = rate
}

func clampTime(t, duration float64) float64 {
	if t < 0 || t != t {
		return 0
	}
	if duration > 0 && t > duration {
		return duration
	}
	return t
}
