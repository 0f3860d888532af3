package playback

import (
	"errors"
	"fmt"
)

// Status is the transport state of the player.
type Status int

const (
	StatusIdle Status = iota
	StatusLoaded
	StatusPlaying
	StatusPaused
	StatusSeeking
)

// ErrInvalidTransition is returned when a command is not allowed in the current status.
var ErrInvalidTransition = errors.New("invalid playback transition")

var statusNames = map[Status]string{
	StatusIdle:    "idle",
	StatusLoaded:  "loaded",
	StatusPlaying: "playing",
	StatusPaused:  "paused",
	StatusSeeking: "seeking",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

var transitions = map[Status][]Status{
	StatusIdle:    {StatusLoaded},
	StatusLoaded:  {StatusPlaying, StatusSeeking, StatusIdle},
	StatusPlaying: {StatusPaused, StatusSeeking, StatusIdle},
	StatusPaused:  {StatusPlaying, StatusSeeking, StatusIdle},
	StatusSeeking: {StatusPlaying, StatusPaused, StatusLoaded, StatusIdle},
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func transitionError(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
