// Package progress carries (phase, percent) events from long-running work to
// whoever is watching, and composes nested phases into one overall percentage.
package progress

import (
	"math"
	"sync"
)

// Phase names a stage of the caption pipeline or an export.
type Phase string

const (
	PhaseExtracting   Phase = "extracting"
	PhaseLoading      Phase = "loading"
	PhaseTranscribing Phase = "transcribing"
	PhaseSegmenting   Phase = "segmenting"
	PhaseExporting    Phase = "exporting"
	PhaseEncoding     Phase = "encoding"
	PhaseDone         Phase = "done"
)

// Event is a single progress report. Percent is within [0, 100].
type Event struct {
	Phase   Phase   `json:"phase"`
	Percent float64 `json:"percent"`
}

// Func receives progress events. A nil Func discards them.
type Func func(Event)

// Emit reports an event, ignoring a nil receiver.
func (f Func) Emit(phase Phase, percent float64) {
	if f == nil {
		return
	}
	f(Event{Phase: phase, Percent: clampPercent(percent)})
}

// Span maps a child's 0–100 progress into [Lo, Hi] of the parent's range.
type Span struct {
	Lo float64
	Hi float64
}

// Map converts a child percentage into the parent's scale.
func (s Span) Map(percent float64) float64 {
	return s.Lo + (s.Hi-s.Lo)*clampPercent(percent)/100
}

// Wrap returns a Func that rescales child events into the span and forwards
// them to parent, keeping the child's phase.
func (s Span) Wrap(parent Func) Func {
	if parent == nil {
		return nil
	}
	return func(ev Event) {
		parent(Event{Phase: ev.Phase, Percent: s.Map(ev.Percent)})
	}
}

// Pipeline spans: extraction 0–10, transcription 10–90, segmentation 90–100.
var (
	ExtractionSpan    = Span{Lo: 0, Hi: 10}
	TranscriptionSpan = Span{Lo: 10, Hi: 90}
	SegmentationSpan  = Span{Lo: 90, Hi: 100}
)

// Monotonic forwards events to next while never letting the overall
// percentage move backwards. It is safe for concurrent use.
func Monotonic(next Func) Func {
	if next == nil {
		return nil
	}
	var (
		mu   sync.Mutex
		last = -1.0
	)
	return func(ev Event) {
		mu.Lock()
		if ev.Percent < last {
			ev.Percent = last
		}
		last = ev.Percent
		mu.Unlock()
		next(ev)
	}
}

// Channel returns a Func that delivers events to ch without blocking; when the
// buffer is full the event is dropped, since a later event supersedes it.
func Channel(ch chan<- Event) Func {
	return func(ev Event) {
		select {
		case ch <- ev:
		default:
		}
	}
}

func clampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
