package captions

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	// MinSpan is the shortest span a segmented caption may cover, in seconds.
	MinSpan = 0.2
	// DefaultManualSpan is the span of a caption added at the playhead.
	DefaultManualSpan = 3.0

	// spanEpsilon absorbs float error left over from centisecond rounding.
	spanEpsilon = 1e-9
)

var (
	// ErrInvalidSpan reports a caption whose end does not follow its start.
	ErrInvalidSpan = errors.New("caption end must be after start")
	// ErrNotFound reports an unknown caption id.
	ErrNotFound = errors.New("caption not found")
)

// Caption is a single timed span of on-screen text.
type Caption struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Start float64 `json:"startTime"`
	End   float64 `json:"endTime"`
}

// WordToken is one recognized word with its own time range, as produced by
// the speech model.
type WordToken struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the span length in seconds.
func (c Caption) Duration() float64 {
	return c.End - c.Start
}

// Blank reports whether the caption has no visible text.
func (c Caption) Blank() bool {
	return strings.TrimSpace(c.Text) == ""
}

// Contains reports whether t falls inside [Start-bias, End]. The bias is a
// pre-roll only.
func (c Caption) Contains(t, bias float64) bool {
	return t >= c.Start-bias && t <= c.End
}

// Validate checks the span invariant.
func (c Caption) Validate() error {
	if math.IsNaN(c.Start) || math.IsNaN(c.End) || math.IsInf(c.Start, 0) || math.IsInf(c.End, 0) {
		return fmt.Errorf("%w: non-finite timestamp", ErrInvalidSpan)
	}
	if c.Start < 0 {
		return fmt.Errorf("%w: start %.3f is negative", ErrInvalidSpan, c.Start)
	}
	if c.End <= c.Start {
		return fmt.Errorf("%w: start %.3f end %.3f", ErrInvalidSpan, c.Start, c.End)
	}
	return nil
}

// NewID returns a random caption identifier for manually authored captions.
func NewID() string {
	return uuid.NewString()
}

// segmentNamespace seeds deterministic identifiers for segmenter output.
var segmentNamespace = uuid.MustParse("6f1c8a52-3f55-4b8e-9d0e-6f3f8f0b2c71")

func deterministicID(index int, c Caption) string {
	key := fmt.Sprintf("%d|%.2f|%.2f|%s", index, c.Start, c.End, c.Text)
	return uuid.NewSHA1(segmentNamespace, []byte(key)).String()
}

// SortByStart orders captions ascending by start time, keeping insertion order
// for equal starts.
func SortByStart(list []Caption) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Start < list[j].Start
	})
}

// IsSorted reports whether captions are ascending by start time.
func IsSorted(list []Caption) bool {
	return sort.SliceIsSorted(list, func(i, j int) bool {
		return list[i].Start < list[j].Start
	})
}

// Active returns the first caption with visible text whose window
// [Start-bias, End] contains t. The list must be sorted by start.
func Active(list []Caption, t, bias float64) (Caption, bool) {
	if bias < 0 {
		bias = 0
	}
	// Captions starting after t+bias can never be active.
	limit := sort.Search(len(list), func(i int) bool {
		return list[i].Start-bias > t
	})
	for i := 0; i < limit; i++ {
		c := list[i]
		if c.Blank() {
			continue
		}
		if c.Contains(t, bias) {
			return c, true
		}
	}
	return Caption{}, false
}

func roundCentis(v float64) float64 {
	return math.Round(v*100) / 100
}
