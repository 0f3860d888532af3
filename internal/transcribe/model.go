package transcribe

import (
	"context"
	"errors"

	"captioner/internal/captions"
	"captioner/internal/media/audio"
	"captioner/internal/progress"
)

// Granularity selects the timestamp resolution requested from the model.
type Granularity string

const (
	GranularityWord    Granularity = "word"
	GranularitySegment Granularity = "segment"
)

// ErrGranularityUnsupported is returned by a Model that cannot produce the
// requested timestamp resolution.
var ErrGranularityUnsupported = errors.New("timestamp granularity unsupported")

// Options are passed through to the model for each request.
type Options struct {
	// Language is an ISO 639-1 code; empty asks the model to detect it.
	Language    string
	Granularity Granularity
}

// Segment is a coarse transcript span without per-word timing.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Output is what a model returns for one request. Words is empty for
// segment-granularity requests.
type Output struct {
	Text     string
	Words    []captions.WordToken
	Segments []Segment
	Language string
}

// Model runs inference on mono PCM at audio.ModelSampleRate.
type Model interface {
	Name() string
	Transcribe(ctx context.Context, pcm audio.PCM, opts Options, report progress.Func) (Output, error)
}

// Loader prepares a Model, reporting load progress from 0 to 100.
type Loader interface {
	Load(ctx context.Context, report progress.Func) (Model, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, report progress.Func) (Model, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, report progress.Func) (Model, error) {
	return f(ctx, report)
}

// Result is a finished transcription.
type Result struct {
	FullText string               `json:"fullText"`
	Tokens   []captions.WordToken `json:"tokens"`
	Segments []Segment            `json:"segments,omitempty"`
	Language string               `json:"language,omitempty"`
	Model    string               `json:"model"`
	// Degraded is set when token timing was spread from segment timestamps.
	Degraded bool `json:"degraded"`
	// Cached is set when the result came from the transcript cache.
	Cached bool `json:"-"`
}
