package transcribe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"captioner/internal/captions"
	"captioner/internal/media/audio"
	"captioner/internal/progress"
	"captioner/internal/services"
)

type fakeModel struct {
	name  string
	words func(ctx context.Context) (Output, error)
	segs  func(ctx context.Context) (Output, error)
	calls atomic.Int32
}

func (m *fakeModel) Name() string { return m.name }

func (m *fakeModel) Transcribe(ctx context.Context, _ audio.PCM, opts Options, report progress.Func) (Output, error) {
	m.calls.Add(1)
	report.Emit(progress.PhaseTranscribing, 50)
	if opts.Granularity == GranularitySegment {
		if m.segs == nil {
			return Output{}, errors.New("no segment support")
		}
		return m.segs(ctx)
	}
	return m.words(ctx)
}

func wordsOutput() (Output, error) {
	return Output{
		Text: "Hello world.",
		Words: []captions.WordToken{
			{Text: "Hello", Start: 0, End: 0.4},
			{Text: "world.", Start: 0.45, End: 0.9},
		},
	}, nil
}

func testPCM() audio.PCM {
	return audio.PCM{Samples: make([]float32, 1600), SampleRate: audio.ModelSampleRate}
}

func staticLoader(model Model) (*atomic.Int32, Loader) {
	var count atomic.Int32
	return &count, LoaderFunc(func(ctx context.Context, report progress.Func) (Model, error) {
		count.Add(1)
		report.Emit(progress.PhaseLoading, 100)
		return model, nil
	})
}

func TestEngineTranscribeWordPass(t *testing.T) {
	model := &fakeModel{name: "fake", words: func(context.Context) (Output, error) { return wordsOutput() }}
	_, loader := staticLoader(model)
	engine := NewEngine(loader)

	var events []progress.Event
	result, err := engine.Transcribe(context.Background(), testPCM(), "en", func(ev progress.Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Degraded {
		t.Fatal("expected non-degraded result")
	}
	if result.FullText != "Hello world." || len(result.Tokens) != 2 || result.Model != "fake" {
		t.Fatalf("unexpected result %+v", result)
	}
	if !engine.Loaded() {
		t.Fatal("expected model to stay loaded")
	}

	var sawLoad85, sawInfer bool
	for _, ev := range events {
		if ev.Phase == progress.PhaseLoading && ev.Percent > 85 {
			t.Fatalf("loading progress exceeded 85: %+v", ev)
		}
		if ev.Phase == progress.PhaseLoading && ev.Percent == 85 {
			sawLoad85 = true
		}
		if ev.Phase == progress.PhaseTranscribing && ev.Percent > 85 && ev.Percent < 100 {
			sawInfer = true
		}
	}
	if !sawLoad85 || !sawInfer {
		t.Fatalf("unexpected progress events %+v", events)
	}
}

func TestEngineRejectsWrongSampleRate(t *testing.T) {
	_, loader := staticLoader(&fakeModel{name: "fake"})
	engine := NewEngine(loader)
	_, err := engine.Transcribe(context.Background(), audio.PCM{SampleRate: 44100}, "", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEngineConcurrentCallIsBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	model := &fakeModel{name: "fake", words: func(context.Context) (Output, error) {
		close(started)
		<-release
		return wordsOutput()
	}}
	_, loader := staticLoader(model)
	engine := NewEngine(loader)

	var (
		first    Result
		firstErr error
		wg       sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = engine.Transcribe(context.Background(), testPCM(), "", nil)
	}()
	<-started

	if !engine.Busy() {
		t.Fatal("expected engine to report busy")
	}
	if _, err := engine.Transcribe(context.Background(), testPCM(), "", nil); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(release)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first transcription failed: %v", firstErr)
	}
	if len(first.Tokens) != 2 {
		t.Fatalf("first result disturbed: %+v", first)
	}
	if engine.Busy() {
		t.Fatal("expected engine idle after completion")
	}
}

func TestEnginePreloadSharesInFlightLoad(t *testing.T) {
	gate := make(chan struct{})
	var count atomic.Int32
	model := &fakeModel{name: "fake"}
	loader := LoaderFunc(func(ctx context.Context, _ progress.Func) (Model, error) {
		count.Add(1)
		<-gate
		return model, nil
	})
	engine := NewEngine(loader)

	const callers = 8
	errs := make(chan error, callers)
	for range callers {
		go func() { errs <- engine.Preload(context.Background(), nil) }()
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	for range callers {
		if err := <-errs; err != nil {
			t.Fatalf("Preload: %v", err)
		}
	}
	if got := count.Load(); got != 1 {
		t.Fatalf("expected one load, got %d", got)
	}
}

func TestEngineRetriesFailedLoad(t *testing.T) {
	var count atomic.Int32
	model := &fakeModel{name: "fake"}
	loader := LoaderFunc(func(context.Context, progress.Func) (Model, error) {
		if count.Add(1) == 1 {
			return nil, errors.New("network down")
		}
		return model, nil
	})
	engine := NewEngine(loader)

	err := engine.Preload(context.Background(), nil)
	if !errors.Is(err, services.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
	if engine.Loaded() {
		t.Fatal("failed load must not be cached")
	}
	if err := engine.Preload(context.Background(), nil); err != nil {
		t.Fatalf("second Preload: %v", err)
	}
	if count.Load() != 2 {
		t.Fatalf("expected two load attempts, got %d", count.Load())
	}
}

func TestEngineFallsBackToSegments(t *testing.T) {
	tests := []struct {
		name  string
		words func(context.Context) (Output, error)
	}{
		{"unsupported", func(context.Context) (Output, error) { return Output{}, ErrGranularityUnsupported }},
		{"failure", func(context.Context) (Output, error) { return Output{}, errors.New("boom") }},
		{"no words", func(context.Context) (Output, error) { return Output{Text: "one two"}, nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{name: "fake", words: tt.words, segs: func(context.Context) (Output, error) {
				return Output{Text: "one two", Segments: []Segment{{Text: "one two", Start: 1, End: 2}}}, nil
			}}
			_, loader := staticLoader(model)
			result, err := NewEngine(loader).Transcribe(context.Background(), testPCM(), "", nil)
			if err != nil {
				t.Fatalf("Transcribe: %v", err)
			}
			if !result.Degraded {
				t.Fatal("expected degraded result")
			}
			want := []captions.WordToken{{Text: "one", Start: 1, End: 1.5}, {Text: "two", Start: 1.5, End: 2}}
			if len(result.Tokens) != len(want) {
				t.Fatalf("tokens = %+v", result.Tokens)
			}
			for i := range want {
				if result.Tokens[i] != want[i] {
					t.Fatalf("token %d = %+v, want %+v", i, result.Tokens[i], want[i])
				}
			}
		})
	}
}

func TestEngineSegmentsInWordOutputAreSpreadWithoutSecondPass(t *testing.T) {
	model := &fakeModel{name: "fake", words: func(context.Context) (Output, error) {
		return Output{Segments: []Segment{{Text: "a b", Start: 0, End: 1}}}, nil
	}}
	_, loader := staticLoader(model)
	result, err := NewEngine(loader).Transcribe(context.Background(), testPCM(), "", nil)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !result.Degraded || len(result.Tokens) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if model.calls.Load() != 1 {
		t.Fatalf("expected one model call, got %d", model.calls.Load())
	}
}

func TestEngineFallbackFailure(t *testing.T) {
	model := &fakeModel{name: "fake", words: func(context.Context) (Output, error) {
		return Output{}, errors.New("word pass failed")
	}}
	_, loader := staticLoader(model)
	_, err := NewEngine(loader).Transcribe(context.Background(), testPCM(), "", nil)
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}
}

func TestEngineSilentAudio(t *testing.T) {
	model := &fakeModel{name: "fake", words: func(context.Context) (Output, error) { return Output{}, nil }}
	_, loader := staticLoader(model)
	result, err := NewEngine(loader).Transcribe(context.Background(), testPCM(), "", nil)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(result.Tokens) != 0 || result.Degraded {
		t.Fatalf("unexpected result %+v", result)
	}
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]Result
}

func (c *memoryCache) Lookup(_ context.Context, key string) (Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	return r, ok, nil
}

func (c *memoryCache) Store(_ context.Context, key string, result Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
	return nil
}

func TestEngineCacheHitSkipsInference(t *testing.T) {
	model := &fakeModel{name: "fake", words: func(context.Context) (Output, error) { return wordsOutput() }}
	_, loader := staticLoader(model)
	cache := &memoryCache{entries: map[string]Result{}}
	engine := NewEngine(loader, WithCache(cache))

	first, err := engine.Transcribe(context.Background(), testPCM(), "en", nil)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Cached {
		t.Fatal("first result should not be cached")
	}
	second, err := engine.Transcribe(context.Background(), testPCM(), "en", nil)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.Cached || second.FullText != first.FullText {
		t.Fatalf("expected cached copy, got %+v", second)
	}
	if model.calls.Load() != 1 {
		t.Fatalf("expected one inference, got %d", model.calls.Load())
	}

	if _, err := engine.Transcribe(context.Background(), testPCM(), "de", nil); err != nil {
		t.Fatalf("third: %v", err)
	}
	if model.calls.Load() != 2 {
		t.Fatal("different language must miss the cache")
	}
}

func TestCacheKeyChangesWithSamples(t *testing.T) {
	a := testPCM()
	b := testPCM()
	b.Samples[10] = 0.5
	if CacheKey(a, "m", "en", GranularityWord) == CacheKey(b, "m", "en", GranularityWord) {
		t.Fatal("expected different keys for different audio")
	}
	if CacheKey(a, "m", "en", GranularityWord) != CacheKey(testPCM(), "m", "en", GranularityWord) {
		t.Fatal("expected stable key")
	}
}

type closingModel struct {
	fakeModel
	closed bool
}

func (m *closingModel) Close() error {
	m.closed = true
	return nil
}

func TestEngineCloseReleasesModel(t *testing.T) {
	model := &closingModel{fakeModel: fakeModel{name: "fake"}}
	_, loader := staticLoader(model)
	engine := NewEngine(loader)
	if err := engine.Preload(context.Background(), nil); err != nil {
		t.Fatalf("Preload: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !model.closed || engine.Loaded() {
		t.Fatal("expected model closed and released")
	}
}
