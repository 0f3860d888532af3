package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"captioner/internal/media/audio"
	"captioner/internal/services"
	"captioner/internal/transcribe"
)

const samplePayload = `{
  "language": "en",
  "segments": [
    {"text": " Hello world. ", "start": 0.0, "end": 0.7, "words": [
      {"word": "Hello", "start": 0.0, "end": 0.3},
      {"word": "world.", "start": 0.35, "end": 0.7}
    ]},
    {"text": "It costs 20 dollars", "start": 1.0, "end": 2.0, "words": [
      {"word": "It", "start": 1.0, "end": 1.1},
      {"word": "costs", "start": 1.15, "end": 1.4},
      {"word": "20"},
      {"word": "dollars", "start": 1.6, "end": 2.0}
    ]}
  ]
}`

func argValue(args []string, flag string) string {
	idx := slices.Index(args, flag)
	if idx < 0 || idx+1 >= len(args) {
		return ""
	}
	return args[idx+1]
}

func newTestModel(t *testing.T, cfg Config, runner CommandRunner) transcribe.Model {
	t.Helper()
	cfg.WorkDir = t.TempDir()
	loader := NewLoader(cfg, nil).WithCommandRunner(runner)
	model, err := loader.Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return model
}

func TestTranscribeParsesWordTimings(t *testing.T) {
	var gotArgs []string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != UVXCommand {
			t.Fatalf("unexpected command %q", name)
		}
		gotArgs = args
		source := args[slices.Index(args, "whisperx")+1]
		if _, err := os.Stat(source); err != nil {
			t.Fatalf("expected wav on disk: %v", err)
		}
		dir := argValue(args, "--output_dir")
		return nil, os.WriteFile(filepath.Join(dir, "audio.json"), []byte(samplePayload), 0o644)
	}
	model := newTestModel(t, Config{}, runner)
	pcm := audio.PCM{Samples: make([]float32, 160), SampleRate: audio.ModelSampleRate}

	out, err := model.Transcribe(context.Background(), pcm, transcribe.Options{Language: "eng", Granularity: transcribe.GranularityWord}, nil)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if out.Text != "Hello world. It costs 20 dollars" {
		t.Fatalf("text = %q", out.Text)
	}
	if len(out.Words) != 6 {
		t.Fatalf("expected 6 words, got %d", len(out.Words))
	}
	if w := out.Words[4]; w.Text != "20" || w.Start != 1.4 || w.End != 1.4 {
		t.Fatalf("unaligned word = %+v", w)
	}
	if out.Language != "en" {
		t.Fatalf("language = %q", out.Language)
	}
	if argValue(gotArgs, "--language") != "en" {
		t.Fatalf("expected --language en, got %v", gotArgs)
	}
	if slices.Contains(gotArgs, "--no_align") {
		t.Fatal("word pass must align")
	}
}

func TestTranscribeSegmentGranularitySkipsAlignment(t *testing.T) {
	var gotArgs []string
	runner := func(_ context.Context, _ string, args ...string) ([]byte, error) {
		gotArgs = args
		dir := argValue(args, "--output_dir")
		return nil, os.WriteFile(filepath.Join(dir, "audio.json"), []byte(samplePayload), 0o644)
	}
	model := newTestModel(t, Config{}, runner)
	out, err := model.Transcribe(context.Background(), audio.PCM{SampleRate: audio.ModelSampleRate}, transcribe.Options{Granularity: transcribe.GranularitySegment}, nil)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !slices.Contains(gotArgs, "--no_align") {
		t.Fatalf("expected --no_align in %v", gotArgs)
	}
	if len(out.Words) != 0 || len(out.Segments) != 2 {
		t.Fatalf("unexpected output %+v", out)
	}
	if argValue(gotArgs, "--language") != "" {
		t.Fatal("empty language must let the model detect")
	}
}

func TestTranscribeWrapsCommandFailure(t *testing.T) {
	runner := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("CUDA out of memory"), errors.New("exit status 1")
	}
	model := newTestModel(t, Config{}, runner)
	_, err := model.Transcribe(context.Background(), audio.PCM{SampleRate: audio.ModelSampleRate}, transcribe.Options{}, nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestBuildArgsDevices(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    []string
		missing []string
	}{
		{
			name:    "cpu",
			cfg:     Config{Model: "small"},
			want:    []string{"--device", "cpu", "--compute_type", "float32", "--model", "small", "--vad_method", "silero"},
			missing: []string{"--extra-index-url", "--hf_token"},
		},
		{
			name: "cuda pyannote",
			cfg:  Config{CUDAEnabled: true, VADMethod: VADMethodPyannote, HFToken: "hf_x"},
			want: []string{"--device", "cuda", "--extra-index-url", "--hf_token", "hf_x", "--vad_method", "pyannote"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := newTestModel(t, tt.cfg, func(context.Context, string, ...string) ([]byte, error) { return nil, nil }).(*Model)
			args := model.buildArgs("/tmp/a.wav", "/tmp", transcribe.Options{})
			for _, w := range tt.want {
				if !slices.Contains(args, w) {
					t.Fatalf("expected %q in %v", w, args)
				}
			}
			for _, m := range tt.missing {
				if slices.Contains(args, m) {
					t.Fatalf("did not expect %q in %v", m, args)
				}
			}
		})
	}
}

func TestLoadFallsBackToSileroWithoutToken(t *testing.T) {
	model := newTestModel(t, Config{VADMethod: VADMethodPyannote}, func(context.Context, string, ...string) ([]byte, error) { return nil, nil }).(*Model)
	if model.cfg.VADMethod != VADMethodSilero {
		t.Fatalf("vad = %q", model.cfg.VADMethod)
	}
}

func TestLoadFailsWithoutUVX(t *testing.T) {
	loader := NewLoader(Config{}, nil).WithLookPath(func(string) (string, error) {
		return "", errors.New("not found")
	})
	if _, err := loader.Load(context.Background(), nil); err == nil {
		t.Fatal("expected error when uvx is missing")
	}
}
