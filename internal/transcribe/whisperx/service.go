package whisperx

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	langpkg "captioner/internal/language"
	"captioner/internal/logging"
	"captioner/internal/media/audio"
	"captioner/internal/progress"
	"captioner/internal/services"
	"captioner/internal/transcribe"
)

// CommandRunner executes a subprocess and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Loader prepares a WhisperX Model.
type Loader struct {
	cfg      Config
	logger   *slog.Logger
	lookPath func(string) (string, error)
	runner   CommandRunner
}

// NewLoader creates a loader for the given configuration.
func NewLoader(cfg Config, logger *slog.Logger) *Loader {
	if cfg.UVXBinary == "" {
		cfg.UVXBinary = UVXCommand
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.VADMethod == "" {
		cfg.VADMethod = VADMethodSilero
	}
	return &Loader{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "whisperx"),
		lookPath: exec.LookPath,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (l *Loader) WithCommandRunner(runner CommandRunner) *Loader {
	l.runner = runner
	return l
}

// WithLookPath overrides executable discovery (for testing).
func (l *Loader) WithLookPath(fn func(string) (string, error)) *Loader {
	l.lookPath = fn
	return l
}

// Load verifies that uvx can be found and returns the model.
func (l *Loader) Load(ctx context.Context, report progress.Func) (transcribe.Model, error) {
	report.Emit(progress.PhaseLoading, 0)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.runner == nil {
		if _, err := l.lookPath(l.cfg.UVXBinary); err != nil {
			return nil, fmt.Errorf("locate %s: %w", l.cfg.UVXBinary, err)
		}
	}
	cfg := l.cfg
	if cfg.VADMethod == VADMethodPyannote && cfg.HFToken == "" {
		l.logger.Warn("pyannote VAD requires a Hugging Face token; using silero",
			logging.String(logging.FieldEventType, "vad_fallback"),
			logging.String(logging.FieldErrorHint, "set transcription.hf_token or HF_TOKEN"),
			logging.String(logging.FieldImpact, "voice activity detection uses silero"),
		)
		cfg.VADMethod = VADMethodSilero
	}
	report.Emit(progress.PhaseLoading, 100)
	return &Model{cfg: cfg, logger: l.logger, runner: l.runner}, nil
}

// Model transcribes PCM buffers through a WhisperX subprocess.
type Model struct {
	cfg    Config
	logger *slog.Logger
	runner CommandRunner
}

// Name returns the model identifier used for cache keys.
func (m *Model) Name() string {
	return "whisperx/" + m.cfg.Model
}

// Transcribe writes pcm to a WAV file, runs WhisperX on it, and parses the
// JSON output. Segment granularity skips the alignment model.
func (m *Model) Transcribe(ctx context.Context, pcm audio.PCM, opts transcribe.Options, report progress.Func) (transcribe.Output, error) {
	workDir, err := os.MkdirTemp(m.cfg.WorkDir, "whisperx-")
	if err != nil {
		return transcribe.Output{}, fmt.Errorf("whisperx: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	source := filepath.Join(workDir, "audio.wav")
	if err := writeWAVFile(source, pcm); err != nil {
		return transcribe.Output{}, err
	}
	report.Emit(progress.PhaseTranscribing, 5)

	args := m.buildArgs(source, workDir, opts)
	m.logger.Debug("running whisperx",
		logging.String("model", m.cfg.Model),
		logging.String("granularity", string(opts.Granularity)),
		logging.Bool("cuda", m.cfg.CUDAEnabled),
	)
	if err := m.run(ctx, m.cfg.UVXBinary, args...); err != nil {
		return transcribe.Output{}, services.Wrap(services.ErrExternalTool, "transcribing", "whisperx", "WhisperX failed", err)
	}
	report.Emit(progress.PhaseTranscribing, 95)

	payload, err := LoadPayload(filepath.Join(workDir, "audio.json"))
	if err != nil {
		return transcribe.Output{}, fmt.Errorf("whisperx: %w", err)
	}
	out := payload.Output(opts.Granularity)
	report.Emit(progress.PhaseTranscribing, 100)
	return out, nil
}

func writeWAVFile(path string, pcm audio.PCM) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("whisperx: create wav: %w", err)
	}
	w := bufio.NewWriter(file)
	if err := audio.WriteWAV(w, pcm); err != nil {
		file.Close()
		return fmt.Errorf("whisperx: write wav: %w", err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("whisperx: write wav: %w", err)
	}
	return file.Close()
}

// run executes a command, using the custom runner if set.
func (m *Model) run(ctx context.Context, name string, args ...string) error {
	if m.runner != nil {
		output, err := m.runner(ctx, name, args...)
		if err != nil {
			return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
		}
		return nil
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (m *Model) buildArgs(source, outputDir string, opts transcribe.Options) []string {
	args := make([]string, 0, 40)

	if m.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", m.cfg.Model,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--best_of", BestOf,
		"--temperature", Temperature,
		"--patience", Patience,
	)
	if opts.Granularity == transcribe.GranularitySegment {
		args = append(args, "--no_align")
	}

	args = append(args, "--vad_method", m.cfg.VADMethod)
	if m.cfg.VADMethod == VADMethodPyannote && m.cfg.HFToken != "" {
		args = append(args, "--hf_token", m.cfg.HFToken)
	}

	if lang := langpkg.ToISO2(opts.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if m.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}
