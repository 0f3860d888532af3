package drapto

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// EventType classifies a progress update.
type EventType string

const (
	EventTypeUnknown           EventType = ""
	EventTypeHardware          EventType = "hardware"
	EventTypeInitialization    EventType = "initialization"
	EventTypeStageProgress     EventType = "stage_progress"
	EventTypeEncodingConfig    EventType = "encoding_config"
	EventTypeEncodingStarted   EventType = "encoding_started"
	EventTypeEncodingProgress  EventType = "encoding_progress"
	EventTypeValidation        EventType = "validation_complete"
	EventTypeEncodingComplete  EventType = "encoding_complete"
	EventTypeOperationComplete EventType = "operation_complete"
	EventTypeWarning           EventType = "warning"
	EventTypeError             EventType = "error"
)

// ProgressUpdate captures Drapto progress events.
type ProgressUpdate struct {
	Type      EventType
	Timestamp time.Time
	Percent   float64
	Stage     string
	Message   string
	ETA       time.Duration
	Speed     float64
	FPS       float64
	Bitrate   string
	// OutputPath is set on encoding_complete events.
	OutputPath string
}

// Client defines Drapto encoding behaviour.
type Client interface {
	Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithPreset sets the SVT-AV1 preset passed to drapto.
func WithPreset(preset int) Option {
	return func(c *CLI) {
		if preset > 0 {
			c.preset = preset
		}
	}
}

// CLI wraps the drapto command-line encoder.
type CLI struct {
	binary string
	preset int
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "drapto"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Encode launches drapto encode and returns the output path.
func (c *CLI) Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error) {
	outputPath, err := outputPathFor(inputPath, outputDir)
	if err != nil {
		return "", err
	}

	args := []string{"encode", "--input", inputPath, "--output", filepath.Dir(outputPath), "--responsive", "--progress-json"}
	if c.preset > 0 {
		args = append(args, "--preset", fmt.Sprint(c.preset))
	}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start drapto: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		update, ok := parseProgressLine(scanner.Bytes())
		if !ok || progress == nil {
			continue
		}
		progress(update)
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return "", fmt.Errorf("read drapto output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("drapto encode failed: %w: %s", err, msg)
		}
		return "", fmt.Errorf("drapto encode failed: %w", err)
	}

	return outputPath, nil
}

func parseProgressLine(line []byte) (ProgressUpdate, bool) {
	var payload struct {
		Type       string  `json:"type"`
		Percent    float64 `json:"percent"`
		Stage      string  `json:"stage"`
		Message    string  `json:"message"`
		ETASeconds float64 `json:"eta_seconds"`
		Speed      float64 `json:"speed"`
		FPS        float64 `json:"fps"`
		Bitrate    string  `json:"bitrate"`
		OutputPath string  `json:"output_path"`
	}
	if err := json.Unmarshal(line, &payload); err != nil {
		return ProgressUpdate{}, false
	}
	return ProgressUpdate{
		Type:       EventType(payload.Type),
		Timestamp:  time.Now(),
		Percent:    payload.Percent,
		Stage:      payload.Stage,
		Message:    payload.Message,
		ETA:        time.Duration(payload.ETASeconds * float64(time.Second)),
		Speed:      payload.Speed,
		FPS:        payload.FPS,
		Bitrate:    payload.Bitrate,
		OutputPath: payload.OutputPath,
	}, true
}

// outputPathFor mirrors drapto's naming: <outputDir>/<input stem>.mkv.
func outputPathFor(inputPath, outputDir string) (string, error) {
	if strings.TrimSpace(inputPath) == "" {
		return "", errors.New("input path required")
	}
	cleanOutputDir := strings.TrimSpace(outputDir)
	if cleanOutputDir == "" {
		return "", errors.New("output directory required")
	}
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(cleanOutputDir, stem+".mkv"), nil
}

var _ Client = (*CLI)(nil)
