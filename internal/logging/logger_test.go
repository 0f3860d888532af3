package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/services"
)

func newFileLogger(t *testing.T, format, level string) (*slog.Logger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{
		Format:      format,
		Level:       level,
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return logger, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	if !strings.Contains(readLog(t, filepath.Join(cfg.Paths.LogDir, "captioner.log")), "hello from config") {
		t.Fatal("expected message in captioner.log")
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")
	logger.Info("message without caller")
	if content := readLog(t, path); strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logger, path := newFileLogger(t, "console", "debug")
	logger.Info("message with caller")
	if content := readLog(t, path); !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")
	logger = logging.NewComponentLogger(logger, "export")
	logger.Info("export finished",
		logging.String("output", "/tmp/out.mp4"),
		logging.Float64(logging.FieldProgressPercent, 100),
		logging.Bool("fallback", false),
	)

	content := readLog(t, path)
	for _, want := range []string{"INFO [export]", "– export finished", "    - Output: /tmp/out.mp4", "    - Progress: 100.0%", "    - Fallback: no"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
	if strings.Contains(content, "\x1b[") {
		t.Fatalf("file output must not contain color codes: %q", content)
	}
}

func TestNewJSONLogger(t *testing.T) {
	logger, path := newFileLogger(t, "json", "info")
	logger.Info("json message", logging.String("k", "v"))

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace([]byte(readLog(t, path))), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["msg"] != "json message" || entry["level"] != "info" || entry["k"] != "v" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logger, path := newFileLogger(t, "console", "invalid")
	logger.Debug("hidden")
	logger.Info("shown")
	content := readLog(t, path)
	if strings.Contains(content, "hidden") || !strings.Contains(content, "shown") {
		t.Fatalf("expected info level, got %q", content)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "0a1b2c3d-4e5f")
	ctx = services.WithPhase(ctx, "transcribing")
	ctx = services.WithRequestID(ctx, "req-xyz")

	logger, path := newFileLogger(t, "json", "info")
	logging.WithContext(ctx, logger).Info("contextual log")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace([]byte(readLog(t, path))), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry[logging.FieldJobID] != "0a1b2c3d-4e5f" {
		t.Fatalf("job id missing: %v", entry)
	}
	if entry[logging.FieldPhase] != "transcribing" {
		t.Fatalf("phase missing: %v", entry)
	}
	if entry[logging.FieldCorrelationID] != "req-xyz" {
		t.Fatalf("correlation id missing: %v", entry)
	}
}

func TestConsoleSubjectShowsJobAndPhase(t *testing.T) {
	ctx := services.WithPhase(services.WithJobID(context.Background(), "0a1b2c3d-4e5f"), "exporting")
	logger, path := newFileLogger(t, "console", "info")
	logging.WithContext(ctx, logger).Info("frame batch")
	if content := readLog(t, path); !strings.Contains(content, "Job 0a1b2c3d (exporting) – frame batch") {
		t.Fatalf("unexpected subject in %q", content)
	}
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	logger, path := newFileLogger(t, "json", "info")
	logging.WarnWithContext(logger, "fell back", "export_format_fallback", logging.String(logging.FieldImpact, "output is webm"))

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace([]byte(readLog(t, path))), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry[logging.FieldEventType] != "export_format_fallback" || entry[logging.FieldImpact] != "output is webm" || entry[logging.FieldErrorHint] == nil {
		t.Fatalf("unexpected warn entry %v", entry)
	}
}
