package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"captioner/internal/deps"
	"captioner/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("FFmpeg", statusError, "not found", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "FFmpeg:", "[ERROR] not found")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("FFmpeg", statusOK, "Ready", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Command: "ffmpeg", Version: "7.1", Available: true},
		{Name: "FFprobe", Command: "ffprobe", Available: false, Detail: "binary \"ffprobe\" not found"},
		{Name: "Drapto", Available: false, Optional: true},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[OK] Ready (command: ffmpeg), version 7.1") {
		t.Fatalf("expected ready line first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] binary \"ffprobe\" not found") {
		t.Fatalf("expected error detail, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[WARN] not available") {
		t.Fatalf("expected optional warning, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "Missing dependencies:") || !strings.Contains(lines[3], "FFprobe") || strings.Contains(lines[3], "Drapto") {
		t.Fatalf("expected required-only summary, got %q", lines[3])
	}
}

func TestCheckLines(t *testing.T) {
	lines := checkLines([]preflight.Result{
		{Name: "Work directory", Passed: true, Detail: "/tmp/work"},
		{Name: "Free space", Passed: false, Detail: "need 512 MiB"},
	}, false)
	if !strings.Contains(lines[0], "[OK] /tmp/work") || !strings.Contains(lines[1], "[ERROR] need 512 MiB") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	// Free space on the test host is outside the test's control, so a
	// failed check is acceptable as long as it is reported.
	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil && !strings.Contains(err.Error(), "status check(s) failed") {
		t.Fatalf("status: %v\n%s", err, out)
	}
	for _, want := range []string{"== Dependencies ==", "FFmpeg", "FFprobe", "== Checks ==", "Backend:"} {
		requireContains(t, out, want)
	}
}
