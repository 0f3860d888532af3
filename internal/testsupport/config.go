// Package testsupport builds configs, stub binaries, and fixtures shared by
// package tests.
package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"captioner/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig returns the default config with work, cache, and log
// directories under a per-test temp dir, then applies opts.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	b := &configBuilder{t: t, baseDir: base, cfg: &cfg}
	for _, opt := range opts {
		opt(b)
	}
	return b.cfg
}

// WithBackend selects the transcription backend.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.Backend = backend
	}
}

// WithoutCache disables the transcript cache.
func WithoutCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.CacheEnabled = false
	}
}

// WithStubbedBinaries puts shell stubs for names first on PATH. Each stub
// prints an FFmpeg-style version banner and exits 0. With no names, ffmpeg,
// ffprobe, and uvx are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "uvx"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			script := fmt.Sprintf("#!/bin/sh\necho \"%s version 0.0-test\"\nexit 0\n", name)
			if err := os.WriteFile(filepath.Join(binDir, name), []byte(script), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
