package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captioner/internal/captions"
	"captioner/internal/config"
	"captioner/internal/subtitles"
	"captioner/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	configPath := filepath.Join(homeDir, ".config", "captioner", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// writeCaptionDoc writes list as a JSON caption document and returns its path.
func writeCaptionDoc(t *testing.T, dir string, list []captions.Caption) string {
	t.Helper()
	path := filepath.Join(dir, "clip.captions.json")
	if err := subtitles.WriteFile(path, subtitles.FormatJSON, list, subtitles.Options{Language: "en"}); err != nil {
		t.Fatalf("write captions: %v", err)
	}
	return path
}

func readCaptionDoc(t *testing.T, path string) []captions.Caption {
	t.Helper()
	doc, err := subtitles.ReadFile(path)
	if err != nil {
		t.Fatalf("read captions: %v", err)
	}
	return doc.Captions
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
