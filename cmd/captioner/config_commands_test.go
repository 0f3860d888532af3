package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.configPath); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, env.configPath); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Transcription.APIKey = "sk-live-1234567890"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "1234567890") {
		t.Fatalf("api key leaked: %s", out)
	}
	requireContains(t, out, "sk-l****")
	requireContains(t, out, "[transcription]")
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "****"},
		{"hf_abcdefghijk", "hf_a****"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Fatalf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
