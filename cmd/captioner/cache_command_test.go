package main

import (
	"context"
	"testing"

	"captioner/internal/testsupport"
)

func TestCacheCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"cache", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	requireContains(t, out, "Transcript cache is empty")

	store := testsupport.MustOpenCache(t, env.cfg)
	if err := store.Store(context.Background(), "f00dcafe1234", transcribeResult([]string{"hello", "world"})); err != nil {
		t.Fatalf("store: %v", err)
	}
	_ = store.Close()

	out, _, err = runCLI(t, []string{"cache", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	for _, want := range []string{"f00dcafe", "large-v3", "en", "1 transcripts"} {
		requireContains(t, out, want)
	}

	out, _, err = runCLI(t, []string{"cache", "prune", "--older-than", "1h"}, env.configPath)
	if err != nil {
		t.Fatalf("cache prune: %v", err)
	}
	requireContains(t, out, "No cache entries pruned")

	out, _, err = runCLI(t, []string{"cache", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Transcript cache cleared")

	out, _, err = runCLI(t, []string{"cache", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	requireContains(t, out, "No cached transcripts")
}
