package testsupport

import (
	"testing"

	"captioner/internal/config"
	"captioner/internal/transcribe/cache"
)

// MustOpenCache opens the transcript cache for tests and registers cleanup.
func MustOpenCache(t testing.TB, cfg *config.Config) *cache.Store {
	t.Helper()

	store, err := cache.Open(cfg.TranscriptCachePath())
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
