package preflight

import (
	"context"

	"captioner/internal/config"
)

// MinWorkSpaceBytes is the free space the work directory needs for
// temporary audio and intermediate renders.
const MinWorkSpaceBytes = 512 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, MinWorkSpaceBytes),
	}

	if cfg.Transcription.Backend == config.BackendOpenAI {
		results = append(results, CheckTranscriptionAPI(ctx, cfg.Transcription.BaseURL, cfg.Transcription.APIKey))
	}
	return results
}
