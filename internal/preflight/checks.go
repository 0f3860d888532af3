package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"captioner/internal/config"
	"captioner/internal/deps"
)

// CheckTranscriptionAPI verifies that the OpenAI-compatible endpoint is
// reachable and accepts the key. It lists models with a single attempt.
func CheckTranscriptionAPI(ctx context.Context, baseURL, apiKey string) Result {
	const name = "Transcription API"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base url"}
	}
	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/models", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%v)", err)}
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(apiKey))

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeRequestError(err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "API reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%d)", resp.StatusCode)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// FreeBytes reports the bytes available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil //nolint:gosec
}

// CheckFreeSpace verifies that at least minBytes are available under path.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	free, err := FreeBytes(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (only %s free, need %s)", path, humanize.IBytes(free), humanize.IBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s free)", path, humanize.IBytes(free))}
}

// CheckSystemDeps evaluates all system-level dependencies for the given config.
// The CLI status command and the export path share this requirements list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	ffmpegVersion := []string{"-hide_banner", "-version"}
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for audio extraction and export",
			VersionArgs: ffmpegVersion,
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for media inspection",
			VersionArgs: ffmpegVersion,
		},
	}
	if cfg.Transcription.Backend == config.BackendWhisperX {
		requirements = append(requirements, deps.Requirement{
			Name:        "uvx",
			Command:     "uvx",
			Description: "Required for WhisperX-driven transcription",
			VersionArgs: []string{"--version"},
		})
	}
	if cfg.Export.AV1PostPass && cfg.Tools.Drapto != "" {
		requirements = append(requirements, deps.Requirement{
			Name:        "Drapto",
			Command:     cfg.Tools.Drapto,
			Description: "Runs the AV1 post-pass",
			Optional:    true,
			VersionArgs: []string{"--version"},
		})
	}
	statuses := deps.CheckBinaries(ctx, requirements)
	if cfg.Export.AV1PostPass && cfg.Tools.Drapto != "" {
		statuses = append(statuses, deps.CheckDraptoFFmpeg(ctx, cfg.Tools.Drapto))
	}
	return statuses
}

func summarizeRequestError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
