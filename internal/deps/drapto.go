package deps

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckDraptoFFmpeg reports the ffmpeg a drapto executable runs during the
// AV1 post-pass. drapto prefers an ffmpeg installed next to it, then PATH.
func CheckDraptoFFmpeg(ctx context.Context, draptoCommand string) Status {
	req := Requirement{
		Name:        "FFmpeg (drapto)",
		Command:     "ffmpeg",
		Description: "Used by drapto for the AV1 post-pass",
		VersionArgs: []string{"-hide_banner", "-version"},
	}
	if sidecar := draptoSidecar(draptoCommand); sidecar != "" {
		req.Command = sidecar
	}
	return check(ctx, req)
}

func draptoSidecar(draptoCommand string) string {
	draptoCommand = strings.TrimSpace(draptoCommand)
	if draptoCommand == "" {
		return ""
	}
	resolved, err := exec.LookPath(draptoCommand)
	if err != nil {
		return ""
	}
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	candidate := filepath.Join(filepath.Dir(resolved), name)
	info, err := os.Stat(candidate)
	if err != nil || info.IsDir() {
		return ""
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return ""
	}
	return candidate
}
