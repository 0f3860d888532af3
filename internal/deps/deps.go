// Package deps locates the external binaries captioner shells out to and
// reports their versions for the status command.
package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// versionTimeout bounds a single `<binary> -version` probe.
const versionTimeout = 5 * time.Second

// Requirement defines an external binary captioner relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArgs, when set, are passed to the binary to read its version.
	VersionArgs []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Version     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves each requirement on PATH and, for the ones found,
// reads their version. A failed version probe leaves the binary available.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(ctx, req))
	}
	return results
}

func check(ctx context.Context, req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Path = path
	status.Available = true
	if len(req.VersionArgs) > 0 {
		status.Version = probeVersion(ctx, path, req.VersionArgs)
	}
	return status
}

func probeVersion(ctx context.Context, path string, args []string) string {
	probeCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, path, args...).Output() //nolint:gosec
	if err != nil {
		return ""
	}
	return ParseVersion(out)
}

// ParseVersion extracts a short version string from the first non-empty line
// of a version banner. FFmpeg-style banners ("ffmpeg version 7.1 Copyright
// ...") yield the token after "version"; other banners yield the line itself.
func ParseVersion(banner []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(banner))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		for i, field := range fields {
			if strings.EqualFold(field, "version") && i+1 < len(fields) {
				return fields[i+1]
			}
		}
		return line
	}
	return ""
}

// MissingRequired returns the names of required dependencies that are not
// available. Optional dependencies never block.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, s := range statuses {
		if s.Available || s.Optional {
			continue
		}
		missing = append(missing, s.Name)
	}
	return missing
}
