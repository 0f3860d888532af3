package export

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"captioner/internal/services"
)

// Format is an exportable video container.
type Format string

const (
	FormatWebM Format = "webm"
	FormatMP4  Format = "mp4"
	FormatMOV  Format = "mov"
	FormatAVI  Format = "avi"
	FormatMKV  Format = "mkv"
	FormatGIF  Format = "gif"
)

// Formats lists the containers in display order.
func Formats() []Format {
	return []Format{FormatWebM, FormatMP4, FormatMOV, FormatAVI, FormatMKV, FormatGIF}
}

// ParseFormat accepts a container name or extension.
func ParseFormat(value string) (Format, error) {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), ".")
	switch v {
	case "matroska":
		return FormatMKV, nil
	case "quicktime":
		return FormatMOV, nil
	}
	for _, f := range Formats() {
		if string(f) == v {
			return f, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "export", "parse format", fmt.Sprintf("unknown format %q", value), nil)
}

// fallbackOrder is tried when the requested container cannot be produced.
var fallbackOrder = []Format{FormatMP4, FormatWebM, FormatMKV}

type container struct {
	muxer  string
	video  []string
	audio  []string
	pixFmt string
}

var containers = map[Format]container{
	FormatWebM: {muxer: "webm", video: []string{"libvpx-vp9", "libvpx"}, audio: []string{"libopus", "libvorbis"}, pixFmt: "yuv420p"},
	FormatMP4:  {muxer: "mp4", video: []string{"libx264", "libopenh264", "mpeg4"}, audio: []string{"aac"}, pixFmt: "yuv420p"},
	FormatMOV:  {muxer: "mov", video: []string{"libx264", "mpeg4"}, audio: []string{"aac"}, pixFmt: "yuv420p"},
	FormatAVI:  {muxer: "avi", video: []string{"mpeg4", "mjpeg"}, audio: []string{"libmp3lame", "pcm_s16le"}, pixFmt: "yuv420p"},
	FormatMKV:  {muxer: "matroska", video: []string{"libx264", "libvpx-vp9", "mpeg4"}, audio: []string{"aac", "libopus"}, pixFmt: "yuv420p"},
	FormatGIF:  {muxer: "gif", video: []string{"gif"}},
}

// Capabilities lists the encoders and muxers the local ffmpeg supports.
type Capabilities struct {
	Encoders map[string]bool
	Muxers   map[string]bool
}

// ProbeFunc reports encoder capabilities for an ffmpeg binary.
type ProbeFunc func(ctx context.Context, ffmpeg string) (Capabilities, error)

// ProbeCapabilities runs `ffmpeg -encoders` and `ffmpeg -muxers`.
func ProbeCapabilities(ctx context.Context, ffmpeg string) (Capabilities, error) {
	encoders, err := exec.CommandContext(ctx, ffmpeg, "-hide_banner", "-encoders").Output() //nolint:gosec
	if err != nil {
		return Capabilities{}, services.Wrap(services.ErrExternalTool, "export", "probe encoders", ffmpeg, err)
	}
	muxers, err := exec.CommandContext(ctx, ffmpeg, "-hide_banner", "-muxers").Output() //nolint:gosec
	if err != nil {
		return Capabilities{}, services.Wrap(services.ErrExternalTool, "export", "probe muxers", ffmpeg, err)
	}
	return ParseCapabilities(encoders, muxers), nil
}

// ParseCapabilities reads the listings printed by `ffmpeg -encoders` and
// `ffmpeg -muxers`. Entries follow a dashed separator line; each is a flag
// column followed by one or more comma-separated names.
func ParseCapabilities(encoders, muxers []byte) Capabilities {
	return Capabilities{
		Encoders: parseListing(encoders, ""),
		Muxers:   parseListing(muxers, "E"),
	}
}

func parseListing(data []byte, requireFlag string) map[string]bool {
	out := make(map[string]bool)
	started := false
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !started {
			if strings.HasPrefix(line, "--") {
				started = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if requireFlag != "" && !strings.Contains(fields[0], requireFlag) {
			continue
		}
		for _, name := range strings.Split(fields[1], ",") {
			if name != "" {
				out[name] = true
			}
		}
	}
	return out
}

// Plan is the resolved encoder setup for one export.
type Plan struct {
	Requested    Format
	Format       Format
	Muxer        string
	VideoEncoder string
	// AudioEncoder is empty when no audio encoder for the container is
	// available; the export is then silent.
	AudioEncoder string
	PixFmt       string
	// Fallback is set when Format differs from Requested.
	Fallback bool
}

// Extension returns the file extension matching the resolved container.
func (p Plan) Extension() string {
	return "." + string(p.Format)
}

// Resolve picks the encoders for requested, falling back through mp4, webm,
// and mkv when the requested container cannot be produced.
func Resolve(requested Format, caps Capabilities) (Plan, error) {
	if plan, ok := planFor(requested, caps); ok {
		plan.Requested = requested
		return plan, nil
	}
	for _, f := range fallbackOrder {
		if f == requested {
			continue
		}
		if plan, ok := planFor(f, caps); ok {
			plan.Requested = requested
			plan.Fallback = true
			return plan, nil
		}
	}
	return Plan{}, services.Wrap(services.ErrEncoderUnsupported, "export", "resolve encoder", fmt.Sprintf("no encoder for %s or any fallback container", requested), nil)
}

func planFor(f Format, caps Capabilities) (Plan, bool) {
	c, ok := containers[f]
	if !ok || !caps.Muxers[c.muxer] {
		return Plan{}, false
	}
	video := firstSupported(c.video, caps.Encoders)
	if video == "" {
		return Plan{}, false
	}
	return Plan{
		Format:       f,
		Muxer:        c.muxer,
		VideoEncoder: video,
		AudioEncoder: firstSupported(c.audio, caps.Encoders),
		PixFmt:       c.pixFmt,
	}, true
}

func firstSupported(candidates []string, available map[string]bool) string {
	for _, name := range candidates {
		if available[name] {
			return name
		}
	}
	return ""
}

// withExtension replaces path's extension with the plan's container extension.
func withExtension(path string, plan Plan) string {
	ext := filepath.Ext(path)
	if strings.EqualFold(ext, plan.Extension()) {
		return path
	}
	return strings.TrimSuffix(path, ext) + plan.Extension()
}
