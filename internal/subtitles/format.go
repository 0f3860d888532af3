package subtitles

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies a subtitle file format.
type Format string

const (
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
	FormatASS  Format = "ass"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatTXT  Format = "txt"
)

// Formats lists every writable format.
func Formats() []Format {
	return []Format{FormatSRT, FormatVTT, FormatASS, FormatJSON, FormatCSV, FormatTXT}
}

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(value string) (Format, error) {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), ".")
	switch v {
	case "srt":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	case "ass", "ssa":
		return FormatASS, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "txt", "text":
		return FormatTXT, nil
	}
	return "", fmt.Errorf("unsupported subtitle format %q", value)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Readable reports whether Read supports the format.
func (f Format) Readable() bool {
	switch f {
	case FormatJSON, FormatSRT, FormatVTT:
		return true
	}
	return false
}
