package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"captioner/internal/captions"
	"captioner/internal/config"
	"captioner/internal/subtitles"
	"captioner/internal/textutil"
)

// resolveSource expands and checks a media path argument.
func resolveSource(arg string) (string, error) {
	source := strings.TrimSpace(arg)
	if source == "" {
		return "", errors.New("source file path is required")
	}
	source, err := config.ExpandPath(source)
	if err != nil {
		return "", err
	}
	source, _ = filepath.Abs(source)
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("source file %q not found", source)
		}
		return "", fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("source path %q is a directory", source)
	}
	return source, nil
}

// siblingPath names an output next to source: clip.mp4 -> clip.<suffix>.
func siblingPath(source, suffix string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	base = textutil.SanitizeFileName(base)
	if base == "" {
		base = "captions"
	}
	return filepath.Join(filepath.Dir(source), base+"."+suffix)
}

// loadCaptionDocument reads a caption file in any readable subtitle format.
func loadCaptionDocument(path string) (subtitles.Document, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return subtitles.Document{}, errors.New("caption file path is required")
	}
	doc, err := subtitles.ReadFile(path)
	if err != nil {
		return subtitles.Document{}, fmt.Errorf("read captions: %w", err)
	}
	return doc, nil
}

// saveCaptionDocument writes doc back as a JSON caption document.
func saveCaptionDocument(path string, doc subtitles.Document) error {
	return subtitles.WriteFile(path, subtitles.FormatJSON, doc.Captions, subtitles.Options{
		Style:    doc.Style,
		Language: doc.Language,
	})
}

// segmentMode resolves --words against the configured default. A negative
// flag value means unset; 0 selects automatic segmentation.
func segmentMode(words int, cfg *config.Config) captions.Mode {
	if words < 0 {
		words = cfg.Segmentation.WordsPerCaption
	}
	if words == 0 {
		return captions.AutoMode()
	}
	return captions.FixedMode(words)
}

// resolveStyle starts from the configured style, then a caption document's
// embedded style, then a style file.
func resolveStyle(cfg *config.Config, doc *subtitles.Document, stylePath string) (captions.Style, error) {
	style := cfg.Style
	if doc != nil && doc.Style != nil {
		style = *doc.Style
	}
	if path := strings.TrimSpace(stylePath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return captions.Style{}, fmt.Errorf("read style: %w", err)
		}
		if err := toml.Unmarshal(data, &style); err != nil {
			return captions.Style{}, fmt.Errorf("parse style %s: %w", path, err)
		}
	}
	style = style.Normalize()
	if err := style.Validate(); err != nil {
		return captions.Style{}, fmt.Errorf("style: %w", err)
	}
	return style, nil
}

// parseClock accepts seconds ("62.5") or a clock value ("1:02.5",
// "00:01:02,500").
func parseClock(value string) (float64, error) {
	v := strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	if v == "" {
		return 0, errors.New("empty time value")
	}
	parts := strings.Split(v, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	total := 0.0
	for _, part := range parts {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time %q", value)
		}
		total = total*60 + n
	}
	return total, nil
}

func formatClock(seconds float64) string {
	return subtitles.VTTTimestamp(seconds)
}

// findCaption resolves a full id or a unique id prefix.
func findCaption(list []captions.Caption, ref string) (captions.Caption, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return captions.Caption{}, errors.New("caption id is required")
	}
	if n, err := strconv.Atoi(ref); err == nil && len(ref) < 4 {
		if n < 1 || n > len(list) {
			return captions.Caption{}, fmt.Errorf("caption %d out of range (only %d captions exist)", n, len(list))
		}
		return list[n-1], nil
	}
	var match captions.Caption
	count := 0
	for _, c := range list {
		if c.ID == ref {
			return c, nil
		}
		if strings.HasPrefix(c.ID, ref) {
			match = c
			count++
		}
	}
	switch count {
	case 0:
		return captions.Caption{}, fmt.Errorf("caption %q not found", ref)
	case 1:
		return match, nil
	default:
		return captions.Caption{}, fmt.Errorf("caption id prefix %q is ambiguous", ref)
	}
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
