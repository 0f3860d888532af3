package subtitles

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"captioner/internal/captions"
)

// DocumentVersion is written into JSON caption documents.
const DocumentVersion = 1

// Document is the JSON caption file layout.
type Document struct {
	Version  int                `json:"version"`
	Language string             `json:"language,omitempty"`
	Style    *captions.Style    `json:"style,omitempty"`
	Captions []captions.Caption `json:"captions"`
}

// Options adjusts serialization.
type Options struct {
	// Style feeds the ASS style header and is embedded in JSON documents.
	Style *captions.Style
	// Language is recorded in JSON documents and the WebVTT header.
	Language string
	// Title names the ASS script.
	Title string
	// PlayResX and PlayResY set the ASS script resolution; zero uses 1280x720.
	PlayResX int
	PlayResY int
}

// Write serializes captions in the given format. Blank captions are omitted
// from every format except JSON and CSV, which round-trip the track as is.
func Write(w io.Writer, format Format, list []captions.Caption, opts Options) error {
	bw := bufio.NewWriter(w)
	var err error
	switch format {
	case FormatSRT:
		err = writeSRT(bw, list)
	case FormatVTT:
		err = writeVTT(bw, list, opts)
	case FormatASS:
		err = writeASS(bw, list, opts)
	case FormatJSON:
		err = writeJSON(bw, list, opts)
	case FormatCSV:
		err = writeCSV(bw, list)
	case FormatTXT:
		err = writeTXT(bw, list)
	default:
		return fmt.Errorf("unsupported subtitle format %q", format)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile writes captions to path atomically.
func WriteFile(path string, format Format, list []captions.Caption, opts Options) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := Write(tmp, format, list, opts); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", format, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename subtitle file: %w", err)
	}
	return nil
}

func visible(list []captions.Caption) []captions.Caption {
	out := make([]captions.Caption, 0, len(list))
	for _, c := range list {
		if !c.Blank() {
			out = append(out, c)
		}
	}
	return out
}

func writeSRT(w io.Writer, list []captions.Caption) error {
	for i, c := range visible(list) {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n", i+1, SRTTimestamp(c.Start), SRTTimestamp(c.End), strings.TrimSpace(c.Text)); err != nil {
			return err
		}
	}
	return nil
}

func writeVTT(w io.Writer, list []captions.Caption, opts Options) error {
	header := "WEBVTT\n"
	if opts.Language != "" {
		header += "Language: " + opts.Language + "\n"
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	for _, c := range visible(list) {
		if _, err := fmt.Fprintf(w, "\n%s --> %s\n%s\n", VTTTimestamp(c.Start), VTTTimestamp(c.End), escapeVTT(strings.TrimSpace(c.Text))); err != nil {
			return err
		}
	}
	return nil
}

var vttEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeVTT(text string) string {
	return vttEscaper.Replace(text)
}

func writeJSON(w io.Writer, list []captions.Caption, opts Options) error {
	doc := Document{Version: DocumentVersion, Language: opts.Language, Style: opts.Style, Captions: list}
	if doc.Captions == nil {
		doc.Captions = []captions.Caption{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeCSV(w io.Writer, list []captions.Caption) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "start", "end", "text"}); err != nil {
		return err
	}
	for _, c := range list {
		record := []string{
			c.ID,
			strconv.FormatFloat(c.Start, 'f', 3, 64),
			strconv.FormatFloat(c.End, 'f', 3, 64),
			c.Text,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTXT(w io.Writer, list []captions.Caption) error {
	for _, c := range visible(list) {
		if _, err := fmt.Fprintln(w, strings.TrimSpace(c.Text)); err != nil {
			return err
		}
	}
	return nil
}
