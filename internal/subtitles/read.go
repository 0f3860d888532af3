package subtitles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"captioner/internal/captions"
)

var (
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
	assTagPattern  = regexp.MustCompile(`\{\\[^}]*\}`)
)

// ReadFile loads a caption document, inferring the format from the extension.
// Only JSON documents carry a style.
func ReadFile(path string) (Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Document{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open captions: %w", err)
	}
	defer file.Close()
	return Read(file, format)
}

// Read parses JSON, SRT, or WebVTT captions. The result is sorted by start.
func Read(r io.Reader, format Format) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read captions: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var doc Document
	switch format {
	case FormatJSON:
		doc, err = parseJSON(data)
	case FormatSRT, FormatVTT:
		doc.Captions, err = parseCues(string(data))
	default:
		return Document{}, fmt.Errorf("reading %s captions is not supported", format)
	}
	if err != nil {
		return Document{}, err
	}
	captions.SortByStart(doc.Captions)
	return doc, nil
}

// parseJSON accepts a Document or a bare caption array.
func parseJSON(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	var doc Document
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Captions); err != nil {
			return Document{}, fmt.Errorf("parse caption array: %w", err)
		}
	} else if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Document{}, fmt.Errorf("parse caption document: %w", err)
	}
	if doc.Version > DocumentVersion {
		return Document{}, fmt.Errorf("caption document version %d is newer than supported version %d", doc.Version, DocumentVersion)
	}
	for i := range doc.Captions {
		c := &doc.Captions[i]
		if err := c.Validate(); err != nil {
			return Document{}, fmt.Errorf("caption %d: %w", i+1, err)
		}
		if strings.TrimSpace(c.ID) == "" {
			c.ID = captions.NewID()
		}
	}
	if doc.Style != nil {
		normalized := doc.Style.Normalize()
		if err := normalized.Validate(); err != nil {
			return Document{}, fmt.Errorf("caption document style: %w", err)
		}
		doc.Style = &normalized
	}
	return doc, nil
}

// parseCues reads SRT or WebVTT cue blocks. Markup is stripped, multi-line
// cue text is joined with spaces, and cues with an empty or inverted span are
// dropped.
func parseCues(content string) ([]captions.Caption, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(content), "\n\n")
	var list []captions.Caption
	for n, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 || lines[0] == "" {
			continue
		}
		head := strings.TrimSpace(lines[0])
		if strings.HasPrefix(head, "WEBVTT") || strings.HasPrefix(head, "NOTE") ||
			strings.HasPrefix(head, "STYLE") || strings.HasPrefix(head, "REGION") {
			continue
		}
		timing := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timing = i
				break
			}
		}
		if timing < 0 {
			continue
		}
		startText, endText, _ := strings.Cut(lines[timing], "-->")
		start, err := parseTimestamp(startText)
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", n+1, err)
		}
		endFields := strings.Fields(endText)
		if len(endFields) == 0 {
			return nil, fmt.Errorf("cue %d: missing end timestamp", n+1)
		}
		end, err := parseTimestamp(endFields[0])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", n+1, err)
		}
		text := cleanCueText(lines[timing+1:])
		c := captions.Caption{ID: captions.NewID(), Text: text, Start: start, End: end}
		if c.Validate() != nil || c.Blank() {
			continue
		}
		list = append(list, c)
	}
	return list, nil
}

func cleanCueText(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = assTagPattern.ReplaceAllString(line, "")
		line = htmlTagPattern.ReplaceAllString(line, "")
		line = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&nbsp;", " ").Replace(line)
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
