package whisperx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"captioner/internal/captions"
	"captioner/internal/transcribe"
)

// Word represents a single word with timing from WhisperX output. Start and
// End are absent for tokens the aligner could not place (numerals, symbols).
type Word struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

// Payload is the JSON structure from WhisperX output.
type Payload struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

// LoadPayload loads a WhisperX JSON file.
func LoadPayload(jsonPath string) (Payload, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Payload{}, err
	}
	return ParsePayload(data)
}

// ParsePayload decodes WhisperX JSON output.
func ParsePayload(data []byte) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload, nil
}

// Output converts the payload for the engine. Word tokens are only produced
// for word granularity.
func (p Payload) Output(granularity transcribe.Granularity) transcribe.Output {
	out := transcribe.Output{Language: p.Language}
	var parts []string
	for _, seg := range p.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		out.Segments = append(out.Segments, transcribe.Segment{Text: text, Start: seg.Start, End: seg.End})
		if granularity == transcribe.GranularityWord {
			out.Words = append(out.Words, segmentWords(seg)...)
		}
	}
	out.Text = strings.Join(parts, " ")
	return out
}

// segmentWords converts aligned words, placing unaligned ones at the end of
// the previous word (or the segment start) with zero length.
func segmentWords(seg Segment) []captions.WordToken {
	tokens := make([]captions.WordToken, 0, len(seg.Words))
	cursor := seg.Start
	for _, w := range seg.Words {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		start, end := cursor, cursor
		if w.Start != nil {
			start = *w.Start
		}
		if w.End != nil {
			end = *w.End
		}
		if end < start {
			end = start
		}
		tokens = append(tokens, captions.WordToken{Text: text, Start: start, End: end})
		cursor = end
	}
	return tokens
}
