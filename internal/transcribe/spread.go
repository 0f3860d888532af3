package transcribe

import (
	"strings"

	"captioner/internal/captions"
)

// SpreadSegments turns coarse segments into evenly timed word tokens.
func SpreadSegments(segments []Segment) []captions.WordToken {
	var tokens []captions.WordToken
	for _, seg := range segments {
		words := strings.Fields(seg.Text)
		if len(words) == 0 {
			continue
		}
		span := seg.End - seg.Start
		if span < 0 {
			span = 0
		}
		step := span / float64(len(words))
		for i, word := range words {
			tokens = append(tokens, captions.WordToken{
				Text:  word,
				Start: seg.Start + float64(i)*step,
				End:   seg.Start + float64(i+1)*step,
			})
		}
	}
	return tokens
}

func joinTokens(tokens []captions.WordToken) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if text := strings.TrimSpace(tok.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
