package testsupport

import "captioner/internal/captions"

// Words builds back-to-back word tokens starting at start, each lasting
// step seconds.
func Words(start, step float64, words ...string) []captions.WordToken {
	tokens := make([]captions.WordToken, 0, len(words))
	at := start
	for _, w := range words {
		tokens = append(tokens, captions.WordToken{Text: w, Start: at, End: at + step})
		at += step
	}
	return tokens
}
