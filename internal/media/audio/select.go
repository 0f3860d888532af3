package audio

import (
	"strings"

	"captioner/internal/media/ffprobe"
)

// SelectPrimary picks the stream to transcribe. Streams in the preferred
// language win, then default-flagged streams, then the most channels, then
// container order. It reports false when there is no audio stream.
func SelectPrimary(streams []ffprobe.Stream, preferredLanguage string) (ffprobe.Stream, bool) {
	preferredLanguage = strings.ToLower(strings.TrimSpace(preferredLanguage))
	var (
		best      ffprobe.Stream
		bestScore = -1
		found     bool
	)
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		score := scoreStream(stream, preferredLanguage)
		if !found || score > bestScore {
			best, bestScore, found = stream, score, true
		}
	}
	return best, found
}

func scoreStream(stream ffprobe.Stream, preferredLanguage string) int {
	score := 0
	if preferredLanguage != "" && strings.HasPrefix(stream.Language(), preferredLanguage) {
		score += 10000
	}
	if stream.Disposition["default"] == 1 {
		score += 1000
	}
	if stream.Disposition["comment"] == 1 || stream.Disposition["visual_impaired"] == 1 {
		score -= 500
	}
	channels := stream.Channels
	if channels > 8 {
		channels = 8
	}
	return score + channels*10
}
