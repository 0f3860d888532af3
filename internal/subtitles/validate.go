package subtitles

import (
	"fmt"

	"captioner/internal/captions"
)

// durationTolerance is how far past the video end a caption may run before
// it is flagged.
const durationTolerance = 1.0

// Validate checks a caption track for issues worth surfacing before export.
// An empty result means validation passed. videoSeconds of 0 skips the
// duration check.
func Validate(list []captions.Caption, videoSeconds float64) []string {
	var issues []string
	if len(list) == 0 {
		return append(issues, "empty_caption_track")
	}
	if !captions.IsSorted(list) {
		issues = append(issues, "unsorted_captions")
	}
	for i, c := range list {
		if err := c.Validate(); err != nil {
			issues = append(issues, fmt.Sprintf("invalid_span: caption %d: %v", i+1, err))
		}
		if c.Blank() {
			issues = append(issues, fmt.Sprintf("blank_caption: caption %d", i+1))
		}
		if i > 0 && list[i-1].End > c.Start {
			issues = append(issues, fmt.Sprintf("overlap: captions %d and %d", i, i+1))
		}
	}
	if videoSeconds > 0 {
		last := list[len(list)-1].End
		for _, c := range list {
			last = max(last, c.End)
		}
		if delta := last - videoSeconds; delta > durationTolerance {
			issues = append(issues, fmt.Sprintf("beyond_video_end: delta=%.1fs", delta))
		}
	}
	return issues
}
