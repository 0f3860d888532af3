package export

import "math"

const (
	defaultFPS = 30.0
	maxFPS     = 60.0
	gifFPS     = 15.0
)

// TargetSize scales the source to the requested height, preserving aspect
// ratio. A quality of 0 keeps the source height. Both dimensions are even,
// as yuv420p encoders require.
func TargetSize(srcWidth, srcHeight, quality int) (int, int) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return 0, 0
	}
	height := srcHeight
	if quality > 0 {
		height = quality
	}
	width := int(math.Round(float64(srcWidth) * float64(height) / float64(srcHeight)))
	return even(width), even(height)
}

func even(v int) int {
	v -= v % 2
	if v < 2 {
		return 2
	}
	return v
}

// frameRate picks the export frame rate from the source rate.
func frameRate(source float64, format Format) float64 {
	fps := source
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = defaultFPS
	}
	if fps > maxFPS {
		fps = maxFPS
	}
	if format == FormatGIF && fps > gifFPS {
		fps = gifFPS
	}
	return fps
}
