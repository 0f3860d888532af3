package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// formatClock renders seconds as hours:minutes:seconds plus a fraction with
// fracDigits digits separated by sep. hourDigits pads the hour field.
func formatClock(seconds float64, hourDigits int, sep string, fracDigits int) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	unit := math.Pow10(fracDigits)
	total := int64(math.Round(seconds * unit))
	frac := total % int64(unit)
	whole := total / int64(unit)
	h := whole / 3600
	m := (whole % 3600) / 60
	s := whole % 60
	return fmt.Sprintf("%0*d:%02d:%02d%s%0*d", hourDigits, h, m, s, sep, fracDigits, frac)
}

// SRTTimestamp formats HH:MM:SS,mmm.
func SRTTimestamp(seconds float64) string {
	return formatClock(seconds, 2, ",", 3)
}

// VTTTimestamp formats HH:MM:SS.mmm.
func VTTTimestamp(seconds float64) string {
	return formatClock(seconds, 2, ".", 3)
}

// ASSTimestamp formats H:MM:SS.cc.
func ASSTimestamp(seconds float64) string {
	return formatClock(seconds, 1, ".", 2)
}

// parseTimestamp accepts SRT and WebVTT cue times, including the WebVTT
// short form MM:SS.mmm.
func parseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ",", ".")
	main, fraction, _ := strings.Cut(value, ".")
	parts := strings.Split(main, ":")
	if len(parts) == 2 {
		parts = append([]string{"0"}, parts...)
	}
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(parts[0])
	minutes, errM := strconv.Atoi(parts[1])
	seconds, errS := strconv.Atoi(parts[2])
	if errH != nil || errM != nil || errS != nil || minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	frac := 0.0
	if fraction != "" {
		digits, err := strconv.Atoi(fraction)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		frac = float64(digits) / math.Pow10(len(fraction))
	}
	return float64(hours*3600+minutes*60+seconds) + frac, nil
}
