package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

func attrString(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

// formatValueForKey applies friendlier formatting based on the key name.
func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()
	switch {
	case v.Kind() == slog.KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	case isPercentKey(key) && v.Kind() == slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', 1, 64) + "%"
	case strings.HasSuffix(key, "_seconds") && v.Kind() == slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', 2, 64) + "s"
	case v.Kind() == slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	}
	value := formatValue(v)
	if key == "error" && len(value) > 200 {
		value = value[:200] + "…"
	}
	return value
}

func isPercentKey(key string) bool {
	return key == FieldProgressPercent || strings.HasSuffix(key, "_percent")
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().In(time.Local).Format(logTimestampLayout)
	}
	s := attrString(v)
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r < ' ' || r == '"' {
			return true
		}
	}
	return false
}
