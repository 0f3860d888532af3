package textutil

import (
	"strings"
	"unicode"
)

// fileNameReplacer maps characters that break paths on common filesystems.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName makes name safe to use as a single path segment.
// Separators become dashes, other unsafe characters and control runes are
// dropped, and runs of whitespace collapse to one space. Leading dots are
// stripped so the result never names a hidden file.
func SanitizeFileName(name string) string {
	name = fileNameReplacer.Replace(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")
	return strings.TrimLeft(name, ".")
}
