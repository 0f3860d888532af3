package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// bibliographic ISO 639-2/B codes that BCP 47 does not accept.
var bibliographic = map[string]string{
	"fre": "fr",
	"ger": "de",
	"chi": "zh",
	"dut": "nl",
	"cze": "cs",
	"gre": "el",
	"per": "fa",
	"rum": "ro",
	"slo": "sk",
}

var namer = display.English.Languages()

// Base parses a code, tag, or English language name and returns its base
// language. It reports false for empty or unrecognized input.
func Base(code string) (language.Base, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == "auto" || code == "und" {
		return language.Base{}, false
	}
	if mapped, ok := bibliographic[code]; ok {
		code = mapped
	}
	if tag, err := language.Parse(code); err == nil {
		base, conf := tag.Base()
		if conf != language.No {
			return base, true
		}
	}
	if tag, ok := byName(code); ok {
		base, _ := tag.Base()
		return base, true
	}
	return language.Base{}, false
}

// ToISO2 converts any recognized language code or name to ISO 639-1 when one
// exists, or the shortest ISO 639 code otherwise. Unrecognized input returns
// an empty string.
func ToISO2(code string) string {
	base, ok := Base(code)
	if !ok {
		return ""
	}
	return base.String()
}

// ToISO3 converts any recognized language code to ISO 639-2/T. Unrecognized
// input returns "und".
func ToISO3(code string) string {
	base, ok := Base(code)
	if !ok {
		return "und"
	}
	return base.ISO3()
}

// DisplayName returns the English name of a language, "Auto-detect" for
// empty input, or the uppercased code when unrecognized.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" || strings.EqualFold(trimmed, "auto") {
		return "Auto-detect"
	}
	base, ok := Base(trimmed)
	if !ok {
		return strings.ToUpper(trimmed)
	}
	if name := namer.Name(language.Make(base.String())); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}

// commonNames covers languages a user is likely to type out in full.
var commonNames = []language.Tag{
	language.English, language.Spanish, language.French, language.German,
	language.Italian, language.Portuguese, language.Japanese, language.Korean,
	language.Chinese, language.Russian, language.Arabic, language.Hindi,
	language.Dutch, language.Polish, language.Swedish, language.Danish,
	language.Norwegian, language.Finnish, language.Turkish, language.Ukrainian,
}

func byName(name string) (language.Tag, bool) {
	for _, tag := range commonNames {
		if strings.EqualFold(namer.Name(tag), name) {
			return tag, true
		}
	}
	return language.Und, false
}
