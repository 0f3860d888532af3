package captions

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	autoTargetWords    = 3
	pauseThreshold     = 0.3
	emphasisRuneLength = 8
	terminalMarks      = ".!?,;:"
)

// Mode selects the segmentation policy. WordsPerCaption > 0 is the fixed
// policy; 0 selects automatic pause and emphasis sensing.
type Mode struct {
	WordsPerCaption int
}

// FixedMode closes captions every n words.
func FixedMode(n int) Mode {
	if n < 1 {
		n = 1
	}
	return Mode{WordsPerCaption: n}
}

// AutoMode closes captions on pauses, emphasis, and punctuation.
func AutoMode() Mode {
	return Mode{}
}

// Auto reports whether the automatic policy is selected.
func (m Mode) Auto() bool {
	return m.WordsPerCaption <= 0
}

func (m Mode) String() string {
	if m.Auto() {
		return "auto"
	}
	return "fixed"
}

// Segment groups word tokens into captions. It is a pure function: identical
// input yields identical output, including caption ids.
func Segment(tokens []WordToken, mode Mode) []Caption {
	clean := make([]WordToken, 0, len(tokens))
	for _, tok := range tokens {
		text := strings.TrimSpace(tok.Text)
		if text == "" {
			continue
		}
		tok.Text = text
		clean = append(clean, tok)
	}
	if len(clean) == 0 {
		return nil
	}

	auto := mode.Auto()
	target := mode.WordsPerCaption
	if auto {
		target = autoTargetWords
	}
	upper := cases.Upper(language.Und)

	out := make([]Caption, 0, len(clean)/target+1)
	group := make([]WordToken, 0, target)
	flush := func() {
		if len(group) == 0 {
			return
		}
		out = append(out, buildCaption(group))
		group = group[:0]
	}

	for i, tok := range clean {
		if auto && i > 0 && len(group) > 0 && tok.Start-clean[i-1].End > pauseThreshold {
			flush()
		}
		group = append(group, tok)

		switch {
		case len(group) >= target, i == len(clean)-1:
			flush()
		case endsWithTerminal(tok.Text) && containsWord(group):
			flush()
		case auto && isEmphasis(tok.Text, upper):
			flush()
		}
	}

	SortByStart(out)
	for i := range out {
		out[i].ID = deterministicID(i, out[i])
	}
	return out
}

func buildCaption(group []WordToken) Caption {
	parts := make([]string, len(group))
	for i, tok := range group {
		parts[i] = tok.Text
	}
	start := roundCentis(group[0].Start)
	if start < 0 {
		start = 0
	}
	end := roundCentis(group[len(group)-1].End)
	if end-start < MinSpan-spanEpsilon {
		end = roundCentis(start + MinSpan)
	}
	return Caption{
		Text:  strings.Join(parts, " "),
		Start: start,
		End:   end,
	}
}

// MeetsMinSpan reports whether a caption covers at least MinSpan seconds,
// allowing for centisecond rounding.
func MeetsMinSpan(c Caption) bool {
	return c.End-c.Start >= MinSpan-spanEpsilon
}

func endsWithTerminal(text string) bool {
	r, _ := utf8.DecodeLastRuneInString(text)
	return r != utf8.RuneError && strings.ContainsRune(terminalMarks, r)
}

func containsWord(group []WordToken) bool {
	for _, tok := range group {
		for _, r := range tok.Text {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return true
			}
		}
	}
	return false
}

// isEmphasis flags unusually long or fully capitalized tokens.
func isEmphasis(text string, upper cases.Caser) bool {
	if utf8.RuneCountInString(text) > emphasisRuneLength {
		return true
	}
	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 2 && upper.String(text) == text
}
