package render

import (
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"captioner/internal/captions"
)

// Size is a surface size in pixels.
type Size struct {
	Width  int
	Height int
}

// Layout is the measured box of a caption at a given scale.
type Layout struct {
	// Advances holds each rune's advance at the reference font size.
	Advances []float64
	Runes    []rune
	// TextWidth includes letter spacing between runes.
	TextWidth float64
	Ascent    float64
	Descent   float64
	// Width and Height include the background padding.
	Width  float64
	Height float64
	scale  float64
}

// TextHeight is ascent plus descent.
func (l Layout) TextHeight() float64 {
	return l.Ascent + l.Descent
}

// Measure computes the layout box for text. Advances and metrics come from
// the reference font size and are then multiplied by scale, so the box at
// scale 2 is exactly twice the box at scale 1.
func Measure(text string, style captions.Style, scale float64) (Layout, error) {
	style = style.Normalize()
	f, err := resolveFont(style)
	if err != nil {
		return Layout{}, err
	}
	return measure(cleanText(text), newFace(f, style.FontSize), style, scale), nil
}

func measure(text string, refFace font.Face, style captions.Style, scale float64) Layout {
	if scale <= 0 {
		scale = 1
	}
	runes := []rune(text)
	advances := make([]float64, len(runes))
	fallback, _ := refFace.GlyphAdvance('?')
	width := 0.0
	for i, r := range runes {
		adv, ok := refFace.GlyphAdvance(r)
		if !ok {
			adv = fallback
		}
		advances[i] = fixedToFloat(adv)
		width += advances[i]
	}
	if len(runes) > 1 {
		width += style.LetterSpacing * float64(len(runes)-1)
	}
	metrics := refFace.Metrics()
	ascent := fixedToFloat(metrics.Ascent)
	descent := fixedToFloat(metrics.Descent)

	return Layout{
		Advances:  advances,
		Runes:     runes,
		TextWidth: width * scale,
		Ascent:    ascent * scale,
		Descent:   descent * scale,
		Width:     (width + 2*style.Padding) * scale,
		Height:    (ascent + descent + 2*style.Padding) * scale,
		scale:     scale,
	}
}

// runeOffsets returns each rune's left edge relative to the start of the run,
// scaled.
func (l Layout) runeOffsets(letterSpacing float64) []float64 {
	offsets := make([]float64, len(l.Advances))
	x := 0.0
	for i, adv := range l.Advances {
		offsets[i] = x * l.scale
		x += adv + letterSpacing
	}
	return offsets
}

// cleanText collapses whitespace runs, including newlines, to single spaces.
func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func curveRadius(curve, scale float64) float64 {
	if curve == 0 {
		return math.Inf(1)
	}
	return 5000 / math.Abs(curve) * scale
}
