package subtitles

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"
	"strings"

	"captioner/internal/captions"
)

const (
	defaultPlayResX = 1280
	defaultPlayResY = 720
	// styleReferenceHeight is the surface height caption styles are authored for.
	styleReferenceHeight = 720.0
	assFadeMillis        = 250
)

var assTextEscaper = strings.NewReplacer("\r\n", `\N`, "\n", `\N`, "{", "(", "}", ")")

func writeASS(w io.Writer, list []captions.Caption, opts Options) error {
	style := captions.DefaultStyle()
	if opts.Style != nil {
		style = opts.Style.Normalize()
	}
	resX, resY := opts.PlayResX, opts.PlayResY
	if resX <= 0 || resY <= 0 {
		resX, resY = defaultPlayResX, defaultPlayResY
	}
	title := opts.Title
	if title == "" {
		title = "captioner"
	}

	var b strings.Builder
	b.WriteString("[Script Info]\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	b.WriteString("ScriptType: v4.00+\n")
	b.WriteString("WrapStyle: 2\n")
	b.WriteString("ScaledBorderAndShadow: yes\n")
	fmt.Fprintf(&b, "PlayResX: %d\nPlayResY: %d\n\n", resX, resY)

	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	b.WriteString(assStyleLine(style, resY))
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	prefix := assOverrides(style, resX, resY)
	for _, c := range visible(list) {
		text := assTextEscaper.Replace(strings.TrimSpace(c.Text))
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s%s\n", ASSTimestamp(c.Start), ASSTimestamp(c.End), prefix, text)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func assStyleLine(style captions.Style, resY int) string {
	k := float64(resY) / styleReferenceHeight
	primary, _ := captions.ParseColor(style.Color)
	stroke, _ := captions.ParseColor(style.StrokeColor)
	back, _ := captions.ParseColor(style.ShadowColor)

	borderStyle := 1
	outline := style.StrokeWidth * k
	if style.Background {
		// BorderStyle 3 draws an opaque box in OutlineColour sized by Outline.
		borderStyle = 3
		stroke, _ = captions.ParseColor(style.BackgroundColor)
		outline = style.Padding * k
	}
	shadow := math.Max(math.Abs(style.ShadowOffsetX), math.Abs(style.ShadowOffsetY)) * k

	return fmt.Sprintf("Style: Default,%s,%d,%s,%s,%s,%s,%d,%d,0,0,100,100,%s,%s,%d,%s,%s,%d,20,20,%d,1\n",
		assFontName(style),
		int(math.Round(style.FontSize*k)),
		assColor(primary, style.Opacity),
		assColor(primary, style.Opacity),
		assColor(stroke, style.Opacity),
		assColor(back, style.Opacity),
		assBool(style.FontWeight >= 600),
		assBool(style.Italic),
		trimFloat(style.LetterSpacing*k),
		trimFloat(-style.Rotation),
		borderStyle,
		trimFloat(outline),
		trimFloat(shadow),
		assAlignment(style.Position.Anchor),
		int(math.Round(float64(resY)*0.05)),
	)
}

// assOverrides returns inline tags for style features the style line cannot
// express: custom positions and fades.
func assOverrides(style captions.Style, resX, resY int) string {
	var tags []string
	if style.Position.Anchor == captions.AnchorCustom {
		x := math.Round(float64(resX) * style.Position.X / 100)
		y := math.Round(float64(resY) * style.Position.Y / 100)
		tags = append(tags, fmt.Sprintf(`\an5\pos(%d,%d)`, int(x), int(y)))
	}
	if style.Animation == captions.AnimationFade {
		tags = append(tags, fmt.Sprintf(`\fad(%d,%d)`, assFadeMillis, assFadeMillis))
	}
	if len(tags) == 0 {
		return ""
	}
	return "{" + strings.Join(tags, "") + "}"
}

func assFontName(style captions.Style) string {
	if style.FontFile != "" {
		return strings.TrimSuffix(filepath.Base(style.FontFile), filepath.Ext(style.FontFile))
	}
	switch style.FontFamily {
	case "go-mono", "mono", "monospace":
		return "Go Mono"
	case "go-smallcaps", "smallcaps":
		return "Go Smallcaps"
	case "go", "sans", "sans-serif":
		return "Go"
	}
	return style.FontFamily
}

// assColor encodes &HAABBGGRR, where AA is transparency (00 is opaque).
func assColor(c color.NRGBA, opacity float64) string {
	alpha := uint8(math.Round(float64(c.A) * opacity))
	return fmt.Sprintf("&H%02X%02X%02X%02X", 255-alpha, c.B, c.G, c.R)
}

func assAlignment(anchor captions.Anchor) int {
	switch anchor {
	case captions.AnchorTop:
		return 8
	case captions.AnchorMiddle, captions.AnchorCustom:
		return 5
	default:
		return 2
	}
}

func assBool(v bool) int {
	if v {
		return -1
	}
	return 0
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}
