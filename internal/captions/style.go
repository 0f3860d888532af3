package captions

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Anchor names a fixed caption position or the custom percentage position.
type Anchor string

const (
	AnchorTop    Anchor = "top"
	AnchorMiddle Anchor = "middle"
	AnchorBottom Anchor = "bottom"
	AnchorCustom Anchor = "custom"
)

// Animation names the entrance animation applied to a caption.
type Animation string

const (
	AnimationNone       Animation = "none"
	AnimationFade       Animation = "fade"
	AnimationPop        Animation = "pop"
	AnimationSlide      Animation = "slide"
	AnimationTypewriter Animation = "typewriter"
)

const (
	MinFontSize = 8.0
	MaxFontSize = 400.0
	maxTilt     = 80.0
)

// Position is a fixed anchor or, with AnchorCustom, X/Y percentages of the
// surface size.
type Position struct {
	Anchor Anchor  `toml:"anchor" json:"anchor"`
	X      float64 `toml:"x" json:"x"`
	Y      float64 `toml:"y" json:"y"`
}

// Style describes how a caption is drawn. It holds no reference fields, so a
// copy never aliases the session's style. Sizes are authored against a
// 720-pixel-high reference surface.
type Style struct {
	FontFamily      string    `toml:"font_family" json:"fontFamily"`
	FontFile        string    `toml:"font_file" json:"fontFile,omitempty"`
	FontSize        float64   `toml:"font_size" json:"fontSize"`
	FontWeight      int       `toml:"font_weight" json:"fontWeight"`
	Italic          bool      `toml:"italic" json:"italic"`
	Color           string    `toml:"color" json:"color"`
	Background      bool      `toml:"background" json:"background"`
	BackgroundColor string    `toml:"background_color" json:"backgroundColor"`
	Position        Position  `toml:"position" json:"position"`
	Padding         float64   `toml:"padding" json:"padding"`
	CornerRadius    float64   `toml:"corner_radius" json:"cornerRadius"`
	StrokeColor     string    `toml:"stroke_color" json:"strokeColor"`
	StrokeWidth     float64   `toml:"stroke_width" json:"strokeWidth"`
	ShadowColor     string    `toml:"shadow_color" json:"shadowColor"`
	ShadowOffsetX   float64   `toml:"shadow_offset_x" json:"shadowOffsetX"`
	ShadowOffsetY   float64   `toml:"shadow_offset_y" json:"shadowOffsetY"`
	LetterSpacing   float64   `toml:"letter_spacing" json:"letterSpacing"`
	Rotation        float64   `toml:"rotation" json:"rotation"`
	Opacity         float64   `toml:"opacity" json:"opacity"`
	TiltX           float64   `toml:"tilt_x" json:"tiltX"`
	TiltY           float64   `toml:"tilt_y" json:"tiltY"`
	Curve           float64   `toml:"curve" json:"curve"`
	Reflection      bool      `toml:"reflection" json:"reflection"`
	Animation       Animation `toml:"animation" json:"animation"`
}

// DefaultStyle returns the style new sessions start with.
func DefaultStyle() Style {
	return Style{
		FontFamily:      "go",
		FontSize:        48,
		FontWeight:      700,
		Color:           "#FFFFFF",
		Background:      true,
		BackgroundColor: "#000000B3",
		Position:        Position{Anchor: AnchorBottom, X: 50, Y: 85},
		Padding:         12,
		CornerRadius:    8,
		StrokeColor:     "#000000",
		StrokeWidth:     0,
		ShadowColor:     "#00000080",
		ShadowOffsetX:   2,
		ShadowOffsetY:   2,
		Opacity:         1,
		Animation:       AnimationNone,
	}
}

// Normalize trims and canonicalizes fields, filling blanks with defaults.
func (s Style) Normalize() Style {
	def := DefaultStyle()
	s.FontFamily = strings.ToLower(strings.TrimSpace(s.FontFamily))
	if s.FontFamily == "" {
		s.FontFamily = def.FontFamily
	}
	s.FontFile = strings.TrimSpace(s.FontFile)
	if s.FontSize <= 0 {
		s.FontSize = def.FontSize
	}
	s.FontSize = clamp(s.FontSize, MinFontSize, MaxFontSize)
	if s.FontWeight <= 0 {
		s.FontWeight = 400
	}
	s.Color = normalizeHex(s.Color, def.Color)
	s.BackgroundColor = normalizeHex(s.BackgroundColor, def.BackgroundColor)
	s.StrokeColor = normalizeHex(s.StrokeColor, def.StrokeColor)
	s.ShadowColor = normalizeHex(s.ShadowColor, def.ShadowColor)
	s.Position.Anchor = Anchor(strings.ToLower(strings.TrimSpace(string(s.Position.Anchor))))
	if s.Position.Anchor == "" {
		s.Position.Anchor = AnchorBottom
	}
	s.Position.X = clamp(s.Position.X, 0, 100)
	s.Position.Y = clamp(s.Position.Y, 0, 100)
	s.Padding = math.Max(0, s.Padding)
	s.CornerRadius = math.Max(0, s.CornerRadius)
	s.StrokeWidth = math.Max(0, s.StrokeWidth)
	s.Opacity = clamp(s.Opacity, 0, 1)
	s.Animation = Animation(strings.ToLower(strings.TrimSpace(string(s.Animation))))
	if s.Animation == "" {
		s.Animation = AnimationNone
	}
	return s
}

// Validate reports fields the renderer cannot honor.
func (s Style) Validate() error {
	switch s.Position.Anchor {
	case AnchorTop, AnchorMiddle, AnchorBottom, AnchorCustom:
	default:
		return fmt.Errorf("position.anchor: unsupported value %q", s.Position.Anchor)
	}
	switch s.Animation {
	case AnimationNone, AnimationFade, AnimationPop, AnimationSlide, AnimationTypewriter:
	default:
		return fmt.Errorf("animation: unsupported value %q", s.Animation)
	}
	for name, value := range map[string]string{
		"color":            s.Color,
		"background_color": s.BackgroundColor,
		"stroke_color":     s.StrokeColor,
		"shadow_color":     s.ShadowColor,
	} {
		if _, err := ParseColor(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if math.Abs(s.TiltX) > maxTilt || math.Abs(s.TiltY) > maxTilt {
		return fmt.Errorf("tilt must be within ±%.0f degrees", maxTilt)
	}
	if s.FontSize < MinFontSize || s.FontSize > MaxFontSize {
		return fmt.Errorf("font_size must be between %.0f and %.0f", MinFontSize, MaxFontSize)
	}
	return nil
}

// WithCustomPosition returns a copy anchored at x%/y% of the surface, as a drag
// of the overlay does.
func (s Style) WithCustomPosition(x, y float64) Style {
	s.Position = Position{Anchor: AnchorCustom, X: clamp(x, 0, 100), Y: clamp(y, 0, 100)}
	return s
}

// WithFontSize returns a copy with the font size clamped to the supported range.
func (s Style) WithFontSize(size float64) Style {
	s.FontSize = clamp(size, MinFontSize, MaxFontSize)
	return s
}

// ParseColor decodes #RGB, #RRGGBB, or #RRGGBBAA.
func ParseColor(value string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "FF"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, errors.New("color must be #RGB, #RRGGBB, or #RRGGBBAA")
	}
	raw, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", value)
	}
	return color.NRGBA{
		R: uint8(raw >> 24),
		G: uint8(raw >> 16),
		B: uint8(raw >> 8),
		A: uint8(raw),
	}, nil
}

func normalizeHex(value, fallback string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	if !strings.HasPrefix(value, "#") {
		value = "#" + value
	}
	return value
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}
