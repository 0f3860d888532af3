package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"captioner/internal/captions"
)

// ReferenceHeight is the surface height styles are authored against.
const ReferenceHeight = 720

// Fixed anchors as fractions of the surface height.
const (
	topAnchorY    = 0.12
	middleAnchorY = 0.50
	bottomAnchorY = 0.85
)

const (
	strokeSteps       = 16
	tiltSkew          = 0.3
	reflectionAlpha   = 0.35
	reflectionLength  = 0.8
	reflectionSpacing = 0.05
)

// ScaleFor returns the render scale for a surface of the given height.
func ScaleFor(height int) float64 {
	if height <= 0 {
		return 1
	}
	return float64(height) / ReferenceHeight
}

// Draw renders text onto dc using style. It has no effects beyond the pixels
// it draws: the context's transform, color, and font are restored on return.
func Draw(dc *gg.Context, size Size, text string, style captions.Style, scale float64) error {
	text = cleanText(text)
	if text == "" {
		return nil
	}
	if scale <= 0 {
		scale = 1
	}
	style = style.Normalize()
	if err := style.Validate(); err != nil {
		return err
	}
	f, err := resolveFont(style)
	if err != nil {
		return err
	}
	lay := measure(text, newFace(f, style.FontSize), style, scale)
	face := newFace(f, style.FontSize*scale)
	pal, err := newPalette(style)
	if err != nil {
		return err
	}

	ax, ay := AnchorPoint(size, style)
	dc.Push()
	defer dc.Pop()
	dc.Translate(ax, ay)
	if style.Rotation != 0 {
		dc.Rotate(gg.Radians(style.Rotation))
	}
	applyTilt(dc, style.TiltX, style.TiltY)

	g := glyphRun{lay: lay, face: face, style: style, scale: scale}
	if style.Curve == 0 && style.Background && pal.background.A > 0 {
		dc.SetColor(pal.background)
		dc.DrawRoundedRectangle(-lay.Width/2, -lay.Height/2, lay.Width, lay.Height, style.CornerRadius*scale)
		dc.Fill()
	}
	if style.Reflection {
		g.drawReflection(dc, pal)
	}
	g.drawLayers(dc, pal)
	return nil
}

// AnchorPoint returns the surface point the caption is centered on.
func AnchorPoint(size Size, style captions.Style) (float64, float64) {
	w, h := float64(size.Width), float64(size.Height)
	switch style.Position.Anchor {
	case captions.AnchorTop:
		return w / 2, h * topAnchorY
	case captions.AnchorMiddle:
		return w / 2, h * middleAnchorY
	case captions.AnchorCustom:
		return w * style.Position.X / 100, h * style.Position.Y / 100
	default:
		return w / 2, h * bottomAnchorY
	}
}

// applyTilt approximates a 3D tilt: foreshortening along the tilted axis plus
// a proportional skew.
func applyTilt(dc *gg.Context, tiltX, tiltY float64) {
	if tiltX == 0 && tiltY == 0 {
		return
	}
	rx, ry := gg.Radians(tiltX), gg.Radians(tiltY)
	dc.Scale(math.Cos(ry), math.Cos(rx))
	dc.Shear(math.Sin(ry)*tiltSkew, math.Sin(rx)*tiltSkew)
}

type palette struct {
	fill       color.NRGBA
	background color.NRGBA
	stroke     color.NRGBA
	shadow     color.NRGBA
}

func newPalette(style captions.Style) (palette, error) {
	var (
		p   palette
		err error
	)
	if p.fill, err = captions.ParseColor(style.Color); err != nil {
		return p, fmt.Errorf("color: %w", err)
	}
	if p.background, err = captions.ParseColor(style.BackgroundColor); err != nil {
		return p, fmt.Errorf("background_color: %w", err)
	}
	if p.stroke, err = captions.ParseColor(style.StrokeColor); err != nil {
		return p, fmt.Errorf("stroke_color: %w", err)
	}
	if p.shadow, err = captions.ParseColor(style.ShadowColor); err != nil {
		return p, fmt.Errorf("shadow_color: %w", err)
	}
	p.fill = withOpacity(p.fill, style.Opacity)
	p.background = withOpacity(p.background, style.Opacity)
	p.stroke = withOpacity(p.stroke, style.Opacity)
	p.shadow = withOpacity(p.shadow, style.Opacity)
	return p, nil
}

func withOpacity(c color.NRGBA, opacity float64) color.NRGBA {
	c.A = uint8(math.Round(float64(c.A) * opacity))
	return c
}

type glyphRun struct {
	lay   Layout
	face  font.Face
	style captions.Style
	scale float64
}

// drawLayers paints stroke, shadow, and fill in that order.
func (g glyphRun) drawLayers(dc *gg.Context, pal palette) {
	if sw := g.style.StrokeWidth * g.scale; sw > 0 && pal.stroke.A > 0 {
		for i := range strokeSteps {
			a := 2 * math.Pi * float64(i) / strokeSteps
			g.drawGlyphs(dc, pal.stroke, math.Cos(a)*sw, math.Sin(a)*sw)
		}
	}
	sx, sy := g.style.ShadowOffsetX*g.scale, g.style.ShadowOffsetY*g.scale
	if pal.shadow.A > 0 && (sx != 0 || sy != 0) {
		g.drawGlyphs(dc, pal.shadow, sx, sy)
	}
	g.drawGlyphs(dc, pal.fill, 0, 0)
}

// drawGlyphs places each rune by hand, honoring letter spacing, either along
// a straight baseline or along an arc when the style is curved. The run is
// centered on the origin.
func (g glyphRun) drawGlyphs(dc *gg.Context, c color.Color, dx, dy float64) {
	dc.SetColor(c)
	dc.SetFontFace(g.face)
	offsets := g.lay.runeOffsets(g.style.LetterSpacing)
	baseline := -g.lay.TextHeight()/2 + g.lay.Ascent
	start := -g.lay.TextWidth / 2

	if g.style.Curve == 0 {
		for i, r := range g.lay.Runes {
			dc.DrawString(string(r), start+offsets[i]+dx, baseline+dy)
		}
		return
	}

	radius := curveRadius(g.style.Curve, g.scale)
	sign := 1.0
	if g.style.Curve < 0 {
		sign = -1
	}
	for i, r := range g.lay.Runes {
		adv := g.lay.Advances[i] * g.scale
		theta := (start + offsets[i] + adv/2) / radius
		dc.Push()
		dc.Translate(dx, dy)
		dc.Translate(radius*math.Sin(theta), sign*(radius-radius*math.Cos(theta)))
		dc.Rotate(sign * theta)
		dc.DrawString(string(r), -adv/2, baseline)
		dc.Pop()
	}
}

// sagitta is how far the ends of a curved run drop (curve > 0) or rise
// (curve < 0) relative to its middle.
func (g glyphRun) sagitta() float64 {
	if g.style.Curve == 0 {
		return 0
	}
	radius := curveRadius(g.style.Curve, g.scale)
	theta := math.Min(g.lay.TextWidth/2/radius, math.Pi)
	return radius * (1 - math.Cos(theta))
}

// drawReflection renders the run offscreen, mirrors it below the glyph box,
// and fades it out with distance from the mirror line.
func (g glyphRun) drawReflection(dc *gg.Context, pal palette) {
	textH := g.lay.TextHeight()
	sag := g.sagitta()
	margin := (g.style.StrokeWidth+math.Max(math.Abs(g.style.ShadowOffsetX), math.Abs(g.style.ShadowOffsetY)))*g.scale + textH*0.25 + 2

	above, below := 0.0, 0.0
	if g.style.Curve < 0 {
		above = sag
	} else {
		below = sag
	}
	w := int(math.Ceil(g.lay.TextWidth + 2*margin + 2*sag))
	h := int(math.Ceil(textH + sag + 2*margin))
	if w <= 0 || h <= 0 {
		return
	}

	off := gg.NewContext(w, h)
	mid := margin + above + textH/2
	off.Translate(float64(w)/2, mid)
	g.drawLayers(off, pal)

	bottom := mid + textH/2 + below
	src, ok := off.Image().(*image.RGBA)
	if !ok {
		return
	}
	mirrored := fadeFlip(src, float64(h)-bottom, textH*reflectionLength)

	localBottom := textH/2 + below + textH*reflectionSpacing
	dc.Push()
	dc.Translate(-float64(w)/2, localBottom-(float64(h)-bottom))
	dc.DrawImage(mirrored, 0, 0)
	dc.Pop()
}

// fadeFlip returns src flipped vertically with alpha falling linearly from
// reflectionAlpha at row mirror to zero at mirror+length.
func fadeFlip(src *image.RGBA, mirror, length float64) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(b)
	h := b.Dy()
	for y := 0; y < h; y++ {
		d := float64(y) - mirror
		if d < 0 || length <= 0 {
			continue
		}
		factor := reflectionAlpha * (1 - d/length)
		if factor <= 0 {
			continue
		}
		srcRow := src.Pix[(h-1-y)*src.Stride : (h-1-y)*src.Stride+b.Dx()*4]
		dstRow := out.Pix[y*out.Stride : y*out.Stride+b.Dx()*4]
		for i, v := range srcRow {
			dstRow[i] = uint8(float64(v) * factor)
		}
	}
	return out
}
