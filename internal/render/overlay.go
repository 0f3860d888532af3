package render

import (
	"math"

	"github.com/fogleman/gg"

	"captioner/internal/captions"
)

// Overlay draws whichever caption is active at t, with its animation applied.
// Animation time counts from Start-bias, where the caption becomes visible.
// It is the compose step shared by the live preview and by every exported
// frame. It reports the caption it drew, if any.
func Overlay(dc *gg.Context, size Size, list []captions.Caption, t float64, style captions.Style, scale, bias float64) (captions.Caption, bool, error) {
	active, ok := captions.Active(list, t, bias)
	if !ok {
		return captions.Caption{}, false, nil
	}
	// Animations run from the moment the caption appears, which is the
	// pre-roll edge, not Start.
	shown := math.Max(active.Start-math.Max(bias, 0), 0)
	frame := Animate(style.Animation, active.Text, t-shown, active.End-shown)
	if frame.Opacity <= 0 {
		return active, true, nil
	}

	animated := style
	animated.Opacity = style.Normalize().Opacity * frame.Opacity
	renderScale := scale * frame.Scale
	if frame.OffsetY != 0 {
		dc.Push()
		defer dc.Pop()
		dc.Translate(0, frame.OffsetY*scale)
	}
	if err := Draw(dc, size, frame.Text, animated, renderScale); err != nil {
		return active, true, err
	}
	return active, true, nil
}
