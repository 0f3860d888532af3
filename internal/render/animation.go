package render

import (
	"math"

	"captioner/internal/captions"
)

// Frame is the per-frame adjustment an animation applies to a caption.
type Frame struct {
	Text    string
	Opacity float64
	// Scale multiplies the render scale.
	Scale float64
	// OffsetY is a vertical shift at the reference size.
	OffsetY float64
}

const (
	fadeSeconds      = 0.25
	popSeconds       = 0.2
	popStart         = 0.6
	slideSeconds     = 0.3
	slideDistance    = 40.0
	typewriterRate   = 0.05
	typewriterBudget = 0.7
)

// Animate returns the frame for a caption that has been visible for elapsed
// seconds out of duration. It depends only on its arguments.
func Animate(kind captions.Animation, text string, elapsed, duration float64) Frame {
	frame := Frame{Text: text, Opacity: 1, Scale: 1}
	if elapsed < 0 {
		elapsed = 0
	}
	switch kind {
	case captions.AnimationFade:
		in := unit(elapsed / fadeSeconds)
		out := 1.0
		if duration > 2*fadeSeconds {
			out = unit((duration - elapsed) / fadeSeconds)
		}
		frame.Opacity = math.Min(in, out)
	case captions.AnimationPop:
		p := unit(elapsed / popSeconds)
		frame.Scale = popStart + (1-popStart)*easeOutBack(p)
		frame.Opacity = unit(p * 2)
	case captions.AnimationSlide:
		p := easeOutCubic(unit(elapsed / slideSeconds))
		frame.OffsetY = (1 - p) * slideDistance
		frame.Opacity = p
	case captions.AnimationTypewriter:
		runes := []rune(text)
		if len(runes) == 0 {
			break
		}
		perRune := typewriterRate
		if duration > 0 {
			perRune = math.Min(perRune, duration*typewriterBudget/float64(len(runes)))
		}
		visible := len(runes)
		if perRune > 0 {
			visible = min(len(runes), int(elapsed/perRune)+1)
		}
		frame.Text = string(runes[:visible])
	}
	return frame
}

func unit(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func easeOutCubic(p float64) float64 {
	q := 1 - p
	return 1 - q*q*q
}

func easeOutBack(p float64) float64 {
	const c1 = 1.70158
	const c3 = c1 + 1
	q := p - 1
	return 1 + c3*q*q*q + c1*q*q
}
