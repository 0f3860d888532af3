package audio

import (
	"context"
	"fmt"
	"math"
	"runtime"
)

const (
	// ChunkFrames is the number of frames mixed between yield checks.
	ChunkFrames = 16384
	// YieldEvery is the number of chunks processed before yielding.
	YieldEvery = 5
)

// YieldFunc is called between chunk batches. Returning an error stops the mix.
type YieldFunc func(ctx context.Context) error

// DefaultYield hands the processor to other goroutines and reports
// cancellation.
func DefaultYield(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
}

// MixToMono averages interleaved channels into one channel, yielding every
// YieldEvery chunks of ChunkFrames frames. A nil yield uses DefaultYield.
func MixToMono(ctx context.Context, interleaved []float32, channels int, yield YieldFunc) ([]float32, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("mix to mono: invalid channel count %d", channels)
	}
	if yield == nil {
		yield = DefaultYield
	}
	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	if channels == 1 {
		copy(mono, interleaved[:frames])
		return mono, nil
	}

	inv := 1 / float32(channels)
	chunks := 0
	for start := 0; start < frames; start += ChunkFrames {
		end := min(start+ChunkFrames, frames)
		for i := start; i < end; i++ {
			var sum float32
			base := i * channels
			for c := 0; c < channels; c++ {
				sum += interleaved[base+c]
			}
			mono[i] = sum * inv
		}
		chunks++
		if chunks%YieldEvery == 0 && end < frames {
			if err := yield(ctx); err != nil {
				return nil, err
			}
		}
	}
	return mono, nil
}

// Resample converts samples between rates by linear interpolation. Identical
// rates return a copy.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate <= 0 || toRate <= 0 || len(samples) == 0 {
		return nil
	}
	if fromRate == toRate {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	ratio := float64(fromRate) / float64(toRate)
	n := int(math.Round(float64(len(samples)) / ratio))
	out := make([]float32, n)
	last := len(samples) - 1
	for i := range out {
		src := float64(i) * ratio
		lo := int(src)
		if lo >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(src - float64(lo))
		out[i] = samples[lo]*(1-frac) + samples[lo+1]*frac
	}
	return out
}
