package audio

import "time"

// ModelSampleRate is the sample rate the speech model requires.
const ModelSampleRate = 16000

// PCM is a mono float32 buffer in [-1, 1] at SampleRate.
type PCM struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the buffer length as wall time.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(p.Samples)) / float64(p.SampleRate) * float64(time.Second))
}

// Seconds returns the buffer length in seconds.
func (p PCM) Seconds() float64 {
	if p.SampleRate <= 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}
