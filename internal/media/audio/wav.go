package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// WriteWAV encodes a mono buffer as 16-bit PCM WAV.
func WriteWAV(w io.Writer, pcm PCM) error {
	if pcm.SampleRate <= 0 {
		return errors.New("write wav: invalid sample rate")
	}
	const (
		channels      = 1
		bitsPerSample = 16
	)
	dataSize := uint32(len(pcm.Samples) * bitsPerSample / 8)
	header := struct {
		RIFF          [4]byte
		ChunkSize     uint32
		WAVE          [4]byte
		FMT           [4]byte
		FmtSize       uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		DATA          [4]byte
		DataSize      uint32
	}{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		FMT:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(pcm.SampleRate),
		ByteRate:      uint32(pcm.SampleRate * channels * bitsPerSample / 8),
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		DATA:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      dataSize,
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	buf := make([]byte, 2*len(pcm.Samples))
	for i, s := range pcm.Samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(math.Round(v*math.MaxInt16))))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// decodeF32LE converts little-endian float32 bytes into samples.
func decodeF32LE(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out
}
