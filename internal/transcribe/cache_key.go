package transcribe

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"

	"captioner/internal/media/audio"
)

// Cache persists finished results keyed by audio content and model settings.
type Cache interface {
	Lookup(ctx context.Context, key string) (Result, bool, error)
	Store(ctx context.Context, key string, result Result) error
}

// CacheKey hashes the PCM samples together with the model, language, and
// granularity that produced a result.
func CacheKey(pcm audio.PCM, model, language string, granularity Granularity) string {
	h := sha256.New()
	buf := make([]byte, 0, 64*1024)
	for _, s := range pcm.Samples {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(s))
		if len(buf) == cap(buf) {
			h.Write(buf)
			buf = buf[:0]
		}
	}
	h.Write(buf)
	h.Write([]byte("|" + strconv.Itoa(pcm.SampleRate) + "|" + model + "|" + language + "|" + string(granularity)))
	return hex.EncodeToString(h.Sum(nil))
}
