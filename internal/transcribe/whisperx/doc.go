// Package whisperx runs the WhisperX speech model as a uvx subprocess.
//
// The model reads a 16 kHz mono WAV written from the in-memory PCM buffer and
// writes JSON with per-segment word timings, which are converted into caption
// word tokens. Loading verifies that uvx is available; the first transcription
// also pays the package download cost, which uvx caches afterwards.
package whisperx
