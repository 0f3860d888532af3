// Package audio turns a video's audio track into the mono PCM buffer the
// speech model consumes.
//
// Extractor probes the container, picks the primary audio stream, decodes it
// fully through ffmpeg, down-mixes to mono with cooperative yields between
// chunks, and resamples to ModelSampleRate by linear interpolation.
// WriteWAV encodes a buffer for subprocess backends that read files.
package audio
