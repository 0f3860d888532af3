// Package subtitles serializes caption tracks to sidecar subtitle formats and
// reads JSON, SRT, and WebVTT files back into captions.
//
// Supported writers: SRT (HH:MM:SS,mmm), WebVTT (HH:MM:SS.mmm), ASS
// (H:MM:SS.cc, with a style header derived from the caption style), JSON, CSV,
// and plain text.
package subtitles
