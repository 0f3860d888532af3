// Package export burns captions into a video file.
//
// Export is a second, offline playback pass over the source: ffmpeg decodes
// the video into raw RGBA frames at the target size, each frame becomes the
// capture surface for render.Overlay (the same routine the live preview
// uses), and a second ffmpeg process encodes the frames and maps the
// source's first audio track when there is one.
//
// The requested container is checked against the encoders and muxers the
// local ffmpeg reports. When it cannot be produced, the renderer falls back
// to the best supported container, fixes the output extension to match, and
// records the substitution in Result.Warnings. Only when nothing usable is
// available does Export fail with services.ErrEncoderUnsupported.
package export
