package export

import (
	"context"
	"errors"
	"image"
	"io"
	"strings"

	"github.com/fogleman/gg"

	"captioner/internal/captions"
	"captioner/internal/render"
	"captioner/internal/services"
)

// StillJob describes a single preview frame.
type StillJob struct {
	Source   string
	At       float64
	Quality  int
	Captions []captions.Caption
	Style    captions.Style
	Bias     float64
}

// Still decodes the source frame at job.At and draws the caption visible at
// that time over it, using the same overlay path as Export.
func (r *Renderer) Still(ctx context.Context, job StillJob) (*image.RGBA, captions.Caption, bool, error) {
	if strings.TrimSpace(job.Source) == "" {
		return nil, captions.Caption{}, false, services.Wrap(services.ErrValidation, "export", "still", "source path is required", nil)
	}
	style := job.Style.Normalize()
	if err := style.Validate(); err != nil {
		return nil, captions.Caption{}, false, services.Wrap(services.ErrValidation, "export", "validate style", "", err)
	}

	info, err := r.probe(ctx, r.ffprobe, job.Source)
	if err != nil {
		return nil, captions.Caption{}, false, services.Wrap(services.ErrDecode, "export", "probe source", job.Source, err)
	}
	video, ok := info.VideoStream()
	if !ok {
		return nil, captions.Caption{}, false, services.Wrap(services.ErrDecode, "export", "probe source", "no video stream", nil)
	}
	width, height := TargetSize(video.Width, video.Height, job.Quality)
	if width == 0 {
		return nil, captions.Caption{}, false, services.Wrap(services.ErrDecode, "export", "probe source", "unknown frame size", nil)
	}
	at := job.At
	if duration := info.DurationSeconds(); duration > 0 && at > duration {
		at = duration
	}
	if at < 0 {
		at = 0
	}

	src, err := r.openSource(ctx, SourceSpec{
		FFmpeg: r.ffmpeg,
		Path:   job.Source,
		Width:  width,
		Height: height,
		FPS:    frameRate(video.FrameRate(), FormatMP4),
		Start:  at,
	})
	if err != nil {
		return nil, captions.Caption{}, false, services.Wrap(services.ErrDecode, "export", "open decoder", job.Source, err)
	}
	defer src.Close()

	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	if err := src.Next(frame); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, captions.Caption{}, false, services.Wrap(services.ErrDecode, "export", "decode frame", "no frame at requested time", nil)
		}
		return nil, captions.Caption{}, false, services.Wrap(services.ErrDecode, "export", "decode frame", job.Source, err)
	}

	list := job.Captions
	if !captions.IsSorted(list) {
		list = append([]captions.Caption(nil), list...)
		captions.SortByStart(list)
	}
	dc := gg.NewContextForRGBA(frame)
	active, visible, err := render.Overlay(dc, render.Size{Width: width, Height: height}, list, at, style, render.ScaleFor(height), job.Bias)
	if err != nil {
		return nil, captions.Caption{}, false, services.Wrap(services.ErrValidation, "export", "draw caption", "", err)
	}
	return frame, active, visible, nil
}
