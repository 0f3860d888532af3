package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// FrameSource yields decoded video frames in presentation order.
type FrameSource interface {
	// Next fills frame with the next picture. It returns io.EOF after the
	// last frame.
	Next(frame *image.RGBA) error
	Close() error
}

// FrameSink encodes frames into the output container.
type FrameSink interface {
	WriteFrame(frame *image.RGBA) error
	// Close finalizes the container so the file is playable.
	Close() error
	// Abort stops encoding without finalizing.
	Abort() error
}

// SourceSpec describes how to decode the source video.
type SourceSpec struct {
	FFmpeg string
	Path   string
	Width  int
	Height int
	FPS    float64
	// Start seeks the decoder before the first frame, in seconds.
	Start float64
}

// SinkSpec describes the encoder output.
type SinkSpec struct {
	FFmpeg      string
	Output      string
	Plan        Plan
	Width       int
	Height      int
	FPS         float64
	BitrateKbps int
	// AudioSource is the file whose first audio track is muxed; empty for
	// a silent export.
	AudioSource string
}

// SourceOpener starts a FrameSource.
type SourceOpener func(ctx context.Context, spec SourceSpec) (FrameSource, error)

// SinkOpener starts a FrameSink.
type SinkOpener func(ctx context.Context, spec SinkSpec) (FrameSink, error)

func formatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

func sourceArgs(spec SourceSpec) []string {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
	}
	if spec.Start > 0 {
		args = append(args, "-ss", strconv.FormatFloat(spec.Start, 'f', 3, 64))
	}
	return append(args,
		"-i", spec.Path,
		"-map", "0:v:0",
		"-an",
		"-sn",
		"-vf", fmt.Sprintf("fps=%s,scale=%d:%d:flags=bicubic", formatFPS(spec.FPS), spec.Width, spec.Height),
		"-pix_fmt", "rgba",
		"-f", "rawvideo",
		"pipe:1",
	)
}

func sinkArgs(spec SinkSpec) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-r", formatFPS(spec.FPS),
		"-i", "pipe:0",
	}
	audio := spec.AudioSource != "" && spec.Plan.AudioEncoder != ""
	if audio {
		args = append(args, "-i", spec.AudioSource)
	}

	if spec.Plan.Format == FormatGIF {
		args = append(args,
			"-filter_complex", "[0:v]split[a][b];[a]palettegen[p];[b][p]paletteuse",
			"-f", spec.Plan.Muxer,
			spec.Output,
		)
		return args
	}

	args = append(args, "-map", "0:v:0")
	if audio {
		args = append(args, "-map", "1:a:0?", "-c:a", spec.Plan.AudioEncoder, "-b:a", "160k", "-shortest")
	}
	args = append(args, "-c:v", spec.Plan.VideoEncoder)
	if spec.BitrateKbps > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", spec.BitrateKbps))
	}
	if spec.Plan.PixFmt != "" {
		args = append(args, "-pix_fmt", spec.Plan.PixFmt)
	}
	if spec.Plan.Format == FormatMP4 || spec.Plan.Format == FormatMOV {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, "-f", spec.Plan.Muxer, spec.Output)
	return args
}

// OpenFFmpegSource decodes spec.Path into RGBA frames on ffmpeg's stdout.
// Cancelling ctx kills the decoder.
func OpenFFmpegSource(ctx context.Context, spec SourceSpec) (FrameSource, error) {
	cmd := exec.CommandContext(ctx, spec.FFmpeg, sourceArgs(spec)...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	src := &ffmpegSource{cmd: cmd, stdout: stdout, frameBytes: spec.Width * spec.Height * 4}
	cmd.Stderr = &src.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg decoder: %w", err)
	}
	return src, nil
}

type ffmpegSource struct {
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	stderr     bytes.Buffer
	frameBytes int
	once       sync.Once
	closeErr   error
}

func (s *ffmpegSource) Next(frame *image.RGBA) error {
	if len(frame.Pix) != s.frameBytes {
		return fmt.Errorf("frame buffer is %d bytes, decoder produces %d", len(frame.Pix), s.frameBytes)
	}
	_, err := io.ReadFull(s.stdout, frame.Pix)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if werr := s.Close(); werr != nil {
			return werr
		}
		return io.EOF
	default:
		return fmt.Errorf("read frame: %w", err)
	}
}

func (s *ffmpegSource) Close() error {
	s.once.Do(func() {
		_ = s.stdout.Close()
		if err := s.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			// A decoder killed by the closed pipe is expected when the
			// caller stops early.
			if errors.As(err, &exitErr) && strings.TrimSpace(s.stderr.String()) == "" {
				return
			}
			s.closeErr = fmt.Errorf("ffmpeg decoder: %w: %s", err, strings.TrimSpace(s.stderr.String()))
		}
	})
	return s.closeErr
}

// OpenFFmpegSink encodes frames written to ffmpeg's stdin. The encoder is
// not bound to ctx: stopping an export must still finalize the container,
// which happens in Close.
func OpenFFmpegSink(_ context.Context, spec SinkSpec) (FrameSink, error) {
	cmd := exec.Command(spec.FFmpeg, sinkArgs(spec)...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	sink := &ffmpegSink{cmd: cmd, stdin: stdin}
	cmd.Stderr = &sink.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg encoder: %w", err)
	}
	return sink, nil
}

type ffmpegSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	once   sync.Once
	err    error
}

func (s *ffmpegSink) WriteFrame(frame *image.RGBA) error {
	if _, err := s.stdin.Write(frame.Pix); err != nil {
		return fmt.Errorf("write frame: %w: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	return nil
}

func (s *ffmpegSink) Close() error {
	s.once.Do(func() {
		_ = s.stdin.Close()
		if err := s.cmd.Wait(); err != nil {
			s.err = fmt.Errorf("ffmpeg encoder: %w: %s", err, strings.TrimSpace(s.stderr.String()))
		}
	})
	return s.err
}

func (s *ffmpegSink) Abort() error {
	s.once.Do(func() {
		_ = s.stdin.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.cmd.Wait()
	})
	return nil
}
