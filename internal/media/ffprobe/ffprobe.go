package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecLong     string            `json:"codec_long_name"`
	CodecType     string            `json:"codec_type"`
	Duration      string            `json:"duration"`
	BitRate       string            `json:"bit_rate"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	RFrameRate    string            `json:"r_frame_rate"`
	AvgFrameRate  string            `json:"avg_frame_rate"`
	SampleRate    string            `json:"sample_rate"`
	Channels      int               `json:"channels"`
	ChannelLayout string            `json:"channel_layout"`
	Tags          map[string]string `json:"tags"`
	Disposition   map[string]int    `json:"disposition"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Parse(output)
}

// Parse decodes raw ffprobe JSON.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream that is not an attached picture.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		if stream.Disposition["attached_pic"] == 1 {
			continue
		}
		return stream, true
	}
	return Stream{}, false
}

// AudioStreams returns every audio stream in container order.
func (r Result) AudioStreams() []Stream {
	var out []Stream
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			out = append(out, stream)
		}
	}
	return out
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return len(r.AudioStreams())
}

// HasAudio reports whether the container carries any audio stream.
func (r Result) HasAudio() bool {
	return r.AudioStreamCount() > 0
}

// DurationSeconds returns the container duration in seconds, falling back to
// the longest stream duration. It returns 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	if d := parseFloat(r.Format.Duration); d > 0 {
		return d
	}
	longest := 0.0
	for _, stream := range r.Streams {
		if d := parseFloat(stream.Duration); d > longest {
			longest = d
		}
	}
	return longest
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if size <= 0 {
		return 0
	}
	return int64(size)
}

// FrameRate returns the stream's frames per second from avg_frame_rate, then
// r_frame_rate. It returns 0 when neither parses.
func (s Stream) FrameRate() float64 {
	for _, value := range []string{s.AvgFrameRate, s.RFrameRate} {
		if fps := parseRational(value); fps > 0 {
			return fps
		}
	}
	return 0
}

// SampleRateHz returns the audio sample rate, or 0 when unavailable.
func (s Stream) SampleRateHz() int {
	rate, err := strconv.Atoi(strings.TrimSpace(s.SampleRate))
	if err != nil || rate < 0 {
		return 0
	}
	return rate
}

// Language returns the stream's lowercase language tag, if any.
func (s Stream) Language() string {
	for _, key := range []string{"language", "LANGUAGE", "language_ietf"} {
		if value, ok := s.Tags[key]; ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

func parseRational(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	n := parseFloat(num)
	if !found {
		return n
	}
	d := parseFloat(den)
	if d == 0 || math.IsNaN(n) || math.IsNaN(d) {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}
