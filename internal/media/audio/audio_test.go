package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"testing"

	"captioner/internal/media/ffprobe"
	"captioner/internal/progress"
	"captioner/internal/services"
)

func TestMixToMonoAverages(t *testing.T) {
	interleaved := []float32{1, 0, 0.5, 0.5, -1, 1}
	got, err := MixToMono(context.Background(), interleaved, 2, nil)
	if err != nil {
		t.Fatalf("MixToMono: %v", err)
	}
	if !slices.Equal(got, []float32{0.5, 0.5, 0}) {
		t.Fatalf("unexpected mono %v", got)
	}
	if _, err := MixToMono(context.Background(), interleaved, 0, nil); err == nil {
		t.Fatal("expected error for zero channels")
	}
}

func TestMixToMonoYieldsBetweenChunks(t *testing.T) {
	frames := ChunkFrames*YieldEvery*2 + 10
	interleaved := make([]float32, frames*2)
	yields := 0
	_, err := MixToMono(context.Background(), interleaved, 2, func(context.Context) error {
		yields++
		return nil
	})
	if err != nil {
		t.Fatalf("MixToMono: %v", err)
	}
	if yields != 2 {
		t.Fatalf("expected 2 yields, got %d", yields)
	}
}

func TestMixToMonoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	interleaved := make([]float32, ChunkFrames*YieldEvery*2*2)
	if _, err := MixToMono(ctx, interleaved, 2, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestResampleLinearInterpolation(t *testing.T) {
	samples := []float32{0, 1, 2, 3, 4, 5, 6, 7}
	got := Resample(samples, 8, 4)
	if !slices.Equal(got, []float32{0, 2, 4, 6}) {
		t.Fatalf("downsample: %v", got)
	}
	up := Resample([]float32{0, 1}, 1, 2)
	if len(up) != 4 || up[1] != 0.5 || up[3] != 1 {
		t.Fatalf("upsample: %v", up)
	}
	same := Resample(samples, 16000, 16000)
	same[0] = 99
	if samples[0] != 0 {
		t.Fatal("identical rates must return a copy")
	}
}

func TestSelectPrimary(t *testing.T) {
	streams := []ffprobe.Stream{
		{Index: 0, CodecType: "video"},
		{Index: 1, CodecType: "audio", Channels: 2, Tags: map[string]string{"language": "fra"}},
		{Index: 2, CodecType: "audio", Channels: 6, Tags: map[string]string{"language": "eng"}},
		{Index: 3, CodecType: "audio", Channels: 2, Disposition: map[string]int{"default": 1}},
	}
	if got, _ := SelectPrimary(streams, ""); got.Index != 3 {
		t.Fatalf("expected default stream, got %d", got.Index)
	}
	if got, _ := SelectPrimary(streams, "en"); got.Index != 2 {
		t.Fatalf("expected english stream, got %d", got.Index)
	}
	if _, ok := SelectPrimary(streams[:1], ""); ok {
		t.Fatal("expected no audio stream")
	}
}

func f32le(samples ...float32) []byte {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(s))
	}
	return buf
}

func TestExtractorDecodesMixesAndResamples(t *testing.T) {
	probe := func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{
			{Index: 0, CodecType: "video"},
			{Index: 1, CodecType: "audio", Channels: 2, SampleRate: "32000"},
		}}, nil
	}
	var gotArgs []string
	runner := func(_ context.Context, _ string, args ...string) ([]byte, error) {
		gotArgs = args
		return f32le(1, 0, 1, 0, 0, 1, 0, 1), nil
	}
	var events []progress.Event
	ex := NewExtractor("ffmpeg", "ffprobe", nil).WithProbe(probe).WithCommandRunner(runner)
	pcm, err := ex.Extract(context.Background(), "in.mp4", func(ev progress.Event) { events = append(events, ev) })
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if pcm.SampleRate != ModelSampleRate {
		t.Fatalf("unexpected rate %d", pcm.SampleRate)
	}
	if !slices.Equal(pcm.Samples, []float32{0.5, 0.5}) {
		t.Fatalf("unexpected samples %v", pcm.Samples)
	}
	if !slices.Contains(gotArgs, "0:1") || !slices.Contains(gotArgs, "f32le") {
		t.Fatalf("unexpected ffmpeg args %v", gotArgs)
	}
	if len(events) == 0 || events[len(events)-1].Percent != 100 {
		t.Fatalf("expected final 100%% event, got %+v", events)
	}
}

func TestExtractorFailsWithoutAudio(t *testing.T) {
	probe := func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{Index: 0, CodecType: "video"}}}, nil
	}
	ex := NewExtractor("", "", nil).WithProbe(probe)
	_, err := ex.Extract(context.Background(), "silent.mp4", nil)
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestExtractorWrapsDecodeFailure(t *testing.T) {
	probe := func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{Index: 0, CodecType: "audio", Channels: 1, SampleRate: "16000"}}}, nil
	}
	runner := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("invalid data found when processing input")
	}
	ex := NewExtractor("", "", nil).WithProbe(probe).WithCommandRunner(runner)
	if _, err := ex.Extract(context.Background(), "bad.mkv", nil); !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestWriteWAVHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, PCM{Samples: []float32{0, 1, -1}, SampleRate: 16000}); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	data := buf.Bytes()
	if len(data) != 44+6 {
		t.Fatalf("unexpected length %d", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Fatalf("bad header %q", data[:44])
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Fatalf("unexpected rate %d", rate)
	}
	if v := int16(binary.LittleEndian.Uint16(data[46:48])); v != math.MaxInt16 {
		t.Fatalf("unexpected sample %d", v)
	}
}
