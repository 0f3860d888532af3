package ffprobe

import "testing"

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "mjpeg", "width": 300, "height": 300, "disposition": {"attached_pic": 1}},
    {"index": 1, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "avg_frame_rate": "30000/1001", "r_frame_rate": "30/1"},
    {"index": 2, "codec_type": "audio", "codec_name": "aac", "channels": 2, "sample_rate": "48000", "tags": {"language": "ENG"}},
    {"index": 3, "codec_type": "audio", "codec_name": "ac3", "channels": 6, "sample_rate": "48000", "duration": "130.5"}
  ],
  "format": {"duration": "", "size": "1000", "format_name": "mov,mp4,m4a"}
}`

func TestParseAndHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	video, ok := result.VideoStream()
	if !ok || video.Index != 1 {
		t.Fatalf("expected stream 1 as video, got %+v ok=%v", video, ok)
	}
	if fps := video.FrameRate(); fps < 29.97 || fps > 29.98 {
		t.Fatalf("unexpected frame rate %v", fps)
	}
	if result.AudioStreamCount() != 2 || !result.HasAudio() {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	audio := result.AudioStreams()
	if audio[0].Language() != "eng" || audio[0].SampleRateHz() != 48000 {
		t.Fatalf("unexpected audio stream %+v", audio[0])
	}
	if result.DurationSeconds() != 130.5 {
		t.Fatalf("expected stream duration fallback, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if (Stream{AvgFrameRate: "0/0", RFrameRate: "25"}).FrameRate() != 25 {
		t.Fatal("expected r_frame_rate fallback")
	}
	if _, err := Parse([]byte("{")); err == nil {
		t.Fatal("expected parse error")
	}
}
