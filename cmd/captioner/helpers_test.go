package main

import (
	"path/filepath"
	"testing"

	"captioner/internal/captions"
	"captioner/internal/subtitles"
	"captioner/internal/testsupport"
	"captioner/internal/transcribe"
)

func transcribeResult(words []string) transcribe.Result {
	return transcribe.Result{
		Tokens:   testsupport.Words(0, 0.4, words...),
		Language: "en",
		Model:    "large-v3",
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"62.5", 62.5, false},
		{"1:02.5", 62.5, false},
		{"00:01:02,500", 62.5, false},
		{"1:00:00", 3600, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-3", 0, true},
		{"1:2:3:4", 0, true},
	}
	for _, tt := range tests {
		got, err := parseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseClock(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("parseClock(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestFindCaption(t *testing.T) {
	list := []captions.Caption{
		{ID: "abc123", Text: "one"},
		{ID: "abd456", Text: "two"},
	}
	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"abc123", "one", false},
		{"abd", "two", false},
		{"2", "two", false},
		{"ab", "", true},
		{"9", "", true},
		{"zzz", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := findCaption(list, tt.ref)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("findCaption(%q) expected error", tt.ref)
			}
			continue
		}
		if err != nil || got.Text != tt.want {
			t.Fatalf("findCaption(%q) = %+v, %v", tt.ref, got, err)
		}
	}
}

func TestSubtitleTarget(t *testing.T) {
	tests := []struct {
		name       string
		out        string
		format     string
		wantFormat subtitles.Format
		wantPath   string
	}{
		{"default json", "", "", subtitles.FormatJSON, "/v/clip.captions.json"},
		{"format flag", "", "vtt", subtitles.FormatVTT, "/v/clip.vtt"},
		{"from extension", "/o/x.srt", "", subtitles.FormatSRT, "/o/x.srt"},
		{"flag beats extension", "/o/x.txt", "ass", subtitles.FormatASS, "/o/x.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, path, err := subtitleTarget("/v/clip.mp4", tt.out, tt.format)
			if err != nil {
				t.Fatalf("subtitleTarget: %v", err)
			}
			if format != tt.wantFormat || path != filepath.FromSlash(tt.wantPath) {
				t.Fatalf("got %s %s, want %s %s", format, path, tt.wantFormat, tt.wantPath)
			}
		})
	}
	if _, _, err := subtitleTarget("/v/clip.mp4", "/o/x.bin", ""); err == nil {
		t.Fatal("expected unknown extension to fail")
	}
}

func TestSegmentModeDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Segmentation.WordsPerCaption = 4
	if got := segmentMode(-1, cfg); got.WordsPerCaption != 4 {
		t.Fatalf("expected config default, got %+v", got)
	}
	if got := segmentMode(0, cfg); !got.Auto() {
		t.Fatalf("expected auto mode, got %+v", got)
	}
	if got := segmentMode(2, cfg); got.WordsPerCaption != 2 {
		t.Fatalf("expected flag value, got %+v", got)
	}
}

func TestSiblingPath(t *testing.T) {
	if got := siblingPath("/v/My: Clip?.mp4", "srt"); got != filepath.FromSlash("/v/My- Clip.srt") {
		t.Fatalf("unexpected sibling %q", got)
	}
}
