package subtitles

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"captioner/internal/captions"
)

func sampleCaptions() []captions.Caption {
	return []captions.Caption{
		{ID: "a", Text: "Hello world.", Start: 0, End: 0.7},
		{ID: "b", Text: "   ", Start: 0.8, End: 1.0},
		{ID: "c", Text: "It's <fine> & good", Start: 3661.5, End: 3662.25},
	}
}

func TestTimestamps(t *testing.T) {
	tests := []struct {
		seconds float64
		srt     string
		vtt     string
		ass     string
	}{
		{0, "00:00:00,000", "00:00:00.000", "0:00:00.00"},
		{0.7, "00:00:00,700", "00:00:00.700", "0:00:00.70"},
		{3661.5, "01:01:01,500", "01:01:01.500", "1:01:01.50"},
		{59.9999, "00:01:00,000", "00:01:00.000", "0:01:00.00"},
		{-3, "00:00:00,000", "00:00:00.000", "0:00:00.00"},
	}
	for _, tt := range tests {
		if got := SRTTimestamp(tt.seconds); got != tt.srt {
			t.Errorf("SRTTimestamp(%v) = %q, want %q", tt.seconds, got, tt.srt)
		}
		if got := VTTTimestamp(tt.seconds); got != tt.vtt {
			t.Errorf("VTTTimestamp(%v) = %q, want %q", tt.seconds, got, tt.vtt)
		}
		if got := ASSTimestamp(tt.seconds); got != tt.ass {
			t.Errorf("ASSTimestamp(%v) = %q, want %q", tt.seconds, got, tt.ass)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"00:00:01,500", 1.5, false},
		{"01:02:03.004", 3723.004, false},
		{"02:03.5", 123.5, false},
		{"00:61:00,000", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseTimestamp(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTimestamp(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("parseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func render(t *testing.T, format Format, opts Options) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Write(&buf, format, sampleCaptions(), opts); err != nil {
		t.Fatalf("Write %s: %v", format, err)
	}
	return buf.String()
}

func TestWriteSRT(t *testing.T) {
	want := "1\n00:00:00,000 --> 00:00:00,700\nHello world.\n\n2\n01:01:01,500 --> 01:01:02,250\nIt's <fine> & good\n"
	if got := render(t, FormatSRT, Options{}); got != want {
		t.Fatalf("srt mismatch:\n%s", got)
	}
}

func TestWriteVTT(t *testing.T) {
	got := render(t, FormatVTT, Options{Language: "en"})
	if !strings.HasPrefix(got, "WEBVTT\nLanguage: en\n\n00:00:00.000 --> 00:00:00.700\nHello world.\n") {
		t.Fatalf("vtt header mismatch:\n%s", got)
	}
	if !strings.Contains(got, "It's &lt;fine&gt; &amp; good") {
		t.Fatalf("expected escaped text:\n%s", got)
	}
}

func TestWriteASS(t *testing.T) {
	style := captions.DefaultStyle().WithCustomPosition(25, 50)
	style.Animation = captions.AnimationFade
	got := render(t, FormatASS, Options{Style: &style})

	for _, want := range []string{
		"PlayResY: 720",
		"Style: Default,Go,48,&H00FFFFFF,",
		",-1,0,0,0,100,100,0,0,3,",
		`Dialogue: 0,0:00:00.00,0:00:00.70,Default,,0,0,0,,{\an5\pos(320,360)\fad(250,250)}Hello world.`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("ass output missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "Dialogue:") != 2 {
		t.Fatalf("blank caption should be omitted:\n%s", got)
	}
}

func TestASSColor(t *testing.T) {
	c, _ := captions.ParseColor("#11223380")
	if got := assColor(c, 1); got != "&H7F332211" {
		t.Fatalf("assColor = %q", got)
	}
}

func TestWriteCSVAndTXT(t *testing.T) {
	csvOut := render(t, FormatCSV, Options{})
	if !strings.HasPrefix(csvOut, "id,start,end,text\na,0.000,0.700,Hello world.\n") {
		t.Fatalf("csv mismatch:\n%s", csvOut)
	}
	if got := render(t, FormatTXT, Options{}); got != "Hello world.\nIt's <fine> & good\n" {
		t.Fatalf("txt mismatch: %q", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	style := captions.DefaultStyle()
	style.Curve = 30
	path := filepath.Join(t.TempDir(), "out", "captions.json")
	if err := WriteFile(path, FormatJSON, sampleCaptions(), Options{Style: &style, Language: "en"}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	doc, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(doc.Captions) != 3 || doc.Captions[2].ID != "c" || doc.Language != "en" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.Style == nil || doc.Style.Curve != 30 {
		t.Fatalf("style lost: %+v", doc.Style)
	}
}

func TestReadJSONArrayAssignsIDs(t *testing.T) {
	doc, err := Read(strings.NewReader(`[{"text":"b","startTime":2,"endTime":3},{"text":"a","startTime":0,"endTime":1}]`), FormatJSON)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(doc.Captions) != 2 || doc.Captions[0].Text != "a" || doc.Captions[0].ID == "" {
		t.Fatalf("unexpected captions %+v", doc.Captions)
	}
}

func TestReadJSONRejectsInvalidSpan(t *testing.T) {
	if _, err := Read(strings.NewReader(`[{"text":"x","startTime":2,"endTime":1}]`), FormatJSON); err == nil {
		t.Fatal("expected span error")
	}
}

func TestReadSRT(t *testing.T) {
	input := "\xef\xbb\xbf1\r\n00:00:01,000 --> 00:00:02,500\r\n<i>Hello</i>\r\n{\\an8}world\r\n\r\n2\r\n00:00:00,000 --> 00:00:00,500\r\nFirst\r\n\r\n3\r\n00:00:03,000 --> 00:00:03,000\r\nzero length\r\n"
	doc, err := Read(strings.NewReader(input), FormatSRT)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(doc.Captions) != 2 {
		t.Fatalf("expected 2 cues, got %+v", doc.Captions)
	}
	if doc.Captions[0].Text != "First" || doc.Captions[1].Text != "Hello world" || doc.Captions[1].End != 2.5 {
		t.Fatalf("unexpected cues %+v", doc.Captions)
	}
}

func TestReadVTTRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatVTT, sampleCaptions(), Options{Language: "en"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	doc, err := Read(&buf, FormatVTT)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(doc.Captions) != 2 || doc.Captions[1].Text != "It's <fine> & good" || doc.Captions[1].Start != 3661.5 {
		t.Fatalf("unexpected cues %+v", doc.Captions)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"SRT": FormatSRT, ".vtt": FormatVTT, "webvtt": FormatVTT, "ssa": FormatASS, "text": FormatTXT} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("docx"); err == nil {
		t.Fatal("expected error for docx")
	}
	if FormatCSV.Readable() {
		t.Fatal("csv is write-only")
	}
}

func TestValidate(t *testing.T) {
	if issues := Validate(nil, 0); len(issues) != 1 || issues[0] != "empty_caption_track" {
		t.Fatalf("unexpected issues %v", issues)
	}
	list := []captions.Caption{
		{Text: "a", Start: 0, End: 2},
		{Text: " ", Start: 1, End: 3},
		{Text: "c", Start: 5, End: 20},
	}
	issues := Validate(list, 10)
	want := []string{"blank_caption: caption 2", "overlap: captions 1 and 2", "beyond_video_end: delta=10.0s"}
	if len(issues) != len(want) {
		t.Fatalf("issues = %v", issues)
	}
	for i := range want {
		if issues[i] != want[i] {
			t.Fatalf("issue %d = %q, want %q", i, issues[i], want[i])
		}
	}
}
