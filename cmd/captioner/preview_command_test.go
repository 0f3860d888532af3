package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"captioner/internal/captions"
	"captioner/internal/media/ffprobe"
	"captioner/internal/session"
)

func previewSession(t *testing.T) *session.Session {
	t.Helper()
	sess, err := session.New(session.Options{
		Probe: func(context.Context, string, string) (ffprobe.Result, error) {
			return ffprobe.Result{
				Streams: []ffprobe.Stream{{CodecType: "video", Width: 640, Height: 360}},
				Format:  ffprobe.Format{Duration: "3.0"},
			}, nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sess.LoadCaptions([]captions.Caption{
		{ID: "11111111-aaaa", Text: "Hello", Start: 0.5, End: 1.2},
		{ID: "22222222-bbbb", Text: "World", Start: 1.2, End: 2},
	}); err != nil {
		t.Fatalf("LoadCaptions: %v", err)
	}
	if err := sess.Open(context.Background(), "/media/clip.mp4"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return sess
}

func TestWalkTimelinePrintsChanges(t *testing.T) {
	sess := previewSession(t)
	var out bytes.Buffer
	if err := walkTimeline(sess, 0, 0.1, &out); err != nil {
		t.Fatalf("walkTimeline: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 transitions, got %d:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "(no caption)") ||
		!strings.Contains(lines[1], "[11111111] Hello") ||
		!strings.Contains(lines[2], "[22222222] World") ||
		!strings.Contains(lines[3], "(no caption)") {
		t.Fatalf("unexpected timeline:\n%s", out.String())
	}
}

func TestWalkTimelineRejectsBadStep(t *testing.T) {
	if err := walkTimeline(previewSession(t), 0, 0, &bytes.Buffer{}); err == nil {
		t.Fatal("expected non-positive step to fail")
	}
}

func TestPlayTimelineStopsAtEnd(t *testing.T) {
	sess := previewSession(t)
	var out bytes.Buffer
	if err := playTimeline(context.Background(), sess, 2.5, 4, &out); err != nil {
		t.Fatalf("playTimeline: %v", err)
	}
	if !strings.Contains(out.String(), "(no caption)") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if got := sess.Playhead(); got < 3 {
		t.Fatalf("expected playback to reach the end, at %.2f", got)
	}
}
