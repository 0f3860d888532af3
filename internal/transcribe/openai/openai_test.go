package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"captioner/internal/media/audio"
	"captioner/internal/services"
	"captioner/internal/transcribe"
)

const verboseBody = `{
  "text": "Hello world.",
  "language": "english",
  "words": [
    {"word": "Hello", "start": 0.0, "end": 0.3},
    {"word": "world.", "start": 0.35, "end": 0.7}
  ],
  "segments": [{"text": "Hello world.", "start": 0.0, "end": 0.7}]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1/"}, nil)
}

func silence(seconds int) audio.PCM {
	return audio.PCM{Samples: make([]float32, seconds*audio.ModelSampleRate), SampleRate: audio.ModelSampleRate}
}

func TestTranscribeSendsMultipartRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		if got := r.MultipartForm.Value["timestamp_granularities[]"]; len(got) != 2 || got[0] != "word" {
			t.Errorf("granularities = %v", got)
		}
		if got := r.FormValue("language"); got != "de" {
			t.Errorf("language = %q", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("file: %v", err)
		}
		fmt.Fprint(w, verboseBody)
	})

	out, err := client.Transcribe(context.Background(), silence(1), transcribe.Options{Language: "ger", Granularity: transcribe.GranularityWord}, nil)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if out.Text != "Hello world." || len(out.Words) != 2 || out.Language != "en" {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestTranscribeOffsetsChunks(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		fmt.Fprint(w, verboseBody)
	})
	out, err := client.Transcribe(context.Background(), silence(ChunkSeconds+5), transcribe.Options{Granularity: transcribe.GranularityWord}, nil)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 uploads, got %d", calls.Load())
	}
	if len(out.Words) != 4 || out.Words[2].Start != ChunkSeconds {
		t.Fatalf("second chunk not offset: %+v", out.Words)
	}
}

func TestTranscribeReportsMissingWords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		fmt.Fprint(w, `{"text":"hi","segments":[{"text":"hi","start":0,"end":1}]}`)
	})
	_, err := client.Transcribe(context.Background(), silence(1), transcribe.Options{Granularity: transcribe.GranularityWord}, nil)
	if !errors.Is(err, transcribe.ErrGranularityUnsupported) {
		t.Fatalf("expected ErrGranularityUnsupported, got %v", err)
	}
}

func TestTranscribeStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, services.ErrConfiguration},
		{"server", http.StatusInternalServerError, "oops", services.ErrExternalTool},
		{"granularity", http.StatusBadRequest, `{"error":{"message":"timestamp_granularities not supported"}}`, transcribe.ErrGranularityUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := client.Transcribe(context.Background(), silence(1), transcribe.Options{}, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{}, nil).Load(context.Background(), nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSplitPCM(t *testing.T) {
	chunks := splitPCM(audio.PCM{Samples: make([]float32, 25), SampleRate: 10}, 1)
	if len(chunks) != 3 || len(chunks[2].Samples) != 5 {
		t.Fatalf("unexpected chunks %d", len(chunks))
	}
}
