// Package openai transcribes audio through an OpenAI-compatible
// /audio/transcriptions endpoint using verbose_json responses.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"captioner/internal/captions"
	langpkg "captioner/internal/language"
	"captioner/internal/logging"
	"captioner/internal/media/audio"
	"captioner/internal/progress"
	"captioner/internal/services"
	"captioner/internal/transcribe"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "whisper-1"
	// ChunkSeconds bounds each upload; 16 kHz 16-bit mono stays under the 25 MB API limit.
	ChunkSeconds = 600
)

// Config holds endpoint settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements transcribe.Model and transcribe.Loader over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client with defaults applied.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logging.NewComponentLogger(logger, "openai"),
	}
}

// WithHTTPClient overrides the HTTP client (for testing).
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.httpClient = client
	return c
}

// Load validates credentials. No model weights live on this side.
func (c *Client) Load(ctx context.Context, report progress.Func) (transcribe.Model, error) {
	report.Emit(progress.PhaseLoading, 0)
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "loading", "openai", "API key not configured (transcription.api_key or OPENAI_API_KEY)", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report.Emit(progress.PhaseLoading, 100)
	return c, nil
}

// Name returns the model identifier used for cache keys.
func (c *Client) Name() string {
	return "openai/" + c.cfg.Model
}

type verboseWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type verboseSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type verboseResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Words    []verboseWord    `json:"words"`
	Segments []verboseSegment `json:"segments"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Transcribe uploads pcm in chunks of at most ChunkSeconds and stitches the
// results back onto one timeline.
func (c *Client) Transcribe(ctx context.Context, pcm audio.PCM, opts transcribe.Options, report progress.Func) (transcribe.Output, error) {
	chunks := splitPCM(pcm, ChunkSeconds)
	var (
		out   transcribe.Output
		texts []string
	)
	for i, chunk := range chunks {
		offset := float64(i * ChunkSeconds)
		report.Emit(progress.PhaseTranscribing, 100*float64(i)/float64(len(chunks)))
		resp, err := c.transcribeChunk(ctx, chunk, opts)
		if err != nil {
			if len(chunks) > 1 {
				return transcribe.Output{}, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
			}
			return transcribe.Output{}, err
		}
		if text := strings.TrimSpace(resp.Text); text != "" {
			texts = append(texts, text)
		}
		if out.Language == "" {
			out.Language = langpkg.ToISO2(resp.Language)
		}
		for _, w := range resp.Words {
			out.Words = append(out.Words, captions.WordToken{Text: strings.TrimSpace(w.Word), Start: w.Start + offset, End: w.End + offset})
		}
		for _, s := range resp.Segments {
			out.Segments = append(out.Segments, transcribe.Segment{Text: strings.TrimSpace(s.Text), Start: s.Start + offset, End: s.End + offset})
		}
	}
	if opts.Granularity == transcribe.GranularityWord && len(out.Words) == 0 && len(out.Segments) > 0 {
		return transcribe.Output{}, transcribe.ErrGranularityUnsupported
	}
	out.Text = strings.Join(texts, " ")
	report.Emit(progress.PhaseTranscribing, 100)
	return out, nil
}

func (c *Client) transcribeChunk(ctx context.Context, pcm audio.PCM, opts transcribe.Options) (verboseResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return verboseResponse{}, err
	}
	if err := audio.WriteWAV(part, pcm); err != nil {
		return verboseResponse{}, fmt.Errorf("encode wav: %w", err)
	}

	_ = writer.WriteField("model", c.cfg.Model)
	_ = writer.WriteField("response_format", "verbose_json")
	granularity := opts.Granularity
	if granularity == "" {
		granularity = transcribe.GranularityWord
	}
	_ = writer.WriteField("timestamp_granularities[]", string(granularity))
	if granularity == transcribe.GranularityWord {
		_ = writer.WriteField("timestamp_granularities[]", string(transcribe.GranularitySegment))
	}
	if lang := langpkg.ToISO2(opts.Language); lang != "" {
		_ = writer.WriteField("language", lang)
	}
	if err := writer.Close(); err != nil {
		return verboseResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return verboseResponse{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	c.logger.Debug("sending transcription request",
		logging.String("model", c.cfg.Model),
		logging.String("granularity", string(granularity)),
		logging.Float64("audio_seconds", pcm.Seconds()),
	)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return verboseResponse{}, services.Wrap(services.ErrExternalTool, "transcribing", "openai request", "Transcription API unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return verboseResponse{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return verboseResponse{}, statusError(resp.StatusCode, body)
	}

	var payload verboseResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return verboseResponse{}, fmt.Errorf("parse verbose_json: %w", err)
	}
	return payload, nil
}

func statusError(status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}
	if status == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "timestamp_granularities") {
		return fmt.Errorf("%w: %s", transcribe.ErrGranularityUnsupported, message)
	}
	marker := services.ErrExternalTool
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		marker = services.ErrConfiguration
	}
	return services.Wrap(marker, "transcribing", "openai request", fmt.Sprintf("API error (status %d)", status), fmt.Errorf("%s", message))
}

// splitPCM cuts pcm into consecutive chunks no longer than seconds.
func splitPCM(pcm audio.PCM, seconds int) []audio.PCM {
	size := seconds * pcm.SampleRate
	if size <= 0 || len(pcm.Samples) <= size {
		return []audio.PCM{pcm}
	}
	var chunks []audio.PCM
	for start := 0; start < len(pcm.Samples); start += size {
		end := min(start+size, len(pcm.Samples))
		chunks = append(chunks, audio.PCM{Samples: pcm.Samples[start:end], SampleRate: pcm.SampleRate})
	}
	return chunks
}
