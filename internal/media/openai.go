package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OpenAIConfig holds settings for the OpenAI-compatible transcription API
type OpenAIConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// OpenAITranscriber uploads audio to an OpenAI-compatible
// audio/transcriptions endpoint and maps the verbose_json response to a
// Transcript.
type OpenAITranscriber struct {
	config *OpenAIConfig
	client *http.Client
	logger *slog.Logger
}

// NewOpenAITranscriber creates a new API-backed transcriber
func NewOpenAITranscriber(config *OpenAIConfig, logger *slog.Logger) *OpenAITranscriber {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &OpenAITranscriber{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type openAIResponse struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe sends the audio file to the transcription API
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio *Audio) (*Transcript, error) {
	body, contentType, err := t.buildRequestBody(audio.Path)
	if err != nil {
		return nil, transcriptionError(true, err)
	}

	url := strings.TrimRight(t.config.BaseURL, "/") + "/audio/transcriptions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, transcriptionError(true, err)
	}
	req.Header.Set("Content-Type", contentType)
	if t.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.config.APIKey)
	}

	t.logger.Info("Transcribing audio via API",
		slog.String("audio", audio.Path),
		slog.String("model", t.config.Model),
	)

	start := time.Now()

	resp, err := t.client.Do(req)
	if err != nil {
		// Network-level failures are worth retrying
		return nil, transcriptionError(true, fmt.Errorf("transcription request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, transcriptionError(transient,
			fmt.Errorf("transcription API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))))
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, transcriptionError(true, fmt.Errorf("failed to decode transcription response: %w", err))
	}

	segments := make([]Segment, 0, len(out.Segments))
	for _, s := range out.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Start: s.Start, End: s.End, Text: text})
	}

	// Some servers omit segments for short clips; fall back to one span
	if len(segments) == 0 && strings.TrimSpace(out.Text) != "" {
		segments = append(segments, Segment{Start: 0, End: audio.Duration, Text: strings.TrimSpace(out.Text)})
	}

	took := time.Since(start)
	t.logger.Info("Transcription complete",
		slog.Int("segments", len(segments)),
		slog.String("language", out.Language),
		slog.Duration("took", took),
	)

	return &Transcript{
		Segments:          segments,
		Language:          out.Language,
		Model:             t.config.Model,
		TranscriptionTime: took.Seconds(),
	}, nil
}

// buildRequestBody assembles the multipart form with the audio file and
// model parameters
func (t *OpenAITranscriber) buildRequestBody(path string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to read audio file: %w", err)
	}

	if err := w.WriteField("model", t.config.Model); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return buf, w.FormDataContentType(), nil
}
