package media

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAudioFile(t *testing.T) *Audio {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake audio bytes"), 0o644))
	return &Audio{Path: path, Format: "mp3", Duration: 4.2, Platform: "youtube"}
}

func newAPITranscriber(t *testing.T, baseURL string) *OpenAITranscriber {
	t.Helper()
	return NewOpenAITranscriber(&OpenAIConfig{
		BaseURL: baseURL,
		Model:   "whisper-1",
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOpenAITranscriber_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "clip.mp3", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"language": "en",
			"text": "hello world again",
			"segments": [
				{"start": 0, "end": 2, "text": " hello world"},
				{"start": 2, "end": 4, "text": "again "},
				{"start": 4, "end": 4.2, "text": "  "}
			]
		}`))
	}))
	defer srv.Close()

	tr := newAPITranscriber(t, srv.URL+"/v1")
	transcript, err := tr.Transcribe(context.Background(), testAudioFile(t))
	require.NoError(t, err)

	// Whitespace-only segments are dropped, text is trimmed
	require.Len(t, transcript.Segments, 2)
	assert.Equal(t, "hello world", transcript.Segments[0].Text)
	assert.Equal(t, "again", transcript.Segments[1].Text)
	assert.Equal(t, "en", transcript.Language)
	assert.Equal(t, "whisper-1", transcript.Model)
	assert.Greater(t, transcript.TranscriptionTime, 0.0)
}

func TestOpenAITranscriber_FallbackSegment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"language": "en", "text": "short clip"}`))
	}))
	defer srv.Close()

	tr := newAPITranscriber(t, srv.URL)
	transcript, err := tr.Transcribe(context.Background(), testAudioFile(t))
	require.NoError(t, err)

	require.Len(t, transcript.Segments, 1)
	assert.Equal(t, "short clip", transcript.Segments[0].Text)
	assert.Equal(t, 4.2, transcript.Segments[0].End)
}

func TestOpenAITranscriber_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, transient: true},
		{name: "server error", status: http.StatusBadGateway, transient: true},
		{name: "bad request", status: http.StatusBadRequest, transient: false},
		{name: "unauthorized", status: http.StatusUnauthorized, transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			tr := newAPITranscriber(t, srv.URL)
			_, err := tr.Transcribe(context.Background(), testAudioFile(t))
			require.Error(t, err)
			assert.True(t, IsMediaError(err))
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}
}

func TestOpenAITranscriber_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	tr := newAPITranscriber(t, srv.URL)
	_, err := tr.Transcribe(context.Background(), testAudioFile(t))
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestOpenAITranscriber_MissingAudioFile(t *testing.T) {
	tr := newAPITranscriber(t, "http://localhost:0")
	_, err := tr.Transcribe(context.Background(), &Audio{Path: "/does/not/exist.mp3"})
	require.Error(t, err)
	assert.True(t, IsMediaError(err))
}
