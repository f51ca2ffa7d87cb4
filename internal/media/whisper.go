package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// WhisperConfig holds settings for the local whisper.cpp-style CLI
type WhisperConfig struct {
	Binary    string
	ModelPath string
	Timeout   time.Duration
}

// WhisperTranscriber runs a local whisper CLI against extracted audio and
// parses its JSON output. The model internals are the tool's business; this
// adapter only drives the process.
type WhisperTranscriber struct {
	config *WhisperConfig
	logger *slog.Logger
}

// NewWhisperTranscriber creates a new local CLI transcriber
func NewWhisperTranscriber(config *WhisperConfig, logger *slog.Logger) *WhisperTranscriber {
	return &WhisperTranscriber{
		config: config,
		logger: logger,
	}
}

// whisperOutput matches the whisper.cpp --output-json schema
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"` // milliseconds
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe runs the whisper CLI on audio and returns timed segments
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio *Audio) (*Transcript, error) {
	if t.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}

	outPrefix := strings.TrimSuffix(audio.Path, filepath.Ext(audio.Path))
	outFile := outPrefix + ".json"
	defer os.Remove(outFile)

	args := []string{
		"-m", t.config.ModelPath,
		"-f", audio.Path,
		"--output-json",
		"--output-file", outPrefix,
		"--language", "auto",
	}

	t.logger.Info("Transcribing audio with local whisper",
		slog.String("audio", audio.Path),
		slog.String("model", t.config.ModelPath),
	)

	start := time.Now()

	cmd := exec.CommandContext(ctx, t.config.Binary, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		transient := execTransient(err) || classifyToolFailure(buf.String())
		return nil, transcriptionError(transient, fmt.Errorf("whisper failed: %s", firstLine(buf.String(), err)))
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		return nil, transcriptionError(true, fmt.Errorf("whisper output missing: %w", err))
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, transcriptionError(true, fmt.Errorf("failed to parse whisper output: %w", err))
	}

	segments := make([]Segment, 0, len(out.Transcription))
	for _, s := range out.Transcription {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Start: float64(s.Offsets.From) / 1000.0,
			End:   float64(s.Offsets.To) / 1000.0,
			Text:  text,
		})
	}

	took := time.Since(start)
	t.logger.Info("Transcription complete",
		slog.Int("segments", len(segments)),
		slog.String("language", out.Result.Language),
		slog.Duration("took", took),
	)

	return &Transcript{
		Segments:          segments,
		Language:          out.Result.Language,
		Model:             filepath.Base(t.config.ModelPath),
		TranscriptionTime: took.Seconds(),
	}, nil
}
