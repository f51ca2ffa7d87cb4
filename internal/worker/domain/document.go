package domain

import (
	"database/sql"
	"strings"
	"time"
)

// Document is the durable record describing one media item to transcribe
type Document struct {
	ID              string         `db:"id"`
	SourceURL       string         `db:"source_url"`
	Title           sql.NullString `db:"title"`
	MediaFormat     string         `db:"media_format"`
	Lang            sql.NullString `db:"lang"`
	Status          string         `db:"processing_status"`
	ProcessingError sql.NullString `db:"processing_error"`
	RetryCount      int            `db:"retry_count"`
	ProcessedAt     sql.NullTime   `db:"processed_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// JobPayload is the queue message body. One message maps to exactly one
// document.
type JobPayload struct {
	DocumentID string `json:"document_id"`
}

// JobContext is the in-memory state of one active pipeline invocation. It is
// owned exclusively by the pipeline goroutine that created it.
type JobContext struct {
	MsgID      int64
	DocumentID string
	Attempt    int
	Stage      string
	StartedAt  time.Time
}

// Segment is one span of transcribed speech
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is the persisted output of a successful transcription
type TranscriptionResult struct {
	Segments     []Segment      `json:"segments"`
	Language     string         `json:"language"`
	Source       string         `json:"source"`
	Model        string         `json:"model,omitempty"`
	FullText     string         `json:"full_text"`
	WordCount    int            `json:"word_count"`
	SegmentCount int            `json:"segment_count"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewTranscriptionResult derives full_text and counts from segments
func NewTranscriptionResult(segments []Segment, language, model string, metadata map[string]any) *TranscriptionResult {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	fullText := strings.Join(parts, " ")

	if language == "" {
		language = "unknown"
	}

	return &TranscriptionResult{
		Segments:     segments,
		Language:     language,
		Source:       "ai",
		Model:        model,
		FullText:     fullText,
		WordCount:    len(strings.Fields(fullText)),
		SegmentCount: len(segments),
		Metadata:     metadata,
	}
}
