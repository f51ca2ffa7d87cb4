package model

import (
	"database/sql"
	"encoding/json"
	"time"
)

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

type Transcription struct {
	ID           string          `db:"id"`
	DocumentID   string          `db:"document_id"`
	Segments     json.RawMessage `db:"segments"`
	Language     string          `db:"language"`
	Source       string          `db:"source"`
	Model        sql.NullString  `db:"model"`
	FullText     string          `db:"full_text"`
	WordCount    int             `db:"word_count"`
	SegmentCount int             `db:"segment_count"`
	Metadata     json.RawMessage `db:"metadata"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}
