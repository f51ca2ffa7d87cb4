package dto

import "encoding/json"

type ListDocumentsRequest struct {
	Status      string `form:"status"`
	MediaFormat string `form:"media_format"`
	PageSize    int    `form:"page_size"`
	Cursor      string `form:"cursor"`
}

type ListDocumentsResponse struct {
	Documents  []DocumentDTO `json:"documents"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type DocumentDTO struct {
	ID              string `json:"id"`
	SourceURL       string `json:"source_url"`
	Title           string `json:"title,omitempty"`
	MediaFormat     string `json:"media_format"`
	Lang            string `json:"lang,omitempty"`
	Status          string `json:"processing_status"`
	ProcessingError string `json:"processing_error,omitempty"`
	RetryCount      int    `json:"retry_count"`
	ProcessedAt     string `json:"processed_at,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type TranscriptionDTO struct {
	ID           string          `json:"id"`
	DocumentID   string          `json:"document_id"`
	Segments     json.RawMessage `json:"segments"`
	Language     string          `json:"language"`
	Source       string          `json:"source"`
	Model        string          `json:"model,omitempty"`
	FullText     string          `json:"full_text"`
	WordCount    int             `json:"word_count"`
	SegmentCount int             `json:"segment_count"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}
