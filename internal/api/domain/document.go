package domain

import (
	"errors"
)

const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusError      = "error"
)

var (
	ErrDocumentNotFound      = errors.New("document not found")
	ErrTranscriptionNotFound = errors.New("transcription not found")
)
