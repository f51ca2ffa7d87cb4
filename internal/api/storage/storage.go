package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/transcriber-be/internal/api/domain"
	"github.com/cuongbtq/transcriber-be/internal/api/model"
	"github.com/cuongbtq/transcriber-be/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) GetDocumentByID(ctx context.Context, documentID string) (*model.Document, error) {
	var doc model.Document
	query := `
		SELECT
			id, source_url, title, media_format, lang,
			processing_status, processing_error, retry_count,
			processed_at, created_at, updated_at
		FROM documents
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, &doc, query, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

type DocumentFilter struct {
	Status      string
	MediaFormat string
	PageSize    int
	Cursor      *DocumentCursor
}

type DocumentCursor struct {
	CreatedAt  time.Time
	DocumentID string
}

func (s *Storage) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `
        SELECT
            id, source_url, title, media_format, lang,
            processing_status, processing_error, retry_count,
            processed_at, created_at, updated_at
        FROM documents
        WHERE 1=1
    `
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.Status != "" {
		query += fmt.Sprintf(" AND processing_status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.MediaFormat != "" {
		query += fmt.Sprintf(" AND media_format = $%d", argIdx)
		args = append(args, filter.MediaFormat)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.DocumentID)
		argIdx += 2
	}

	// Order by created_at DESC, id DESC for consistent pagination
	query += " ORDER BY created_at DESC, id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var docs []model.Document
	err := s.db.SelectContext(ctx, &docs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	return docs, nil
}

func (s *Storage) GetTranscription(ctx context.Context, documentID string) (*model.Transcription, error) {
	var tr model.Transcription
	query := `
		SELECT
			id, document_id, segments, language, source, model,
			full_text, word_count, segment_count, metadata,
			created_at, updated_at
		FROM document_transcriptions
		WHERE document_id = $1
	`

	err := s.db.GetContext(ctx, &tr, query, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTranscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcription: %w", err)
	}

	return &tr, nil
}
