package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/transcriber-be/internal/worker/domain"
	"github.com/cuongbtq/transcriber-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// Storage handles all document-store operations for the worker
type Storage struct {
	client     *postgresql.Client
	db         *sqlx.DB
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewStorage creates a new Storage instance. staleAfter is the age at which
// a document stuck in 'processing' becomes claimable again; it should match
// the queue's visibility timeout so a reclaim can only happen after the
// corresponding lease has expired.
func NewStorage(client *postgresql.Client, staleAfter time.Duration, logger *slog.Logger) *Storage {
	return &Storage{
		client:     client,
		db:         client.GetDB(),
		staleAfter: staleAfter,
		logger:     logger,
	}
}

// Claim atomically transitions a document from 'pending' (or a stale
// 'processing') to 'processing' and returns it. Returns
// domain.ErrDocumentNotClaimable when the document is held by another worker
// or already reached a terminal status; the caller must acknowledge the
// message and stop.
func (s *Storage) Claim(ctx context.Context, documentID string) (*domain.Document, error) {
	query := `
		UPDATE documents
		SET processing_status = $1,
		    updated_at = NOW()
		WHERE id = $2
		  AND (processing_status = $3
		       OR (processing_status = $1 AND updated_at < NOW() - ($4 * INTERVAL '1 second')))
		RETURNING id, source_url, title, media_format, lang, processing_status,
		          processing_error, retry_count, processed_at, created_at, updated_at
	`

	var doc domain.Document
	err := s.db.GetContext(ctx, &doc, query,
		domain.StatusProcessing,
		documentID,
		domain.StatusPending,
		int(s.staleAfter.Seconds()),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("Document not claimable - already processed or held elsewhere",
				slog.String("document_id", documentID),
			)
			return nil, domain.ErrDocumentNotClaimable
		}
		return nil, fmt.Errorf("failed to claim document: %w", err)
	}

	s.logger.Info("Document claimed",
		slog.String("document_id", documentID),
		slog.String("media_format", doc.MediaFormat),
	)

	return &doc, nil
}

// Complete writes the transcription and marks the document completed in one
// transaction. The transcription write is an upsert keyed by document_id, so
// calling Complete twice with the same result is safe - required because
// at-least-once delivery means the same job may run more than once.
func (s *Storage) Complete(ctx context.Context, documentID string, result *domain.TranscriptionResult) error {
	segmentsJSON, err := json.Marshal(result.Segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}

	metadataJSON, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := s.client.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO document_transcriptions (
			document_id, segments, language, source, model,
			full_text, word_count, segment_count, metadata, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (document_id) DO UPDATE SET
			segments      = EXCLUDED.segments,
			language      = EXCLUDED.language,
			source        = EXCLUDED.source,
			model         = EXCLUDED.model,
			full_text     = EXCLUDED.full_text,
			word_count    = EXCLUDED.word_count,
			segment_count = EXCLUDED.segment_count,
			metadata      = EXCLUDED.metadata,
			updated_at    = NOW()
	`

	_, err = tx.ExecContext(ctx, upsert,
		documentID,
		segmentsJSON,
		result.Language,
		result.Source,
		result.Model,
		result.FullText,
		result.WordCount,
		result.SegmentCount,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transcription: %w", err)
	}

	markDone := `
		UPDATE documents
		SET processing_status = $1,
		    processed_at = NOW(),
		    processing_error = NULL,
		    updated_at = NOW()
		WHERE id = $2
	`

	if _, err := tx.ExecContext(ctx, markDone, domain.StatusCompleted, documentID); err != nil {
		return fmt.Errorf("failed to mark document completed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit completion: %w", err)
	}

	s.logger.Info("Transcription saved",
		slog.String("document_id", documentID),
		slog.Int("word_count", result.WordCount),
		slog.Int("segment_count", result.SegmentCount),
	)

	return nil
}

// Fail records a job failure. When terminal, the document moves to 'error'
// and stays there. When not terminal, the document keeps its 'processing'
// status (the lease expiry drives the retry) and retry_count is incremented
// for observability only - the message's delivery count remains the source
// of truth for retry decisions.
func (s *Storage) Fail(ctx context.Context, documentID, errMsg string, terminal bool) error {
	errMsg = truncateError(errMsg)

	if terminal {
		query := `
			UPDATE documents
			SET processing_status = $1,
			    processing_error = $2,
			    updated_at = NOW()
			WHERE id = $3
		`
		if _, err := s.db.ExecContext(ctx, query, domain.StatusError, errMsg, documentID); err != nil {
			return fmt.Errorf("failed to mark document errored: %w", err)
		}

		s.logger.Info("Document marked as error",
			slog.String("document_id", documentID),
		)
		return nil
	}

	// updated_at is deliberately left alone here: it holds the claim time,
	// and the stale-claim window in Claim measures against it. Bumping it on
	// every retryable failure would push the reclaim point past the next
	// lease expiry.
	query := `
		UPDATE documents
		SET retry_count = retry_count + 1,
		    processing_error = $1
		WHERE id = $2 AND processing_status = $3
	`
	if _, err := s.db.ExecContext(ctx, query, errMsg, documentID, domain.StatusProcessing); err != nil {
		return fmt.Errorf("failed to record retryable failure: %w", err)
	}

	return nil
}

// truncateError bounds stored error text; extractor stderr can be huge
func truncateError(msg string) string {
	const maxLen = 500
	if len(msg) > maxLen {
		return msg[:maxLen]
	}
	return msg
}
