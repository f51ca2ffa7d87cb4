package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cuongbtq/transcriber-be/internal/media"
	"github.com/cuongbtq/transcriber-be/internal/worker/domain"
	"github.com/cuongbtq/transcriber-be/shared/pgmq"
)

// Queue is the subset of queue operations the pipeline and dispatcher need.
// *pgmq.Client satisfies it.
type Queue interface {
	Read(ctx context.Context, vt time.Duration, qty int) ([]pgmq.Message, error)
	Delete(ctx context.Context, msgID int64) (bool, error)
	Archive(ctx context.Context, msgID int64) (bool, error)
}

// DocumentStore is the document persistence surface the pipeline needs
type DocumentStore interface {
	Claim(ctx context.Context, documentID string) (*domain.Document, error)
	Complete(ctx context.Context, documentID string, result *domain.TranscriptionResult) error
	Fail(ctx context.Context, documentID, errMsg string, terminal bool) error
}

// Outcome summarizes how one pipeline invocation ended
type Outcome int

const (
	// OutcomeCompleted means the transcription was persisted and the message
	// acknowledged (or completion recorded and the ack left to redelivery).
	OutcomeCompleted Outcome = iota

	// OutcomeSkipped means the document was not claimable; the message was
	// acknowledged without doing any work.
	OutcomeSkipped

	// OutcomeRetrying means a transient failure left the message leased so
	// it redelivers after the visibility timeout expires.
	OutcomeRetrying

	// OutcomeArchived means the message was moved to the archive, either on
	// a terminal failure, an exhausted retry budget, or a malformed payload.
	OutcomeArchived
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRetrying:
		return "retrying"
	case OutcomeArchived:
		return "archived"
	default:
		return "unknown"
	}
}

// Pipeline runs one queue message through claim, extract, transcribe,
// persist and acknowledge. It owns the retryable/terminal decision for
// every failure along the way.
type Pipeline struct {
	queue       Queue
	store       DocumentStore
	extractor   media.Extractor
	transcriber media.Transcriber
	maxRetries  int
	logger      *slog.Logger
}

func NewPipeline(queue Queue, store DocumentStore, extractor media.Extractor, transcriber media.Transcriber, maxRetries int, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		queue:       queue,
		store:       store,
		extractor:   extractor,
		transcriber: transcriber,
		maxRetries:  maxRetries,
		logger:      logger,
	}
}

// Run processes a single message to completion. It never returns an error:
// every failure mode resolves to an outcome and the matching queue and
// document side effects.
func (p *Pipeline) Run(ctx context.Context, msg *pgmq.Message, jc *domain.JobContext) (Outcome, error) {
	log := p.logger.With(
		slog.Int64("msg_id", msg.MsgID),
		slog.Int("attempt", msg.ReadCount),
	)

	var payload domain.JobPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.DocumentID == "" {
		if err == nil {
			err = domain.ErrInvalidPayload
		}
		// No document to mark. Retrying cannot fix a malformed payload, so
		// archive it for inspection instead of acknowledging it away.
		log.Warn("Malformed job payload, archiving message", slog.String("error", err.Error()))
		p.archive(ctx, log, msg.MsgID)
		return OutcomeArchived, fmt.Errorf("malformed payload: %w", err)
	}
	jc.DocumentID = payload.DocumentID
	log = log.With(slog.String("document_id", payload.DocumentID))

	jc.Stage = domain.StageClaim
	doc, err := p.store.Claim(ctx, payload.DocumentID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotClaimable) || errors.Is(err, domain.ErrDocumentNotFound) {
			// Another worker owns the document, or a previous run completed
			// it but crashed before the ack. Either way the message is done.
			log.Info("Document not claimable, acknowledging without work",
				slog.String("reason", err.Error()))
			p.ack(ctx, log, msg.MsgID)
			return OutcomeSkipped, nil
		}
		// Infrastructure failure talking to the database. Leave the lease
		// to expire and retry within budget.
		return p.fail(ctx, log, jc, fmt.Errorf("claim document: %w", err), true)
	}

	log.Info("Processing document",
		slog.String("url", doc.SourceURL),
		slog.String("media_format", doc.MediaFormat),
	)

	if doc.SourceURL == "" {
		return p.fail(ctx, log, jc, errors.New("document has no source_url"), false)
	}
	if doc.MediaFormat != domain.MediaFormatVideo && doc.MediaFormat != domain.MediaFormatAudio {
		return p.fail(ctx, log, jc, fmt.Errorf("unsupported media_format %q", doc.MediaFormat), false)
	}

	jc.Stage = domain.StageExtract
	audio, err := p.extractor.ExtractAudio(ctx, doc.SourceURL)
	if err != nil {
		return p.fail(ctx, log, jc, err, media.IsTransient(err))
	}
	defer audio.Cleanup()

	jc.Stage = domain.StageTranscribe
	transcript, err := p.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return p.fail(ctx, log, jc, err, media.IsTransient(err))
	}

	result := buildResult(audio, transcript)

	jc.Stage = domain.StagePersist
	if err := p.store.Complete(ctx, payload.DocumentID, result); err != nil {
		// The transcription itself succeeded; only the write failed. Always
		// worth retrying within budget.
		return p.fail(ctx, log, jc, fmt.Errorf("persist transcription: %w", err), true)
	}

	jc.Stage = domain.StageAcknowledge
	if ok, err := p.queue.Delete(ctx, msg.MsgID); err != nil || !ok {
		// The document is already completed. On redelivery the claim fails
		// and the message is acknowledged then, so completion stands.
		log.Warn("Ack failed after completion, message will be redelivered",
			slog.Any("error", err))
	}

	log.Info("Document transcribed",
		slog.Int("segments", result.SegmentCount),
		slog.Int("words", result.WordCount),
		slog.String("language", result.Language),
		slog.Duration("elapsed", time.Since(jc.StartedAt)),
	)
	return OutcomeCompleted, nil
}

// fail resolves a pipeline failure into document state and queue side
// effects. Transient failures within the retry budget leave the message
// leased so redelivery retries it; everything else is terminal.
func (p *Pipeline) fail(ctx context.Context, log *slog.Logger, jc *domain.JobContext, cause error, transient bool) (Outcome, error) {
	if transient && jc.Attempt < p.maxRetries {
		log.Warn("Job failed, leaving lease to expire for retry",
			slog.String("stage", jc.Stage),
			slog.Int("max_retries", p.maxRetries),
			slog.String("error", cause.Error()),
		)
		if err := p.store.Fail(ctx, jc.DocumentID, cause.Error(), false); err != nil {
			log.Error("Failed to record retryable failure", slog.Any("error", err))
		}
		// No ack, no archive. Visibility timeout expiry is the retry
		// mechanism.
		return OutcomeRetrying, domain.NewRetryableError(cause)
	}

	msg := cause.Error()
	if transient {
		msg = fmt.Sprintf("%v: %v", domain.ErrMaxRetriesExceeded, cause)
	}
	log.Error("Job failed terminally, archiving message",
		slog.String("stage", jc.Stage),
		slog.Bool("retries_exhausted", transient),
		slog.String("error", msg),
	)
	if jc.DocumentID != "" {
		if err := p.store.Fail(ctx, jc.DocumentID, msg, true); err != nil {
			log.Error("Failed to record terminal failure", slog.Any("error", err))
		}
	}
	p.archive(ctx, log, jc.MsgID)
	return OutcomeArchived, cause
}

func (p *Pipeline) ack(ctx context.Context, log *slog.Logger, msgID int64) {
	if ok, err := p.queue.Delete(ctx, msgID); err != nil || !ok {
		log.Warn("Failed to acknowledge message", slog.Any("error", err))
	}
}

func (p *Pipeline) archive(ctx context.Context, log *slog.Logger, msgID int64) {
	if ok, err := p.queue.Archive(ctx, msgID); err != nil || !ok {
		log.Warn("Failed to archive message", slog.Any("error", err))
	}
}

func buildResult(audio *media.Audio, transcript *media.Transcript) *domain.TranscriptionResult {
	segments := make([]domain.Segment, 0, len(transcript.Segments))
	for _, s := range transcript.Segments {
		segments = append(segments, domain.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}

	metadata := map[string]any{
		"platform":           audio.Platform,
		"transcription_time": math.Round(transcript.TranscriptionTime*100) / 100,
	}
	if audio.Title != "" {
		metadata["title"] = audio.Title
	}
	if audio.VideoID != "" {
		metadata["video_id"] = audio.VideoID
	}
	if audio.Duration > 0 {
		metadata["duration"] = audio.Duration
	}

	return domain.NewTranscriptionResult(segments, transcript.Language, transcript.Model, metadata)
}
