package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/transcriber-be/internal/api/domain"
	"github.com/cuongbtq/transcriber-be/internal/api/dto"
	"github.com/cuongbtq/transcriber-be/internal/api/model"
	"github.com/cuongbtq/transcriber-be/internal/api/storage"
)

// GetDocument handles GET /api/v1/documents/:document_id
// Retrieves one document with its processing state
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	documentID := c.Param("document_id")

	h.logger.Info("GetDocument called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("document_id", documentID),
	)

	if _, err := uuid.Parse(documentID); err != nil {
		h.logger.Error("Invalid document_id format", slog.String("document_id", documentID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "document_id must be a valid UUID",
		})
		return
	}

	doc, err := h.storage.GetDocumentByID(c.Request.Context(), documentID)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Document not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get document", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get document",
		})
		return
	}

	c.JSON(http.StatusOK, toDocumentDTO(doc))
}

// ListDocuments handles GET /api/v1/documents
// Lists documents with optional filtering and cursor pagination
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	h.logger.Info("ListDocuments called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
	)

	var req dto.ListDocumentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Status != "" && !validStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid status filter",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeDocumentCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.DocumentFilter{
		Status:      req.Status,
		MediaFormat: req.MediaFormat,
		PageSize:    req.PageSize,
		Cursor:      cursor,
	}

	docs, err := h.storage.ListDocuments(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list documents", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list documents",
		})
		return
	}

	// One extra row was fetched to detect whether more results exist
	hasMore := len(docs) > req.PageSize
	if hasMore {
		docs = docs[:req.PageSize]
	}

	docResponse := make([]dto.DocumentDTO, len(docs))
	for i := range docs {
		docResponse[i] = toDocumentDTO(&docs[i])
	}

	var nextCursor string
	if hasMore {
		lastDoc := docs[len(docs)-1]
		cursorObj := storage.DocumentCursor{
			CreatedAt:  lastDoc.CreatedAt,
			DocumentID: lastDoc.ID,
		}
		nextCursor, err = EncodeDocumentCursor(&cursorObj)
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListDocumentsResponse{
		Documents:  docResponse,
		NextCursor: nextCursor,
	})
}

// GetTranscription handles GET /api/v1/documents/:document_id/transcription
// Returns the persisted transcription for a completed document
func (h *DocumentHandler) GetTranscription(c *gin.Context) {
	documentID := c.Param("document_id")

	h.logger.Info("GetTranscription called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("document_id", documentID),
	)

	if _, err := uuid.Parse(documentID); err != nil {
		h.logger.Error("Invalid document_id format", slog.String("document_id", documentID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "document_id must be a valid UUID",
		})
		return
	}

	tr, err := h.storage.GetTranscription(c.Request.Context(), documentID)
	if errors.Is(err, domain.ErrTranscriptionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Transcription not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get transcription", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get transcription",
		})
		return
	}

	c.JSON(http.StatusOK, dto.TranscriptionDTO{
		ID:           tr.ID,
		DocumentID:   tr.DocumentID,
		Segments:     tr.Segments,
		Language:     tr.Language,
		Source:       tr.Source,
		Model:        tr.Model.String,
		FullText:     tr.FullText,
		WordCount:    tr.WordCount,
		SegmentCount: tr.SegmentCount,
		Metadata:     tr.Metadata,
		CreatedAt:    tr.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    tr.UpdatedAt.Format(time.RFC3339),
	})
}

func toDocumentDTO(doc *model.Document) dto.DocumentDTO {
	d := dto.DocumentDTO{
		ID:              doc.ID,
		SourceURL:       doc.SourceURL,
		Title:           doc.Title.String,
		MediaFormat:     doc.MediaFormat,
		Lang:            doc.Lang.String,
		Status:          doc.Status,
		ProcessingError: doc.ProcessingError.String,
		RetryCount:      doc.RetryCount,
		CreatedAt:       doc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       doc.UpdatedAt.Format(time.RFC3339),
	}
	if doc.ProcessedAt.Valid {
		d.ProcessedAt = doc.ProcessedAt.Time.Format(time.RFC3339)
	}
	return d
}

func validStatus(status string) bool {
	switch status {
	case domain.DocumentStatusPending, domain.DocumentStatusProcessing,
		domain.DocumentStatusCompleted, domain.DocumentStatusError:
		return true
	}
	return false
}
