package handler

import (
	"log/slog"

	"github.com/cuongbtq/transcriber-be/internal/api/storage"
	"github.com/cuongbtq/transcriber-be/shared/postgresql"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	DBClient *postgresql.Client
}

// DocumentHandler handles document-related HTTP requests
type DocumentHandler struct {
	logger  *slog.Logger
	storage *storage.Storage
}

// NewDocumentHandler creates a new DocumentHandler instance
func NewDocumentHandler(deps *Dependencies) *DocumentHandler {
	return &DocumentHandler{
		logger:  deps.Logger,
		storage: storage.NewStorage(deps.DBClient),
	}
}
