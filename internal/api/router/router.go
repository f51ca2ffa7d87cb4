package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/transcriber-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "transcriber-api-service",
		})
	})

	documentHandler := handler.NewDocumentHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		documents := v1.Group("/documents")
		{
			// GET /api/v1/documents - List documents with filtering and pagination
			documents.GET("", documentHandler.ListDocuments)

			// GET /api/v1/documents/:document_id - Get document details
			documents.GET("/:document_id", documentHandler.GetDocument)

			// GET /api/v1/documents/:document_id/transcription - Get transcription
			documents.GET("/:document_id/transcription", documentHandler.GetTranscription)
		}
	}

	return r
}
