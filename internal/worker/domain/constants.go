package domain

// Document processing status values
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Accepted media formats
const (
	MediaFormatVideo = "video"
	MediaFormatAudio = "audio"
)

// Pipeline stages, in execution order
const (
	StageClaim       = "claim"
	StageExtract     = "extract"
	StageTranscribe  = "transcribe"
	StagePersist     = "persist"
	StageAcknowledge = "ack"
)
