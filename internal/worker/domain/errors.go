package domain

import "errors"

var (
	// ErrDocumentNotFound is returned when a document cannot be found in the database
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentNotClaimable is returned when a document is not in a claimable
	// state: another worker holds it, or it already reached a terminal status
	ErrDocumentNotClaimable = errors.New("document not claimable")

	// ErrInvalidPayload is returned when the queue message body is malformed
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrMaxRetriesExceeded is returned when a job has exhausted its retry budget
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// RetryableError wraps transient errors whose job should be retried via
// lease expiry
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
