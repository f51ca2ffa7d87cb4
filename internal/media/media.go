package media

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Audio is a handle to extracted audio on local disk
type Audio struct {
	Path     string
	Format   string
	Title    string
	VideoID  string
	Duration float64 // seconds, 0 when unknown
	Platform string
}

// Cleanup removes the extracted audio file. Safe to call more than once.
func (a *Audio) Cleanup() {
	if a == nil || a.Path == "" {
		return
	}
	_ = os.Remove(a.Path)
}

// Segment is one span of transcribed speech
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Transcript is the output of a transcription provider
type Transcript struct {
	Segments []Segment
	Language string
	Model    string

	// TranscriptionTime is wall-clock processing time in seconds
	TranscriptionTime float64
}

// Extractor pulls audio out of a media URL using an external downloader
type Extractor interface {
	ExtractAudio(ctx context.Context, sourceURL string) (*Audio, error)
}

// Transcriber converts extracted audio into timed text segments
type Transcriber interface {
	Transcribe(ctx context.Context, audio *Audio) (*Transcript, error)
}

// Stage names used in PipelineError
const (
	StageExtract    = "extract"
	StageTranscribe = "transcribe"
)

// PipelineError is a classified extraction or transcription failure. The
// adapter decides transient vs terminal at the boundary so the job pipeline
// never has to parse tool output.
type PipelineError struct {
	Stage     string
	Transient bool
	Err       error
}

func (e *PipelineError) Error() string {
	kind := "terminal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a media failure worth retrying.
// Non-media errors return false.
func IsTransient(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}

// IsMediaError reports whether err originated in this package
func IsMediaError(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe)
}

func extractionError(transient bool, err error) error {
	return &PipelineError{Stage: StageExtract, Transient: transient, Err: err}
}

func transcriptionError(transient bool, err error) error {
	return &PipelineError{Stage: StageTranscribe, Transient: transient, Err: err}
}
