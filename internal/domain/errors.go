package domain

import (
	"errors"
	"fmt"
)

// Errors surfaced by the conversion pipeline and the output store.
// Callers classify with errors.Is.
var (
	ErrInvalidURL        = errors.New("invalid video URL")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrStreamUnavailable = errors.New("stream unavailable")
	ErrEncode            = errors.New("encode failed")
	ErrNotFound          = errors.New("file not found")
	ErrInvalidName       = errors.New("invalid file name")
	ErrFilesystem        = errors.New("filesystem error")
)

// FailureStage records where in the pipeline a job failed
type FailureStage string

const (
	StageValidation FailureStage = "validation"
	StageMetadata   FailureStage = "metadata"
	StageStream     FailureStage = "stream"
	StageEncode     FailureStage = "encode"
	StageStore      FailureStage = "store"
)

// JobError is returned by the pipeline for every failed job
type JobError struct {
	JobID string
	Stage FailureStage
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err was raised before any I/O took place
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrUnsupportedFormat)
}

// StageOf returns the failure stage carried by err, or "" if there is none
func StageOf(err error) FailureStage {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Stage
	}
	return ""
}
