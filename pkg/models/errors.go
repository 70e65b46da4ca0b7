package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline and video operations.
var (
	// Precondition errors: no side effects occurred, safe to retry
	// immediately after fixing the input.
	ErrValidation     = errors.New("validation failed")
	ErrMissingFile    = errors.New("video file is required")
	ErrNotVideo       = errors.New("file is not a video")
	ErrFileTooLarge   = errors.New("file exceeds size limit")
	ErrMissingTeamID  = errors.New("teamId is required")
	ErrMissingVideoID = errors.New("videoId is required")

	// Stage errors. Compression and upload leave no durable state;
	// a persist failure orphans the uploaded binary.
	ErrCompressionFailed = errors.New("compression failed")
	ErrUploadFailed      = errors.New("upload failed")
	ErrPersistFailed     = errors.New("metadata persist failed")
	ErrAnalysisFailed    = errors.New("analysis failed")
	ErrContextCanceled   = errors.New("context canceled")

	// Storage errors
	ErrVideoNotFound = errors.New("video not found")
	ErrInvalidStatus = errors.New("invalid status transition")
)

// Stage names one ordered step of the upload pipeline.
type Stage string

const (
	StageIdle     Stage = "idle"
	StageCompress Stage = "compressing"
	StageUpload   Stage = "uploading"
	StagePersist  Stage = "persisting"
	StageAnalyze  Stage = "analyzing"
)

// StageError tags an underlying failure with the pipeline stage it
// occurred in, so callers can distinguish stage and cause from a single
// error value.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the stage it failed in.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// ValidationError reports which metadata field failed a precondition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: field %q %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
