package model

import (
	"errors"

	"github.com/rotisserie/eris"
)

// ErrorKind classifies pipeline failures into a closed set. Only failures
// that abort the pipeline carry a kind; absorbed failures (context load,
// classification) are logged and substituted, never typed.
type ErrorKind string

const (
	ErrKindValidation ErrorKind = "validation"
	ErrKindOcr        ErrorKind = "ocr"
	ErrKindParse      ErrorKind = "parse"
	ErrKindFatal      ErrorKind = "fatal"
)

// PipelineError wraps a fatal pipeline failure with its kind.
type PipelineError struct {
	Kind ErrorKind
	Err  error
}

func (e *PipelineError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// OcrFailure wraps an error from the text extraction stage.
func OcrFailure(err error) error {
	return &PipelineError{Kind: ErrKindOcr, Err: err}
}

// ParseFailure wraps an error from the structure parsing stage.
func ParseFailure(err error) error {
	return &PipelineError{Kind: ErrKindParse, Err: err}
}

// FatalFailure wraps any other error that aborts the pipeline.
func FatalFailure(err error) error {
	return &PipelineError{Kind: ErrKindFatal, Err: err}
}

// ValidationFailure creates a validation error from a message. Validation
// errors are rejected before any queue entry is created.
func ValidationFailure(msg string) error {
	return &PipelineError{Kind: ErrKindValidation, Err: eris.New(msg)}
}

// KindOf returns the error kind for err, or ErrKindFatal if err is not a
// PipelineError.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrKindFatal
}
