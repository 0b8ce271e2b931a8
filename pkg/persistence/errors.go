package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrPipelineNotFound indicates a pipeline was not found by the given identifier.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrInvalidID indicates an identifier unusable as a storage key.
	ErrInvalidID = errors.New("invalid identifier")

	// ErrInvalidListOptions indicates unsupported sort or paging parameters.
	ErrInvalidListOptions = errors.New("invalid list options")
)

// PipelineError wraps pipeline-related errors with additional context.
type PipelineError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	PipelineID string
	Err        error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s operation failed for pipeline %s: %v", e.Op, e.PipelineID, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for pipeline errors.
func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewPipelineError creates a new pipeline error with context.
func NewPipelineError(op, pipelineID string, err error) *PipelineError {
	return &PipelineError{
		Op:         op,
		PipelineID: pipelineID,
		Err:        err,
	}
}

// IsPipelineNotFound checks if an error indicates a pipeline was not found.
func IsPipelineNotFound(err error) bool {
	return errors.Is(err, ErrPipelineNotFound)
}
