// Package services provides the pipeline service and its standardized error types.
package services

import (
	"errors"
	"fmt"

	"github.com/polymicro/manager/pkg/editor"
	"github.com/polymicro/manager/pkg/persistence"
	"github.com/polymicro/manager/pkg/registry"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidSortField     = errors.New("invalid sort field")
	ErrPipelineNameRequired = errors.New("pipeline name is required")
	ErrProjectRequired      = errors.New("project ID is required")
	ErrInvalidVariable      = errors.New("invalid variable")
	ErrInvalidPosition      = errors.New("invalid position")

	// Not Found Errors (404).
	ErrPipelineNotFound   = persistence.ErrPipelineNotFound
	ErrBlockNotFound      = errors.New("block not found")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrVariableNotFound   = errors.New("variable not found")

	// Unprocessable (422): the edit is well-formed but the editor refuses it.
	ErrConnectionRejected = editor.ErrInvalidConnection
	ErrInvalidConfig      = registry.ErrInvalidConfig
	ErrUnknownBlockType   = registry.ErrUnknownBlockType
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrPipelineNameRequired) ||
		errors.Is(err, ErrProjectRequired) ||
		errors.Is(err, ErrInvalidVariable) ||
		errors.Is(err, ErrInvalidPosition) ||
		errors.Is(err, persistence.ErrInvalidID)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPipelineNotFound) ||
		errors.Is(err, ErrBlockNotFound) ||
		errors.Is(err, ErrConnectionNotFound) ||
		errors.Is(err, ErrVariableNotFound)
}

// IsUnprocessableError checks if an edit was refused by the editing rules (HTTP 422).
func IsUnprocessableError(err error) bool {
	return errors.Is(err, ErrConnectionRejected) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrUnknownBlockType)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func notFound(op, code string, err error, id string) *ServiceError {
	return &ServiceError{Op: op, Code: code, Message: fmt.Sprintf("%v: %s", err, id), Err: err}
}
