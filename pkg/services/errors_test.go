package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/polymicro/manager/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestServiceError(t *testing.T) {
	err := NewValidationError("CreatePipeline", "name_required", "", ErrPipelineNameRequired)
	assert.Equal(t, "CreatePipeline: pipeline name is required", err.Error())
	assert.ErrorIs(t, err, ErrPipelineNameRequired)

	withMessage := NewValidationError("AddVariable", "invalid_variable", "name is required", ErrInvalidVariable)
	assert.Equal(t, "AddVariable: name is required", withMessage.Error())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err           error
		validation    bool
		notFound      bool
		unprocessable bool
	}{
		{ErrInvalidRequest, true, false, false},
		{fmt.Errorf("wrapped: %w", persistence.ErrInvalidID), true, false, false},
		{persistence.NewPipelineError("GetByID", "x", persistence.ErrPipelineNotFound), false, true, false},
		{ErrBlockNotFound, false, true, false},
		{ErrConnectionRejected, false, false, true},
		{ErrInvalidConfig, false, false, true},
		{errors.New("boom"), false, false, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.validation, IsValidationError(tt.err), tt.err.Error())
		assert.Equal(t, tt.notFound, IsNotFoundError(tt.err), tt.err.Error())
		assert.Equal(t, tt.unprocessable, IsUnprocessableError(tt.err), tt.err.Error())
	}
}

func TestKeyedMutex(t *testing.T) {
	locks := newKeyedMutex()

	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")
	assert.Equal(t, 2, locks.size())

	unlockA()
	unlockB()
	assert.Zero(t, locks.size())
}
