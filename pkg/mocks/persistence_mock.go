// Package mocks provides testify mocks of the persistence and event bus interfaces.
package mocks

import (
	"context"

	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPipelineRepository is a mock implementation of persistence.PipelineRepository interface.
type MockPipelineRepository struct {
	mock.Mock
}

func (m *MockPipelineRepository) List(ctx context.Context, opts persistence.ListPipelinesOptions) (*persistence.PipelineListResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.PipelineListResult), args.Error(1)
}

func (m *MockPipelineRepository) GetByID(ctx context.Context, id string) (*models.Pipeline, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Pipeline), args.Error(1)
}

func (m *MockPipelineRepository) Save(ctx context.Context, pipeline *models.Pipeline) error {
	args := m.Called(ctx, pipeline)

	return args.Error(0)
}

func (m *MockPipelineRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockVariableRepository is a mock implementation of persistence.VariableRepository interface.
type MockVariableRepository struct {
	mock.Mock
}

func (m *MockVariableRepository) GlobalVariables(ctx context.Context, projectID string) ([]models.PipelineVariable, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.PipelineVariable), args.Error(1)
}

func (m *MockVariableRepository) SaveGlobalVariables(ctx context.Context, projectID string, variables []models.PipelineVariable) error {
	args := m.Called(ctx, projectID, variables)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Pipelines *MockPipelineRepository
	Variables *MockVariableRepository
}

// NewMockPersistence wires fresh repository mocks into a MockPersistence.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Pipelines: &MockPipelineRepository{},
		Variables: &MockVariableRepository{},
	}
}

func (m *MockPersistence) PipelineRepository() persistence.PipelineRepository {
	return m.Pipelines
}

func (m *MockPersistence) VariableRepository() persistence.VariableRepository {
	return m.Variables
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
