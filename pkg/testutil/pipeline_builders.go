// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"
	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/registry"
)

// CreateTestBlock places a block of the given built-in type with its default
// configuration. It panics on an unknown type.
func CreateTestBlock(blockType string, overrides ...func(*models.BlockInstance)) *models.BlockInstance {
	def, ok := registry.Default().Lookup(blockType)
	if !ok {
		panic("unknown block type " + blockType)
	}

	block := &models.BlockInstance{
		ID:       blockType + "-" + uuid.NewString()[:8],
		Type:     def.ID,
		Name:     def.Name,
		Icon:     def.Icon,
		Category: def.Category,
		Config:   def.DefaultConfig(),
	}

	for _, override := range overrides {
		override(block)
	}

	return block
}

// WithID sets the block ID.
func WithID(id string) func(*models.BlockInstance) {
	return func(b *models.BlockInstance) {
		b.ID = id
	}
}

// WithPosition sets the block position.
func WithPosition(x, y float64) func(*models.BlockInstance) {
	return func(b *models.BlockInstance) {
		b.Position = models.Position{X: x, Y: y}
	}
}

// WithConfig merges values into the block configuration.
func WithConfig(config models.Config) func(*models.BlockInstance) {
	return func(b *models.BlockInstance) {
		if b.Config == nil {
			b.Config = make(models.Config, len(config))
		}

		for k, v := range config {
			b.Config[k] = v
		}
	}
}

// CreateTestPipeline returns a webhook → build → test pipeline of project "project-1".
func CreateTestPipeline(overrides ...func(*models.Pipeline)) *models.Pipeline {
	hook := CreateTestBlock(registry.BlockWebhook, WithID("hook"), WithPosition(0, 0))
	build := CreateTestBlock(registry.BlockBuild, WithID("build"), WithPosition(160, 0))
	test := CreateTestBlock(registry.BlockTest, WithID("test"), WithPosition(320, 0))

	pipeline := &models.Pipeline{
		ID:          uuid.NewString(),
		ProjectID:   "project-1",
		Name:        "Test Pipeline",
		Description: "Build and test on every push",
		Blocks:      []*models.BlockInstance{hook, build, test},
		Connections: []*models.Connection{
			{ID: "hook-build", Source: "hook", SourcePort: models.PortSuccess, Target: "build", Type: models.ConnectionSuccess},
			{ID: "build-test", Source: "build", SourcePort: models.PortSuccess, Target: "test", Type: models.ConnectionSuccess},
		},
		Variables: []models.PipelineVariable{
			{Name: "BRANCH", Value: "main", Scope: models.ScopeLocal},
		},
	}

	for _, override := range overrides {
		override(pipeline)
	}

	return pipeline
}

// WithPipelineID sets the pipeline ID.
func WithPipelineID(id string) func(*models.Pipeline) {
	return func(p *models.Pipeline) {
		p.ID = id
	}
}

// WithProject sets the owning project.
func WithProject(projectID string) func(*models.Pipeline) {
	return func(p *models.Pipeline) {
		p.ProjectID = projectID
	}
}

// WithName sets the pipeline name.
func WithName(name string) func(*models.Pipeline) {
	return func(p *models.Pipeline) {
		p.Name = name
	}
}

// WithBlock appends a block.
func WithBlock(block *models.BlockInstance) func(*models.Pipeline) {
	return func(p *models.Pipeline) {
		p.Blocks = append(p.Blocks, block)
	}
}
