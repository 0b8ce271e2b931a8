package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/persistence"
)

// PipelineRepository stores each pipeline as one JSON document.
type PipelineRepository struct {
	root string
	now  func() time.Time
}

// NewPipelineRepository creates a new pipeline repository.
func NewPipelineRepository(root string) *PipelineRepository {
	return &PipelineRepository{root: root, now: time.Now}
}

func (pr *PipelineRepository) dir() string {
	return filepath.Join(pr.root, "pipelines")
}

func (pr *PipelineRepository) path(id string) string {
	return filepath.Join(pr.dir(), id+".json")
}

// List returns paginated and filtered pipelines with in-memory operations.
func (pr *PipelineRepository) List(ctx context.Context, opts persistence.ListPipelinesOptions) (*persistence.PipelineListResult, error) {
	jsonFiles, err := fs.Glob(os.DirFS(pr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline files: %w", err)
	}

	all := make([]*models.Pipeline, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		pipeline, err := pr.GetByID(ctx, strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, fmt.Errorf("failed to load pipeline %s: %w", file, err)
		}

		if pipeline != nil {
			all = append(all, pipeline)
		}
	}

	return persistence.Paginate(all, opts)
}

// GetByID retrieves a pipeline by its ID from the file system.
func (pr *PipelineRepository) GetByID(_ context.Context, id string) (*models.Pipeline, error) {
	if err := persistence.ValidateID(id); err != nil {
		return nil, persistence.NewPipelineError("GetByID", id, err)
	}

	body, err := os.ReadFile(pr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch pipeline %s: %w", id, err)
	}

	var pipeline models.Pipeline

	err = json.Unmarshal(body, &pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline %s: %w", id, err)
	}

	return &pipeline, nil
}

// Save writes the pipeline, stamping CreatedAt on first save and UpdatedAt always.
func (pr *PipelineRepository) Save(_ context.Context, pipeline *models.Pipeline) error {
	if err := persistence.ValidateID(pipeline.ID); err != nil {
		return persistence.NewPipelineError("Save", pipeline.ID, err)
	}

	now := pr.now().UTC()
	if pipeline.CreatedAt.IsZero() {
		pipeline.CreatedAt = now
	}

	pipeline.UpdatedAt = now

	data, err := json.MarshalIndent(pipeline, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline %s: %w", pipeline.ID, err)
	}

	return writeFile(pr.path(pipeline.ID), data)
}

// Delete removes a pipeline by its ID. Deleting a missing pipeline is not an error.
func (pr *PipelineRepository) Delete(_ context.Context, id string) error {
	if err := persistence.ValidateID(id); err != nil {
		return persistence.NewPipelineError("Delete", id, err)
	}

	err := os.Remove(pr.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete pipeline %s: %w", id, err)
	}

	return nil
}
