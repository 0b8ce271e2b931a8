package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/persistence"
)

// VariableRepository stores project-wide global variables.
type VariableRepository struct {
	root string
}

func NewVariableRepository(root string) *VariableRepository {
	return &VariableRepository{root: root}
}

func (vr *VariableRepository) path(projectID string) string {
	return filepath.Join(vr.root, "projects", projectID, "variables.json")
}

// GlobalVariables returns the project's variables, or none when nothing was saved yet.
func (vr *VariableRepository) GlobalVariables(_ context.Context, projectID string) ([]models.PipelineVariable, error) {
	if err := persistence.ValidateID(projectID); err != nil {
		return nil, err
	}

	body, err := os.ReadFile(vr.path(projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return []models.PipelineVariable{}, nil
		}

		return nil, fmt.Errorf("failed to read variables of project %s: %w", projectID, err)
	}

	var variables []models.PipelineVariable
	if err := json.Unmarshal(body, &variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables of project %s: %w", projectID, err)
	}

	return variables, nil
}

func (vr *VariableRepository) SaveGlobalVariables(_ context.Context, projectID string, variables []models.PipelineVariable) error {
	if err := persistence.ValidateID(projectID); err != nil {
		return err
	}

	if variables == nil {
		variables = []models.PipelineVariable{}
	}

	data, err := json.MarshalIndent(variables, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal variables of project %s: %w", projectID, err)
	}

	return writeFile(vr.path(projectID), data)
}
