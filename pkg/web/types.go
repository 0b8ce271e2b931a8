package web

import "github.com/polymicro/manager/pkg/models"

// PositionRequest moves a block; coordinates are snapped to the grid.
type PositionRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

// UpdateConfigRequest replaces the configuration of a block.
type UpdateConfigRequest struct {
	Config models.Config `json:"config" validate:"required"`
}

// UpdateVariableRequest sets one field of a pipeline variable.
type UpdateVariableRequest struct {
	Field string `json:"field" validate:"required,oneof=name value scope"`
	Value string `json:"value"`
}

// GlobalVariablesRequest replaces the global variables of a project.
type GlobalVariablesRequest struct {
	Variables []models.PipelineVariable `json:"variables" validate:"dive"`
}

// LintResponse reports every problem found in a pipeline.
type LintResponse struct {
	Valid  bool        `json:"valid"`
	Errors []LintEntry `json:"errors"`
}

type LintEntry struct {
	BlockID string `json:"block_id,omitempty"`
	Message string `json:"message"`
}

// VariablesResponse lists variables, never as null.
type VariablesResponse struct {
	Variables []models.PipelineVariable `json:"variables"`
}

func variablesResponse(vars []models.PipelineVariable) VariablesResponse {
	if vars == nil {
		vars = make([]models.PipelineVariable, 0)
	}

	return VariablesResponse{Variables: vars}
}
