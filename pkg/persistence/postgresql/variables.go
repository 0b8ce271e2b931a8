package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/polymicro/manager/pkg/models"
)

// VariableRepository stores one JSONB document of global variables per project.
type VariableRepository struct {
	db *sql.DB
}

func NewVariableRepository(db *sql.DB) *VariableRepository {
	return &VariableRepository{db: db}
}

func (r *VariableRepository) GlobalVariables(ctx context.Context, projectID string) ([]models.PipelineVariable, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx,
		"SELECT variables FROM project_variables WHERE project_id = $1", projectID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return make([]models.PipelineVariable, 0), nil
		}

		return nil, fmt.Errorf("failed to query global variables of project %s: %w", projectID, err)
	}

	return unmarshalVariables(data)
}

func (r *VariableRepository) SaveGlobalVariables(ctx context.Context, projectID string, variables []models.PipelineVariable) error {
	data, err := marshalVariables(variables)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO project_variables (project_id, variables, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (project_id) DO UPDATE SET
			variables = EXCLUDED.variables,
			updated_at = EXCLUDED.updated_at`,
		projectID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save global variables of project %s: %w", projectID, err)
	}

	return nil
}
