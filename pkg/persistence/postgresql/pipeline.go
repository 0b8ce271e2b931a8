package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/persistence"
)

const pipelineColumns = `
			id
		  , project_id
		  , name
		  , description
		  , variables
		  , created_at
		  , updated_at
`

var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"name":       "name",
}

// PipelineRepository handles pipeline-related database operations. Blocks
// and connections live in child tables keyed by pipeline and kept in
// placement order.
type PipelineRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewPipelineRepository creates a new pipeline repository.
func NewPipelineRepository(db *sql.DB, logger *slog.Logger) *PipelineRepository {
	return &PipelineRepository{db: db, logger: logger, now: time.Now}
}

// List returns one page of live pipelines, sorted and paged by the database.
func (r *PipelineRepository) List(ctx context.Context, opts persistence.ListPipelinesOptions) (*persistence.PipelineListResult, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	var total int64

	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pipelines WHERE deleted_at IS NULL AND ($1 = '' OR project_id = $1)",
		opts.ProjectID,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count pipelines: %w", err)
	}

	// Sort column and order come from an allowlist, never from raw input.
	query := fmt.Sprintf(`
		SELECT %s
		FROM pipelines
		WHERE deleted_at IS NULL AND ($1 = '' OR project_id = $1)
		ORDER BY %s %s, id
		LIMIT $2 OFFSET $3
	`, pipelineColumns, sortColumns[opts.SortBy], strings.ToUpper(opts.SortOrder))

	rows, err := r.db.QueryContext(ctx, query, opts.ProjectID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipelines: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	pipelines := make([]*models.Pipeline, 0)

	for rows.Next() {
		pipeline, err := r.scanPipelineBase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}

		pipelines = append(pipelines, pipeline)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating pipelines: %w", err)
	}

	for _, pipeline := range pipelines {
		err := r.loadBlocksAndConnections(ctx, pipeline)
		if err != nil {
			return nil, fmt.Errorf("failed to load pipeline %s: %w", pipeline.ID, err)
		}
	}

	return &persistence.PipelineListResult{
		Pipelines:   pipelines,
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+len(pipelines)) < total,
	}, nil
}

// GetByID returns the live pipeline with the given ID, or nil when there is none.
func (r *PipelineRepository) GetByID(ctx context.Context, id string) (*models.Pipeline, error) {
	query := `SELECT ` + pipelineColumns + `
		FROM pipelines
		WHERE id = $1 AND deleted_at IS NULL
	`

	row := r.db.QueryRowContext(ctx, query, id)

	pipeline, err := r.scanPipelineBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan pipeline: %w", err)
	}

	err = r.loadBlocksAndConnections(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocks and connections: %w", err)
	}

	return pipeline, nil
}

// Save upserts the pipeline row and replaces its blocks and connections in one transaction.
func (r *PipelineRepository) Save(ctx context.Context, pipeline *models.Pipeline) (err error) {
	if err := persistence.ValidateID(pipeline.ID); err != nil {
		return persistence.NewPipelineError("Save", pipeline.ID, err)
	}

	now := r.now().UTC()
	if pipeline.CreatedAt.IsZero() {
		pipeline.CreatedAt = now
	}

	pipeline.UpdatedAt = now

	variablesJSON, err := marshalVariables(pipeline.Variables)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	pipelineQuery := `
		INSERT INTO pipelines (id, project_id, name, description, variables, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
		ON CONFLICT (id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			variables = EXCLUDED.variables,
			updated_at = EXCLUDED.updated_at,
			deleted_at = NULL
	`

	_, err = tx.ExecContext(ctx, pipelineQuery,
		pipeline.ID,
		pipeline.ProjectID,
		pipeline.Name,
		pipeline.Description,
		variablesJSON,
		pipeline.CreatedAt,
		pipeline.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save pipeline base: %w", err)
	}

	// Connections reference blocks, so they go first.
	_, err = tx.ExecContext(ctx, "DELETE FROM pipeline_connections WHERE pipeline_id = $1", pipeline.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing connections: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM pipeline_blocks WHERE pipeline_id = $1", pipeline.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing blocks: %w", err)
	}

	for i, block := range pipeline.Blocks {
		configJSON, err := json.Marshal(block.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal config of block %s: %w", block.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO pipeline_blocks (pipeline_id, id, ordinal, block_type, category, name, icon, config, position_x, position_y)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			pipeline.ID,
			block.ID,
			i,
			block.Type,
			string(block.Category),
			block.Name,
			block.Icon,
			configJSON,
			block.Position.X,
			block.Position.Y,
		)
		if err != nil {
			return fmt.Errorf("failed to save block %s: %w", block.ID, err)
		}
	}

	for i, conn := range pipeline.Connections {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pipeline_connections (pipeline_id, id, ordinal, source_block_id, source_port, target_block_id, connection_type)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			pipeline.ID,
			conn.ID,
			i,
			conn.Source,
			conn.SourcePort,
			conn.Target,
			string(conn.Type),
		)
		if err != nil {
			return fmt.Errorf("failed to save connection %s: %w", conn.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete soft deletes a pipeline. Deleting a missing pipeline is not an error.
func (r *PipelineRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE pipelines SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL",
		id, r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to delete pipeline %s: %w", id, err)
	}

	return nil
}

func (r *PipelineRepository) scanPipelineBase(scanner interface{ Scan(...any) error }) (*models.Pipeline, error) {
	var (
		pipeline      models.Pipeline
		variablesJSON []byte
	)

	err := scanner.Scan(
		&pipeline.ID,
		&pipeline.ProjectID,
		&pipeline.Name,
		&pipeline.Description,
		&variablesJSON,
		&pipeline.CreatedAt,
		&pipeline.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	pipeline.Variables, err = unmarshalVariables(variablesJSON)
	if err != nil {
		return nil, err
	}

	pipeline.CreatedAt = pipeline.CreatedAt.UTC()
	pipeline.UpdatedAt = pipeline.UpdatedAt.UTC()

	return &pipeline, nil
}

func (r *PipelineRepository) loadBlocksAndConnections(ctx context.Context, pipeline *models.Pipeline) error {
	blocks, err := r.blocks(ctx, pipeline.ID)
	if err != nil {
		return err
	}

	connections, err := r.connections(ctx, pipeline.ID)
	if err != nil {
		return err
	}

	pipeline.Blocks = blocks
	pipeline.Connections = connections

	return nil
}

func (r *PipelineRepository) blocks(ctx context.Context, pipelineID string) ([]*models.BlockInstance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, block_type, category, name, icon, config, position_x, position_y
		FROM pipeline_blocks
		WHERE pipeline_id = $1
		ORDER BY ordinal`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	blocks := make([]*models.BlockInstance, 0)

	for rows.Next() {
		var (
			block      models.BlockInstance
			category   string
			configJSON []byte
		)

		err := rows.Scan(
			&block.ID,
			&block.Type,
			&category,
			&block.Name,
			&block.Icon,
			&configJSON,
			&block.Position.X,
			&block.Position.Y,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}

		block.Category = models.Category(category)

		err = json.Unmarshal(configJSON, &block.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal config of block %s: %w", block.ID, err)
		}

		blocks = append(blocks, &block)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating blocks: %w", err)
	}

	return blocks, nil
}

func (r *PipelineRepository) connections(ctx context.Context, pipelineID string) ([]*models.Connection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_block_id, source_port, target_block_id, connection_type
		FROM pipeline_connections
		WHERE pipeline_id = $1
		ORDER BY ordinal`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	connections := make([]*models.Connection, 0)

	for rows.Next() {
		var (
			conn     models.Connection
			connType string
		)

		err := rows.Scan(&conn.ID, &conn.Source, &conn.SourcePort, &conn.Target, &connType)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}

		conn.Type = models.ConnectionType(connType)
		connections = append(connections, &conn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}

	return connections, nil
}

func marshalVariables(variables []models.PipelineVariable) ([]byte, error) {
	if variables == nil {
		variables = make([]models.PipelineVariable, 0)
	}

	data, err := json.Marshal(variables)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variables: %w", err)
	}

	return data, nil
}

func unmarshalVariables(data []byte) ([]models.PipelineVariable, error) {
	variables := make([]models.PipelineVariable, 0)

	if len(data) == 0 {
		return variables, nil
	}

	err := json.Unmarshal(data, &variables)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}

	return variables, nil
}
