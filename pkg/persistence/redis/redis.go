// Package redis provides Redis-backed persistence for pipelines and project variables.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "polymicro"

// Persistence stores each pipeline as a JSON string plus an index set of pipeline IDs.
//
// Keys:
//
//	<prefix>:pipelines              set of pipeline IDs
//	<prefix>:pipeline:<id>          pipeline document
//	<prefix>:project:<id>:variables project global variables
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
	now    func() time.Time
}

// NewPersistence connects to the Redis server described by url
// (redis://[:password@]host:port/db).
func NewPersistence(ctx context.Context, logger *slog.Logger, url string) (*Persistence, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, logger, defaultPrefix), nil
}

// NewWithClient wraps an existing client. Keys are namespaced with prefix.
func NewWithClient(client redis.UniversalClient, logger *slog.Logger, prefix string) *Persistence {
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Persistence{
		client: client,
		logger: logger.With("module", "redis_persistence"),
		prefix: prefix,
		now:    time.Now,
	}
}

func (p *Persistence) PipelineRepository() persistence.PipelineRepository {
	return p
}

func (p *Persistence) VariableRepository() persistence.VariableRepository {
	return p
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func (p *Persistence) indexKey() string {
	return p.prefix + ":pipelines"
}

func (p *Persistence) pipelineKey(id string) string {
	return p.prefix + ":pipeline:" + id
}

func (p *Persistence) variablesKey(projectID string) string {
	return p.prefix + ":project:" + projectID + ":variables"
}

// List loads every indexed pipeline and pages in memory.
func (p *Persistence) List(ctx context.Context, opts persistence.ListPipelinesOptions) (*persistence.PipelineListResult, error) {
	ids, err := p.client.SMembers(ctx, p.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline ids: %w", err)
	}

	all := make([]*models.Pipeline, 0, len(ids))

	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = p.pipelineKey(id)
		}

		values, err := p.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to load pipelines: %w", err)
		}

		for i, value := range values {
			raw, ok := value.(string)
			if !ok {
				// indexed but missing; the index is repaired on the next delete
				p.logger.WarnContext(ctx, "pipeline index entry without document", "pipeline_id", ids[i])

				continue
			}

			var pipeline models.Pipeline
			if err := json.Unmarshal([]byte(raw), &pipeline); err != nil {
				return nil, fmt.Errorf("failed to unmarshal pipeline %s: %w", ids[i], err)
			}

			all = append(all, &pipeline)
		}
	}

	return persistence.Paginate(all, opts)
}

func (p *Persistence) GetByID(ctx context.Context, id string) (*models.Pipeline, error) {
	if err := persistence.ValidateID(id); err != nil {
		return nil, persistence.NewPipelineError("GetByID", id, err)
	}

	raw, err := p.client.Get(ctx, p.pipelineKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch pipeline %s: %w", id, err)
	}

	var pipeline models.Pipeline
	if err := json.Unmarshal(raw, &pipeline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline %s: %w", id, err)
	}

	return &pipeline, nil
}

// Save writes the document and its index entry in one MULTI/EXEC transaction.
func (p *Persistence) Save(ctx context.Context, pipeline *models.Pipeline) error {
	if err := persistence.ValidateID(pipeline.ID); err != nil {
		return persistence.NewPipelineError("Save", pipeline.ID, err)
	}

	now := p.now().UTC()
	if pipeline.CreatedAt.IsZero() {
		pipeline.CreatedAt = now
	}

	pipeline.UpdatedAt = now

	data, err := json.Marshal(pipeline)
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline %s: %w", pipeline.ID, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.pipelineKey(pipeline.ID), data, 0)
		pipe.SAdd(ctx, p.indexKey(), pipeline.ID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save pipeline %s: %w", pipeline.ID, err)
	}

	return nil
}

func (p *Persistence) Delete(ctx context.Context, id string) error {
	if err := persistence.ValidateID(id); err != nil {
		return persistence.NewPipelineError("Delete", id, err)
	}

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, p.pipelineKey(id))
		pipe.SRem(ctx, p.indexKey(), id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete pipeline %s: %w", id, err)
	}

	return nil
}

func (p *Persistence) GlobalVariables(ctx context.Context, projectID string) ([]models.PipelineVariable, error) {
	if err := persistence.ValidateID(projectID); err != nil {
		return nil, err
	}

	raw, err := p.client.Get(ctx, p.variablesKey(projectID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.PipelineVariable{}, nil
		}

		return nil, fmt.Errorf("failed to fetch variables of project %s: %w", projectID, err)
	}

	var variables []models.PipelineVariable
	if err := json.Unmarshal(raw, &variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables of project %s: %w", projectID, err)
	}

	return variables, nil
}

func (p *Persistence) SaveGlobalVariables(ctx context.Context, projectID string, variables []models.PipelineVariable) error {
	if err := persistence.ValidateID(projectID); err != nil {
		return err
	}

	if variables == nil {
		variables = []models.PipelineVariable{}
	}

	data, err := json.Marshal(variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables of project %s: %w", projectID, err)
	}

	if err := p.client.Set(ctx, p.variablesKey(projectID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save variables of project %s: %w", projectID, err)
	}

	return nil
}
