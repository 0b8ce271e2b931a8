// Package persistence provides the storage abstraction for pipelines and
// project-wide variables.
package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/polymicro/manager/pkg/models"
)

type Persistence interface {
	PipelineRepository() PipelineRepository
	VariableRepository() VariableRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// PipelineRepository stores whole pipeline documents. GetByID returns nil and
// no error when the pipeline does not exist.
type PipelineRepository interface {
	List(ctx context.Context, opts ListPipelinesOptions) (*PipelineListResult, error)
	GetByID(ctx context.Context, id string) (*models.Pipeline, error)
	Save(ctx context.Context, pipeline *models.Pipeline) error
	Delete(ctx context.Context, id string) error
}

// VariableRepository stores the global variables shared by every pipeline of a project.
type VariableRepository interface {
	GlobalVariables(ctx context.Context, projectID string) ([]models.PipelineVariable, error)
	SaveGlobalVariables(ctx context.Context, projectID string, variables []models.PipelineVariable) error
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListPipelinesOptions filters, sorts and pages pipeline listings.
type ListPipelinesOptions struct {
	ProjectID string
	Limit     int
	Offset    int
	SortBy    string // created_at, updated_at or name
	SortOrder string // asc or desc
}

// PipelineListResult is one page of a listing.
type PipelineListResult struct {
	Pipelines   []*models.Pipeline `json:"pipelines"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

var allowedSorts = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
}

// Normalize applies listing defaults and rejects unknown sort fields or orders.
func (o ListPipelinesOptions) Normalize() (ListPipelinesOptions, error) {
	if o.Limit <= 0 || o.Limit > MaxListLimit {
		o.Limit = DefaultListLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	if o.SortBy == "" {
		o.SortBy = "created_at"
	}

	if o.SortOrder == "" {
		o.SortOrder = "desc"
	}

	o.SortOrder = strings.ToLower(o.SortOrder)

	if !allowedSorts[o.SortBy] {
		return o, fmt.Errorf("%w: sort field %q", ErrInvalidListOptions, o.SortBy)
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		return o, fmt.Errorf("%w: sort order %q", ErrInvalidListOptions, o.SortOrder)
	}

	return o, nil
}

// Paginate filters, sorts and pages an in-memory set of pipelines. Stores
// that cannot query natively load every document and delegate here.
func Paginate(pipelines []*models.Pipeline, opts ListPipelinesOptions) (*PipelineListResult, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Pipeline, 0, len(pipelines))

	for _, p := range pipelines {
		if opts.ProjectID != "" && p.ProjectID != opts.ProjectID {
			continue
		}

		filtered = append(filtered, p)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if opts.SortOrder == "desc" {
			a, b = b, a
		}

		switch opts.SortBy {
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "name":
			return a.Name < b.Name
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})

	total := int64(len(filtered))

	if opts.Offset >= len(filtered) {
		return &PipelineListResult{Pipelines: make([]*models.Pipeline, 0), TotalCount: total}, nil
	}

	end := min(opts.Offset+opts.Limit, len(filtered))

	return &PipelineListResult{
		Pipelines:   filtered[opts.Offset:end],
		TotalCount:  total,
		HasNextPage: end < len(filtered),
	}, nil
}

// ValidateID rejects identifiers that cannot safely name a stored document.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\:`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	return nil
}
