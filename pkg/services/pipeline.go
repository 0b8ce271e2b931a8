package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/polymicro/manager/pkg/editor"
	"github.com/polymicro/manager/pkg/eventbus"
	"github.com/polymicro/manager/pkg/events"
	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/otelhelper"
	"github.com/polymicro/manager/pkg/persistence"
	"github.com/polymicro/manager/pkg/registry"
	"github.com/polymicro/manager/pkg/render"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Options wires the optional collaborators of the pipeline service.
type Options struct {
	Editor    editor.Options
	Publisher eventbus.EventPublisher // nil disables lifecycle events
	Tracer    trace.Tracer
	Logger    *slog.Logger
}

// Pipeline runs load → edit → save transactions over the persistence layer.
// Edits of one pipeline are serialised; edits of different pipelines run
// concurrently. Concurrent writers from other processes are last-write-wins.
type Pipeline struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	rules       editor.Rules
	editorOpts  editor.Options
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	locks       *keyedMutex
}

// NewPipeline creates a new pipeline service.
func NewPipeline(persistence persistence.Persistence, reg *registry.Registry, opts Options) *Pipeline {
	rules := editor.DefaultRules()
	if opts.Editor.Rules != nil {
		rules = *opts.Editor.Rules
	}

	if opts.Tracer == nil {
		opts.Tracer = otelhelper.Tracer("polymicro/services")
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Pipeline{
		persistence: persistence,
		registry:    reg,
		rules:       rules,
		editorOpts:  opts.Editor,
		publisher:   opts.Publisher,
		tracer:      opts.Tracer,
		logger:      opts.Logger.With("module", "pipeline_service"),
		locks:       newKeyedMutex(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Pipeline) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Catalog returns the block definitions available to every pipeline.
func (s *Pipeline) Catalog(category models.Category) []models.BlockDefinition {
	if category == "" {
		return s.registry.Definitions()
	}

	return s.registry.ByCategory(category)
}

// Rules returns the connection policy applied to every pipeline.
func (s *Pipeline) Rules() editor.Rules {
	return s.rules
}

// ListPipelinesRequest contains options for listing pipelines.
type ListPipelinesRequest struct {
	ProjectID string
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

func (s *Pipeline) ListPipelines(ctx context.Context, req ListPipelinesRequest) (_ *persistence.PipelineListResult, err error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "pipeline.list", attribute.String(otelhelper.ProjectIDKey, req.ProjectID))
	defer func() { otelhelper.SetError(span, err); span.End() }()

	result, err := s.persistence.PipelineRepository().List(ctx, persistence.ListPipelinesOptions{
		ProjectID: req.ProjectID,
		Limit:     req.Limit,
		Offset:    req.Offset,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrInvalidListOptions) {
			return nil, NewValidationError("ListPipelines", "invalid_sort", err.Error(), ErrInvalidSortField)
		}

		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}

	return result, nil
}

// GetPipeline returns the pipeline or an ErrPipelineNotFound service error.
func (s *Pipeline) GetPipeline(ctx context.Context, id string) (_ *models.Pipeline, err error) {
	ctx, span := s.startSpan(ctx, "pipeline.get", id)
	defer func() { otelhelper.SetError(span, err); span.End() }()

	return s.load(ctx, "GetPipeline", id)
}

// CreatePipelineRequest describes a new, empty pipeline.
type CreatePipelineRequest struct {
	ProjectID   string                    `json:"project_id"  validate:"required"`
	Name        string                    `json:"name"        validate:"required,min=3"`
	Description string                    `json:"description"`
	Variables   []models.PipelineVariable `json:"variables"   validate:"dive"`
}

func (s *Pipeline) CreatePipeline(ctx context.Context, req CreatePipelineRequest) (_ *models.Pipeline, err error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "pipeline.create", attribute.String(otelhelper.ProjectIDKey, req.ProjectID))
	defer func() { otelhelper.SetError(span, err); span.End() }()

	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, NewValidationError("CreatePipeline", "project_required", "", ErrProjectRequired)
	}

	if strings.TrimSpace(req.Name) == "" {
		return nil, NewValidationError("CreatePipeline", "name_required", "", ErrPipelineNameRequired)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate pipeline ID: %w", err)
	}

	ed := editor.Open(s.registry, &models.Pipeline{
		ID:        id.String(),
		ProjectID: req.ProjectID,
	}, s.editorOpts)
	ed.Rename(strings.TrimSpace(req.Name), req.Description)

	for i := range req.Variables {
		if !ed.Variables().AddVariable(&req.Variables[i]) {
			return nil, NewValidationError("CreatePipeline", "invalid_variable",
				fmt.Sprintf("variable %d: name and value are required and names must be unique per scope", i), ErrInvalidVariable)
		}
	}

	pipeline := ed.Pipeline()

	err = s.persistence.PipelineRepository().Save(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to save pipeline: %w", err)
	}

	s.logger.InfoContext(ctx, "Pipeline created", "pipeline_id", pipeline.ID, "project_id", pipeline.ProjectID)
	s.publish(ctx, events.NewPipelineSaved(pipeline, true))

	return pipeline, nil
}

// UpdatePipelineRequest changes pipeline metadata. Nil fields are kept.
type UpdatePipelineRequest struct {
	Name        *string `json:"name"        validate:"omitempty,min=3"`
	Description *string `json:"description"`
}

func (s *Pipeline) UpdatePipeline(ctx context.Context, id string, req UpdatePipelineRequest) (*models.Pipeline, error) {
	return s.Edit(ctx, id, "UpdatePipeline", func(ed *editor.Editor) error {
		current := ed.Pipeline()
		name, description := current.Name, current.Description

		if req.Name != nil {
			name = strings.TrimSpace(*req.Name)
			if name == "" {
				return NewValidationError("UpdatePipeline", "name_required", "", ErrPipelineNameRequired)
			}
		}

		if req.Description != nil {
			description = *req.Description
		}

		ed.Rename(name, description)

		return nil
	})
}

func (s *Pipeline) DeletePipeline(ctx context.Context, id string) (err error) {
	ctx, span := s.startSpan(ctx, "pipeline.delete", id)
	defer func() { otelhelper.SetError(span, err); span.End() }()

	unlock := s.locks.Lock(id)
	defer unlock()

	pipeline, err := s.load(ctx, "DeletePipeline", id)
	if err != nil {
		return err
	}

	err = s.persistence.PipelineRepository().Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}

	s.logger.InfoContext(ctx, "Pipeline deleted", "pipeline_id", id)
	s.publish(ctx, events.NewPipelineDeleted(id, pipeline.ProjectID))

	return nil
}

// Edit loads the pipeline into an editor, applies fn and saves the result.
// Nothing is saved when fn fails.
func (s *Pipeline) Edit(ctx context.Context, id, op string, fn func(*editor.Editor) error) (_ *models.Pipeline, err error) {
	ctx, span := s.startSpan(ctx, "pipeline.edit", id, attribute.String(otelhelper.OperationKey, op))
	defer func() { otelhelper.SetError(span, err); span.End() }()

	unlock := s.locks.Lock(id)
	defer unlock()

	current, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	ed := editor.Open(s.registry, current, s.editorOpts)

	err = fn(ed)
	if err != nil {
		return nil, err
	}

	updated := ed.Pipeline()

	err = s.persistence.PipelineRepository().Save(ctx, updated)
	if err != nil {
		return nil, fmt.Errorf("failed to save pipeline: %w", err)
	}

	s.logger.DebugContext(ctx, "Pipeline updated", "pipeline_id", id, "operation", op)
	s.publish(ctx, events.NewPipelineSaved(updated, false))

	return updated, nil
}

// AddBlockRequest places a block of a catalog type on the canvas.
type AddBlockRequest struct {
	Type string  `json:"type" validate:"required"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func (s *Pipeline) AddBlock(ctx context.Context, id string, req AddBlockRequest) (*models.BlockInstance, error) {
	var added *models.BlockInstance

	_, err := s.Edit(ctx, id, "AddBlock", func(ed *editor.Editor) error {
		pos, err := position(req.X, req.Y)
		if err != nil {
			return err
		}

		block, err := ed.AddBlock(req.Type, pos)
		if err != nil {
			return &ServiceError{Op: "AddBlock", Code: "unknown_block_type", Message: err.Error(), Err: err}
		}

		added = block.Clone()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return added, nil
}

func (s *Pipeline) MoveBlock(ctx context.Context, id, blockID string, x, y float64) (*models.BlockInstance, error) {
	var moved *models.BlockInstance

	_, err := s.Edit(ctx, id, "MoveBlock", func(ed *editor.Editor) error {
		if _, ok := ed.Blocks().Get(blockID); !ok {
			return notFound("MoveBlock", "block_not_found", ErrBlockNotFound, blockID)
		}

		pos, err := position(x, y)
		if err != nil {
			return err
		}

		ed.MoveBlock(blockID, pos)

		block, _ := ed.Blocks().Get(blockID)
		moved = block.Clone()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return moved, nil
}

// UpdateBlockConfig replaces the configuration of a block after checking it
// against the block's schema. Schema violations unwrap to *registry.ConfigError.
func (s *Pipeline) UpdateBlockConfig(ctx context.Context, id, blockID string, cfg models.Config) (*models.BlockInstance, error) {
	var updated *models.BlockInstance

	_, err := s.Edit(ctx, id, "UpdateBlockConfig", func(ed *editor.Editor) error {
		if _, ok := ed.Blocks().Get(blockID); !ok {
			return notFound("UpdateBlockConfig", "block_not_found", ErrBlockNotFound, blockID)
		}

		err := ed.UpdateConfig(blockID, cfg)
		if err != nil {
			return &ServiceError{Op: "UpdateBlockConfig", Code: "invalid_config", Message: err.Error(), Err: err}
		}

		block, _ := ed.Blocks().Get(blockID)
		updated = block.Clone()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteBlock removes a block and every connection touching it. It returns
// the number of connections removed.
func (s *Pipeline) DeleteBlock(ctx context.Context, id, blockID string) (int, error) {
	var removed int

	_, err := s.Edit(ctx, id, "DeleteBlock", func(ed *editor.Editor) error {
		if _, ok := ed.Blocks().Get(blockID); !ok {
			return notFound("DeleteBlock", "block_not_found", ErrBlockNotFound, blockID)
		}

		removed = ed.DeleteBlock(blockID)

		return nil
	})

	return removed, err
}

// Connect validates and adds a connection. A refused connection unwraps to
// *editor.RejectionError carrying the user-facing reason.
func (s *Pipeline) Connect(ctx context.Context, id string, req editor.ConnectRequest) (*models.Connection, error) {
	var added *models.Connection

	_, err := s.Edit(ctx, id, "Connect", func(ed *editor.Editor) error {
		conn, err := ed.Connect(req)
		if err != nil {
			var rejection *editor.RejectionError
			if errors.As(err, &rejection) {
				return &ServiceError{Op: "Connect", Code: rejection.Rule, Message: rejection.Reason, Err: err}
			}

			return err
		}

		cp := *conn
		added = &cp

		return nil
	})
	if err != nil {
		return nil, err
	}

	return added, nil
}

// CheckConnection validates a connection against the stored pipeline without
// adding it, returning the type the connection would get.
func (s *Pipeline) CheckConnection(ctx context.Context, id string, req editor.ConnectRequest) (_ models.ConnectionType, err error) {
	ctx, span := s.startSpan(ctx, "pipeline.check_connection", id)
	defer func() { otelhelper.SetError(span, err); span.End() }()

	pipeline, err := s.load(ctx, "CheckConnection", id)
	if err != nil {
		return "", err
	}

	connType, err := editor.Open(s.registry, pipeline, s.editorOpts).CanConnect(req)
	if err != nil {
		var rejection *editor.RejectionError
		if errors.As(err, &rejection) {
			return "", &ServiceError{Op: "CheckConnection", Code: rejection.Rule, Message: rejection.Reason, Err: err}
		}

		return "", err
	}

	return connType, nil
}

func (s *Pipeline) Disconnect(ctx context.Context, id, connectionID string) error {
	_, err := s.Edit(ctx, id, "Disconnect", func(ed *editor.Editor) error {
		if !ed.Disconnect(connectionID) {
			return notFound("Disconnect", "connection_not_found", ErrConnectionNotFound, connectionID)
		}

		return nil
	})

	return err
}

func (s *Pipeline) AddVariable(ctx context.Context, id string, v models.PipelineVariable) ([]models.PipelineVariable, error) {
	updated, err := s.Edit(ctx, id, "AddVariable", func(ed *editor.Editor) error {
		if !ed.Variables().AddVariable(&v) {
			return NewValidationError("AddVariable", "invalid_variable",
				"name and value are required and names must be unique per scope", ErrInvalidVariable)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated.Variables, nil
}

func (s *Pipeline) UpdateVariable(ctx context.Context, id string, index int, field editor.VariableField, value string) ([]models.PipelineVariable, error) {
	updated, err := s.Edit(ctx, id, "UpdateVariable", func(ed *editor.Editor) error {
		if index < 0 || index >= ed.Variables().Len() {
			return notFound("UpdateVariable", "variable_not_found", ErrVariableNotFound, fmt.Sprint(index))
		}

		if !ed.Variables().UpdateVariable(index, field, value) {
			return NewValidationError("UpdateVariable", "invalid_variable",
				fmt.Sprintf("cannot set %s: unknown field, empty name or duplicate name", field), ErrInvalidVariable)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated.Variables, nil
}

func (s *Pipeline) DeleteVariable(ctx context.Context, id string, index int) ([]models.PipelineVariable, error) {
	updated, err := s.Edit(ctx, id, "DeleteVariable", func(ed *editor.Editor) error {
		if index < 0 || index >= ed.Variables().Len() {
			return notFound("DeleteVariable", "variable_not_found", ErrVariableNotFound, fmt.Sprint(index))
		}

		ed.Variables().DeleteVariable(index)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated.Variables, nil
}

func (s *Pipeline) GlobalVariables(ctx context.Context, projectID string) (_ []models.PipelineVariable, err error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "project.variables", attribute.String(otelhelper.ProjectIDKey, projectID))
	defer func() { otelhelper.SetError(span, err); span.End() }()

	vars, err := s.persistence.VariableRepository().GlobalVariables(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load global variables: %w", err)
	}

	return vars, nil
}

// SaveGlobalVariables replaces the project-wide variables. Every entry is
// stored with global scope; names must be unique and values non-empty.
func (s *Pipeline) SaveGlobalVariables(ctx context.Context, projectID string, vars []models.PipelineVariable) (_ []models.PipelineVariable, err error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "project.variables.save", attribute.String(otelhelper.ProjectIDKey, projectID))
	defer func() { otelhelper.SetError(span, err); span.End() }()

	if strings.TrimSpace(projectID) == "" {
		return nil, NewValidationError("SaveGlobalVariables", "project_required", "", ErrProjectRequired)
	}

	store := editor.NewVariableStore()

	for i, v := range vars {
		v.Scope = models.ScopeGlobal

		if !store.AddVariable(&v) {
			return nil, NewValidationError("SaveGlobalVariables", "invalid_variable",
				fmt.Sprintf("variable %d: name and value are required and names must be unique", i), ErrInvalidVariable)
		}
	}

	unlock := s.locks.Lock("project:" + projectID)
	defer unlock()

	saved := store.Variables()

	err = s.persistence.VariableRepository().SaveGlobalVariables(ctx, projectID, saved)
	if err != nil {
		return nil, fmt.Errorf("failed to save global variables: %w", err)
	}

	return saved, nil
}

// Lint checks a stored pipeline against the catalog, the connection rules and
// the variables visible to it.
func (s *Pipeline) Lint(ctx context.Context, id string) (_ []editor.LintError, err error) {
	ctx, span := s.startSpan(ctx, "pipeline.lint", id)
	defer func() { otelhelper.SetError(span, err); span.End() }()

	pipeline, err := s.load(ctx, "Lint", id)
	if err != nil {
		return nil, err
	}

	globals, err := s.persistence.VariableRepository().GlobalVariables(ctx, pipeline.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load global variables: %w", err)
	}

	projectGlobals := make(map[string]string, len(globals))
	for _, v := range globals {
		projectGlobals[v.Name] = v.Value
	}

	lintErrors := editor.Lint(s.registry, s.rules, pipeline, projectGlobals)
	if lintErrors == nil {
		lintErrors = make([]editor.LintError, 0)
	}

	return lintErrors, nil
}

// Diagram renders a stored pipeline as Graphviz DOT, or as a plain-text
// summary when format is "text".
func (s *Pipeline) Diagram(ctx context.Context, id, format string) (_ string, err error) {
	ctx, span := s.startSpan(ctx, "pipeline.diagram", id)
	defer func() { otelhelper.SetError(span, err); span.End() }()

	pipeline, err := s.load(ctx, "Diagram", id)
	if err != nil {
		return "", err
	}

	switch format {
	case "", "dot":
		return render.DOT(pipeline)
	case "text":
		return render.Text(pipeline), nil
	default:
		return "", NewValidationError("Diagram", "invalid_format", "format must be dot or text", ErrInvalidRequest)
	}
}

func (s *Pipeline) load(ctx context.Context, op, id string) (*models.Pipeline, error) {
	if err := persistence.ValidateID(id); err != nil {
		return nil, notFound(op, "pipeline_not_found", ErrPipelineNotFound, id)
	}

	pipeline, err := s.persistence.PipelineRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline: %w", err)
	}

	if pipeline == nil {
		return nil, notFound(op, "pipeline_not_found", ErrPipelineNotFound, id)
	}

	return pipeline, nil
}

func (s *Pipeline) publish(ctx context.Context, event interface {
	eventbus.Event
	GetPipelineID() string
}) {
	if s.publisher == nil {
		return
	}

	err := s.publisher.Publish(ctx, event.GetPipelineID(), event)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish pipeline event",
			"pipeline_id", event.GetPipelineID(), "event_type", event.GetType(), "error", err)
	}
}

// nolint:spancheck
func (s *Pipeline) startSpan(ctx context.Context, name, pipelineID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otelhelper.StartSpan(ctx, s.tracer, name, append(attrs, attribute.String(otelhelper.PipelineIDKey, pipelineID))...)
}

func position(x, y float64) (models.Position, error) {
	for _, v := range []float64{x, y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.Position{}, NewValidationError("Position", "invalid_position", "coordinates must be finite", ErrInvalidPosition)
		}
	}

	return models.Position{X: x, Y: y}, nil
}
