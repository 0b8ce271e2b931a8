// Package editor implements the pipeline editing model: placing blocks on a
// snapped canvas, maintaining substitution variables and validating the
// connections drawn between blocks.
package editor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/registry"
)

// Options tunes an Editor. The zero value uses the default grid, rules, clock and IDs.
type Options struct {
	GridSize float64
	Rules    *Rules
	Now      func() time.Time
	NewID    func() string
}

// ConnectRequest describes a connection the user is drawing. Source may
// name the output port directly as "{block_id}:{port}" when SourcePort is empty.
type ConnectRequest struct {
	Source     string `json:"source"      validate:"required"`
	SourcePort string `json:"source_port" validate:"required"`
	Target     string `json:"target"      validate:"required"`
}

// Normalize splits a port ID given as Source into its block and port.
func (r ConnectRequest) Normalize() ConnectRequest {
	if r.SourcePort != "" {
		return r
	}

	if block, port, ok := models.ParsePortID(r.Source); ok {
		r.Source, r.SourcePort = block, port
	}

	return r
}

// Editor is the pipeline aggregate under edit. It combines the block,
// variable and connection stores and keeps them consistent with each other.
//
// An Editor is not safe for concurrent use.
type Editor struct {
	registry    *registry.Registry
	rules       Rules
	validator   *Validator
	blocks      *BlockStore
	variables   *VariableStore
	connections *ConnectionSet
	newID       func() string

	pipeline models.Pipeline
}

// New creates an editor for an empty pipeline.
func New(reg *registry.Registry, opts Options) *Editor {
	return Open(reg, &models.Pipeline{}, opts)
}

// Open creates an editor over a copy of a persisted pipeline. Connections that
// reference unknown blocks are dropped.
func Open(reg *registry.Registry, p *models.Pipeline, opts Options) *Editor {
	if opts.GridSize == 0 {
		opts.GridSize = DefaultGridSize
	}

	rules := DefaultRules()
	if opts.Rules != nil {
		rules = *opts.Rules
	}

	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	e := &Editor{
		registry:  reg,
		rules:     rules,
		validator: NewValidator(rules),
		blocks:    NewBlockStore(opts.GridSize, opts.Now),
		variables: NewVariableStore(p.Variables...),
		newID:     opts.NewID,
		pipeline: models.Pipeline{
			ID:          p.ID,
			ProjectID:   p.ProjectID,
			Name:        p.Name,
			Description: p.Description,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		},
	}

	e.blocks.Load(p.Blocks)

	var kept []*models.Connection

	for _, c := range p.Connections {
		if c == nil {
			continue
		}

		_, srcOK := e.blocks.Get(c.Source)
		_, dstOK := e.blocks.Get(c.Target)

		if srcOK && dstOK {
			kept = append(kept, c)
		}
	}

	e.connections = NewConnectionSet(kept...)

	return e
}

func (e *Editor) Registry() *registry.Registry {
	return e.registry
}

func (e *Editor) Validator() *Validator {
	return e.validator
}

func (e *Editor) Blocks() *BlockStore {
	return e.blocks
}

func (e *Editor) Variables() *VariableStore {
	return e.variables
}

func (e *Editor) Connections() *ConnectionSet {
	return e.connections
}

// AddBlock places a new instance of the registered block type.
func (e *Editor) AddBlock(blockType string, pos models.Position) (*models.BlockInstance, error) {
	def, ok := e.registry.Lookup(blockType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnknownBlockType, blockType)
	}

	return e.blocks.AddBlock(def, pos), nil
}

// MoveBlock re-snaps the instance to pos. Unknown IDs are ignored.
func (e *Editor) MoveBlock(id string, pos models.Position) {
	e.blocks.MoveBlock(id, pos)
}

// UpdateConfig validates cfg against the block schema and stores it. Unknown
// IDs are ignored.
func (e *Editor) UpdateConfig(id string, cfg models.Config) error {
	b, ok := e.blocks.Get(id)
	if !ok {
		return nil
	}

	if err := e.registry.ValidateConfig(b.Type, cfg); err != nil {
		return err
	}

	e.blocks.UpdateConfig(id, cfg)

	return nil
}

// DeleteBlock removes the instance and every connection touching it, and
// returns the number of connections removed. Unknown IDs are ignored.
func (e *Editor) DeleteBlock(id string) int {
	if !e.blocks.DeleteBlock(id) {
		return 0
	}

	return e.connections.RemoveForBlock(id)
}

func (e *Editor) SelectBlock(id string) {
	e.blocks.SelectBlock(id)
}

func (e *Editor) ClearSelection() {
	e.blocks.ClearSelection()
}

func (e *Editor) Selected() *models.BlockInstance {
	return e.blocks.Selected()
}

func (e *Editor) PromptOpen() bool {
	return e.blocks.PromptOpen()
}

// CanConnect validates a connection without adding it.
func (e *Editor) CanConnect(req ConnectRequest) (models.ConnectionType, error) {
	req = req.Normalize()
	source, _ := e.blocks.Get(req.Source)
	target, _ := e.blocks.Get(req.Target)

	return e.validator.Validate(source, req.SourcePort, target, e.connections.Connections())
}

// Connect validates and adds a connection. A rejected request leaves the
// connection set untouched and returns a *RejectionError.
func (e *Editor) Connect(req ConnectRequest) (*models.Connection, error) {
	req = req.Normalize()

	connType, err := e.CanConnect(req)
	if err != nil {
		return nil, err
	}

	c := &models.Connection{
		ID:         e.newID(),
		Source:     req.Source,
		SourcePort: req.SourcePort,
		Target:     req.Target,
		Type:       connType,
	}

	e.connections.add(c)

	return c, nil
}

// Disconnect removes a connection and reports whether it existed.
func (e *Editor) Disconnect(id string) bool {
	return e.connections.Remove(id)
}

// Rename updates the pipeline metadata.
func (e *Editor) Rename(name, description string) {
	e.pipeline.Name = name
	e.pipeline.Description = description
}

// Pipeline returns a deep snapshot of the aggregate, ready to persist.
func (e *Editor) Pipeline() *models.Pipeline {
	p := e.pipeline

	blocks := e.blocks.Blocks()
	p.Blocks = make([]*models.BlockInstance, len(blocks))

	for i, b := range blocks {
		p.Blocks[i] = b.Clone()
	}

	conns := e.connections.Connections()
	p.Connections = make([]*models.Connection, len(conns))

	for i, c := range conns {
		cp := *c
		p.Connections[i] = &cp
	}

	p.Variables = e.variables.Variables()

	return &p
}
