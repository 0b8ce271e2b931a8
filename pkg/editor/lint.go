package editor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/registry"
)

// LintError describes a problem found in a stored pipeline.
type LintError struct {
	BlockID string `json:"block_id,omitempty"`
	Message string `json:"message"`
}

func (e LintError) Error() string {
	if e.BlockID != "" {
		return fmt.Sprintf("block %q: %s", e.BlockID, e.Message)
	}

	return e.Message
}

// Lint checks a whole pipeline document. Unlike the editor operations, which
// refuse bad input one step at a time, it reports every problem it finds:
// blocks of unknown types, invalid configurations, unresolved variables,
// dangling or illegal connections, a missing trigger and unreachable blocks.
func Lint(reg *registry.Registry, rules Rules, p *models.Pipeline, projectGlobals map[string]string) []LintError {
	var errs []LintError

	validator := NewValidator(rules)
	variables := NewVariableStore(p.Variables...)
	bindings := variables.Bindings(projectGlobals)

	blocks := make(map[string]*models.BlockInstance, len(p.Blocks))
	var triggers []string

	for _, b := range p.Blocks {
		if b == nil {
			continue
		}

		if _, dup := blocks[b.ID]; dup {
			errs = append(errs, LintError{BlockID: b.ID, Message: "duplicate block id"})

			continue
		}

		blocks[b.ID] = b

		if b.IsTrigger() {
			triggers = append(triggers, b.ID)
		}

		if _, ok := reg.Lookup(b.Type); !ok {
			errs = append(errs, LintError{BlockID: b.ID, Message: fmt.Sprintf("unknown block type %q", b.Type)})

			continue
		}

		if err := reg.ValidateConfig(b.Type, b.Config); err != nil {
			var configErr *registry.ConfigError
			if errors.As(err, &configErr) {
				for _, f := range configErr.Fields {
					errs = append(errs, LintError{BlockID: b.ID, Message: f.Field + ": " + f.Message})
				}
			} else {
				errs = append(errs, LintError{BlockID: b.ID, Message: err.Error()})
			}
		}

		var missing []string

		for _, name := range References(b.Config) {
			if _, ok := bindings[name]; !ok {
				missing = append(missing, name)
			}
		}

		if len(missing) > 0 {
			errs = append(errs, LintError{
				BlockID: b.ID,
				Message: "unresolved variables: " + strings.Join(missing, ", "),
			})
		}
	}

	if len(p.Variables) != variables.Len() {
		errs = append(errs, LintError{Message: "variables contain empty or duplicate entries"})
	}

	var accepted []*models.Connection

	for _, c := range p.Connections {
		if c == nil {
			continue
		}

		source, srcOK := blocks[c.Source]
		target, dstOK := blocks[c.Target]

		if !srcOK || !dstOK {
			errs = append(errs, LintError{
				BlockID: c.Source,
				Message: fmt.Sprintf("connection %q references an unknown block", c.ID),
			})

			continue
		}

		connType, err := validator.Validate(source, c.SourcePort, target, accepted)
		if err != nil {
			errs = append(errs, LintError{BlockID: c.Source, Message: err.Error()})

			continue
		}

		if c.Type != connType {
			errs = append(errs, LintError{
				BlockID: c.Source,
				Message: fmt.Sprintf("connection %q has type %q, port %q produces %q", c.ID, c.Type, c.SourcePort, connType),
			})
		}

		accepted = append(accepted, c)
	}

	if len(blocks) == 0 {
		return errs
	}

	if len(triggers) == 0 {
		errs = append(errs, LintError{Message: "pipeline has no trigger block"})

		return errs
	}

	reachable := reachableFrom(accepted, triggers)

	for _, b := range p.Blocks {
		if b != nil && !reachable[b.ID] {
			errs = append(errs, LintError{BlockID: b.ID, Message: "block is not reachable from any trigger"})
		}
	}

	return errs
}

// reachableFrom returns the set of block IDs reachable from the start blocks.
func reachableFrom(connections []*models.Connection, start []string) map[string]bool {
	adjacency := make(map[string][]string)
	for _, c := range connections {
		adjacency[c.Source] = append(adjacency[c.Source], c.Target)
	}

	visited := map[string]bool{}
	queue := append([]string(nil), start...)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if visited[cur] {
			continue
		}

		visited[cur] = true

		queue = append(queue, adjacency[cur]...)
	}

	return visited
}

// Lint reports every problem of the pipeline under edit.
func (e *Editor) Lint(projectGlobals map[string]string) []LintError {
	return Lint(e.registry, e.rules, e.Pipeline(), projectGlobals)
}
