package models

import "time"

// VariableScope controls where a pipeline variable is visible.
type VariableScope string

const (
	ScopeLocal  VariableScope = "local"  // Owning pipeline only
	ScopeGlobal VariableScope = "global" // Every pipeline of the project
)

// ParseScope coerces s to a scope; anything other than "global" is local.
func ParseScope(s string) VariableScope {
	if VariableScope(s) == ScopeGlobal {
		return ScopeGlobal
	}

	return ScopeLocal
}

// PipelineVariable is a named substitution value referenced as ${NAME}.
type PipelineVariable struct {
	Name  string        `json:"name"  validate:"required"`
	Value string        `json:"value" validate:"required"`
	Scope VariableScope `json:"scope" validate:"omitempty,oneof=local global"`
}

// Pipeline is the aggregate edited on the canvas.
type Pipeline struct {
	ID          string             `json:"id"`
	ProjectID   string             `json:"project_id"  validate:"required"`
	Name        string             `json:"name"        validate:"required,min=3"`
	Description string             `json:"description"`
	Blocks      []*BlockInstance   `json:"blocks"`
	Connections []*Connection      `json:"connections"`
	Variables   []PipelineVariable `json:"variables"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Block returns the instance with the given ID.
func (p *Pipeline) Block(id string) (*BlockInstance, bool) {
	for _, b := range p.Blocks {
		if b.ID == id {
			return b, true
		}
	}

	return nil, false
}

// VariableMap returns name → value for the variables of one scope.
func (p *Pipeline) VariableMap(scope VariableScope) map[string]string {
	out := make(map[string]string)

	for _, v := range p.Variables {
		if v.Scope == scope {
			out[v.Name] = v.Value
		}
	}

	return out
}
