package editor

import (
	"errors"
	"fmt"

	"github.com/polymicro/manager/pkg/models"
)

// ErrInvalidConnection is matched by every connection rejection.
var ErrInvalidConnection = errors.New("invalid connection")

// RejectionError reports why a proposed connection was refused.
type RejectionError struct {
	Rule   string // Machine-readable rule name
	Reason string // Human-readable message
}

func (e *RejectionError) Error() string {
	return e.Reason
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrInvalidConnection
}

// Rule names carried by RejectionError.
const (
	RuleUnknownBlock    = "unknown_block"
	RuleSelfConnection  = "self_connection"
	RuleInvalidPort     = "invalid_port"
	RuleTriggerInput    = "trigger_input"
	RuleCategoryOrder   = "category_order"
	RuleStageOrder      = "stage_order"
	RuleDuplicate       = "duplicate"
	RuleBranchTaken     = "branch_taken"
	RuleCycle           = "cycle"
	RuleLoopNotUpstream = "loop_not_upstream"
)

func reject(rule, format string, args ...any) *RejectionError {
	return &RejectionError{Rule: rule, Reason: "Invalid connection: " + fmt.Sprintf(format, args...)}
}

// Rules is the connection policy, expressed as data.
type Rules struct {
	// Successors lists, per source category, the categories it may connect to.
	// A category absent from every list (triggers) can never be a target.
	Successors map[models.Category][]models.Category `json:"successors"`

	// StageOrder lists block types in the order they must run. A block may never
	// precede a block listed before it, whatever the connection type.
	StageOrder []string `json:"stage_order"`

	// Conditional lists block types exposing true/false ports instead of
	// success/failure/loop.
	Conditional []string `json:"conditional"`
}

// DefaultRules returns the built-in connection policy.
func DefaultRules() Rules {
	return Rules{
		Successors: map[models.Category][]models.Category{
			models.CategoryTriggers:   {models.CategoryExecution, models.CategoryFlow, models.CategoryAutomation},
			models.CategoryExecution:  {models.CategoryExecution, models.CategoryFlow, models.CategoryAutomation},
			models.CategoryFlow:       {models.CategoryExecution, models.CategoryFlow, models.CategoryAutomation},
			models.CategoryAutomation: {models.CategoryAutomation},
		},
		StageOrder:  []string{"build", "test", "deploy"},
		Conditional: []string{"condition"},
	}
}

// Validator decides whether a proposed connection is legal. It is a pure
// function of its inputs and never mutates the connections it is given.
type Validator struct {
	successors  map[models.Category]map[models.Category]bool
	stage       map[string]int
	conditional map[string]bool
}

// NewValidator compiles rules into lookup tables.
func NewValidator(rules Rules) *Validator {
	v := &Validator{
		successors:  make(map[models.Category]map[models.Category]bool, len(rules.Successors)),
		stage:       make(map[string]int, len(rules.StageOrder)),
		conditional: make(map[string]bool, len(rules.Conditional)),
	}

	for from, tos := range rules.Successors {
		allowed := make(map[models.Category]bool, len(tos))
		for _, to := range tos {
			allowed[to] = true
		}

		v.successors[from] = allowed
	}

	for i, blockType := range rules.StageOrder {
		v.stage[blockType] = i
	}

	for _, blockType := range rules.Conditional {
		v.conditional[blockType] = true
	}

	return v
}

// IsConditional reports whether the block exposes true/false ports.
func (v *Validator) IsConditional(b *models.BlockInstance) bool {
	return v.conditional[b.Type]
}

// Ports returns the output ports the block exposes.
func (v *Validator) Ports(b *models.BlockInstance) []string {
	if v.IsConditional(b) {
		return []string{models.PortTrue, models.PortFalse}
	}

	return []string{models.PortSuccess, models.PortFailure, models.PortLoop}
}

func (v *Validator) hasPort(b *models.BlockInstance, port string) bool {
	for _, p := range v.Ports(b) {
		if p == port {
			return true
		}
	}

	return false
}

// Validate checks a connection from source's port to target against the
// existing connections and returns the connection type it would produce.
// Rejections are *RejectionError values.
func (v *Validator) Validate(
	source *models.BlockInstance,
	port string,
	target *models.BlockInstance,
	existing []*models.Connection,
) (models.ConnectionType, error) {
	if source == nil || target == nil {
		return "", reject(RuleUnknownBlock, "block not found")
	}

	if source.ID == target.ID {
		return "", reject(RuleSelfConnection, "%s cannot connect to itself", source.Name)
	}

	connType, ok := models.ConnectionTypeForPort(port)
	if !ok || !v.hasPort(source, port) {
		return "", reject(RuleInvalidPort, "%s has no %q output", source.Name, port)
	}

	if target.IsTrigger() {
		return "", reject(RuleTriggerInput, "%s is a trigger and cannot have inputs", target.Name)
	}

	if si, ok := v.stage[source.Type]; ok {
		if ti, ok := v.stage[target.Type]; ok && si > ti {
			return "", reject(RuleStageOrder, "%s cannot precede %s", source.Name, target.Name)
		}
	}

	for _, c := range existing {
		if c.Source == source.ID && c.Target == target.ID && c.SourcePort == port {
			return "", reject(RuleDuplicate, "%s is already connected to %s", source.Name, target.Name)
		}

		if v.IsConditional(source) && c.Source == source.ID && c.SourcePort == port {
			return "", reject(RuleBranchTaken, "%s already has a %s branch", source.Name, port)
		}
	}

	if connType == models.ConnectionLoop {
		if !reaches(existing, target.ID, source.ID) {
			return "", reject(RuleLoopNotUpstream, "loop from %s must return to an upstream block, %s is not", source.Name, target.Name)
		}

		return connType, nil
	}

	if !v.successors[source.Category][target.Category] {
		return "", reject(RuleCategoryOrder, "%s (%s) cannot precede %s (%s)",
			source.Name, source.Category, target.Name, target.Category)
	}

	if reaches(existing, target.ID, source.ID) {
		return "", reject(RuleCycle, "%s → %s would create a cycle; use a loop connection", source.Name, target.Name)
	}

	return connType, nil
}

// reaches reports whether to is reachable from from following non-loop connections.
func reaches(connections []*models.Connection, from, to string) bool {
	adjacency := make(map[string][]string)

	for _, c := range connections {
		if c.Type == models.ConnectionLoop {
			continue
		}

		adjacency[c.Source] = append(adjacency[c.Source], c.Target)
	}

	visited := map[string]bool{}
	queue := []string{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur == to {
			return true
		}

		if visited[cur] {
			continue
		}

		visited[cur] = true

		queue = append(queue, adjacency[cur]...)
	}

	return false
}
