package editor

import (
	"regexp"
	"slices"
	"strings"

	"github.com/polymicro/manager/pkg/models"
)

// VariableField names an editable field of a pipeline variable.
type VariableField string

const (
	FieldName  VariableField = "name"
	FieldValue VariableField = "value"
	FieldScope VariableField = "scope"
)

// placeholderPattern matches ${NAME} references inside configuration strings.
var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_.-]*)\}`)

// VariableStore holds the substitution variables of one pipeline plus the
// draft being typed into the "new variable" form.
//
// Names are unique per scope: adding or renaming into an existing name of the
// same scope is rejected.
type VariableStore struct {
	vars  []models.PipelineVariable
	draft models.PipelineVariable
}

// NewVariableStore creates a store seeded with vars. Values may be empty, as
// UpdateVariable allows; entries with an empty name or a name already used in
// the same scope are dropped.
func NewVariableStore(vars ...models.PipelineVariable) *VariableStore {
	s := &VariableStore{draft: emptyDraft()}

	for _, v := range vars {
		s.load(v)
	}

	return s
}

func (s *VariableStore) load(v models.PipelineVariable) bool {
	v.Name = strings.TrimSpace(v.Name)
	v.Scope = models.ParseScope(string(v.Scope))

	if v.Name == "" || s.indexOf(v.Name, v.Scope, -1) >= 0 {
		return false
	}

	s.vars = append(s.vars, v)

	return true
}

func emptyDraft() models.PipelineVariable {
	return models.PipelineVariable{Scope: models.ScopeLocal}
}

// AddVariable appends v, or the draft when v is nil. It fails when the name or
// value is empty or the name is already used in the same scope. A successful
// add from the draft resets it to an empty local variable.
func (s *VariableStore) AddVariable(v *models.PipelineVariable) bool {
	fromDraft := v == nil
	if fromDraft {
		v = &s.draft
	}

	candidate := models.PipelineVariable{
		Name:  strings.TrimSpace(v.Name),
		Value: v.Value,
		Scope: models.ParseScope(string(v.Scope)),
	}

	if candidate.Name == "" || candidate.Value == "" {
		return false
	}

	if s.indexOf(candidate.Name, candidate.Scope, -1) >= 0 {
		return false
	}

	s.vars = append(s.vars, candidate)

	if fromDraft {
		s.draft = emptyDraft()
	}

	return true
}

// Draft returns the in-progress variable.
func (s *VariableStore) Draft() models.PipelineVariable {
	return s.draft
}

// UpdateDraftField sets one field of the draft, coercing the scope.
func (s *VariableStore) UpdateDraftField(field VariableField, value string) {
	setField(&s.draft, field, value)
}

// DeleteVariable removes the variable at index. Out-of-range indexes are ignored.
func (s *VariableStore) DeleteVariable(index int) {
	if index < 0 || index >= len(s.vars) {
		return
	}

	s.vars = slices.Delete(s.vars, index, index+1)
}

// UpdateVariable sets one field of the variable at index, coercing the scope.
// It reports false, leaving the store unchanged, when the index is out of range,
// the name would become empty or the result collides with another variable.
func (s *VariableStore) UpdateVariable(index int, field VariableField, value string) bool {
	if index < 0 || index >= len(s.vars) {
		return false
	}

	updated := s.vars[index]
	if !setField(&updated, field, value) {
		return false
	}

	if updated.Name == "" {
		return false
	}

	if s.indexOf(updated.Name, updated.Scope, index) >= 0 {
		return false
	}

	s.vars[index] = updated

	return true
}

func setField(v *models.PipelineVariable, field VariableField, value string) bool {
	switch field {
	case FieldName:
		v.Name = strings.TrimSpace(value)
	case FieldValue:
		v.Value = value
	case FieldScope:
		v.Scope = models.ParseScope(value)
	default:
		return false
	}

	return true
}

func (s *VariableStore) indexOf(name string, scope models.VariableScope, skip int) int {
	for i, v := range s.vars {
		if i != skip && v.Name == name && v.Scope == scope {
			return i
		}
	}

	return -1
}

// Variables returns a copy of the variables in insertion order.
func (s *VariableStore) Variables() []models.PipelineVariable {
	return slices.Clone(s.vars)
}

// Len returns the number of variables.
func (s *VariableStore) Len() int {
	return len(s.vars)
}

// Lookup returns name → value for one scope.
func (s *VariableStore) Lookup(scope models.VariableScope) map[string]string {
	out := make(map[string]string)

	for _, v := range s.vars {
		if v.Scope == scope {
			out[v.Name] = v.Value
		}
	}

	return out
}

// Bindings merges project globals, this pipeline's globals and its locals, in
// increasing precedence.
func (s *VariableStore) Bindings(projectGlobals map[string]string) map[string]string {
	out := make(map[string]string, len(projectGlobals)+len(s.vars))

	for k, v := range projectGlobals {
		out[k] = v
	}

	for k, v := range s.Lookup(models.ScopeGlobal) {
		out[k] = v
	}

	for k, v := range s.Lookup(models.ScopeLocal) {
		out[k] = v
	}

	return out
}

// Resolve substitutes ${NAME} placeholders in text, preferring local variables
// over global ones. Unknown placeholders are left untouched.
func (s *VariableStore) Resolve(text string, projectGlobals map[string]string) string {
	return Substitute(text, s.Bindings(projectGlobals))
}

// Substitute replaces ${NAME} placeholders in text using bindings.
func Substitute(text string, bindings map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := bindings[name]; ok {
			return value
		}

		return match
	})
}

// References returns the distinct variable names referenced by cfg, sorted.
func References(cfg models.Config) []string {
	seen := make(map[string]bool)

	for _, value := range cfg {
		for _, s := range value.Strings() {
			for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
				seen[m[1]] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
