// Package registry provides the immutable block catalog consulted by the pipeline editor.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/polymicro/manager/pkg/models"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownBlockType is returned when a block type is not part of the catalog.
	ErrUnknownBlockType = errors.New("unknown block type")

	// ErrDuplicateBlockType is returned when two definitions share an ID.
	ErrDuplicateBlockType = errors.New("duplicate block type")

	// ErrInvalidDefinition is returned when a definition is malformed.
	ErrInvalidDefinition = errors.New("invalid block definition")
)

// Registry maps block-type IDs to their definitions. It is built once and never mutated.
type Registry struct {
	definitions []models.BlockDefinition
	index       map[string]int
	schemas     map[string]*gojsonschema.Schema
}

// New builds a registry from the given definitions, compiling each configuration schema.
func New(definitions ...models.BlockDefinition) (*Registry, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	r := &Registry{
		definitions: make([]models.BlockDefinition, 0, len(definitions)),
		index:       make(map[string]int, len(definitions)),
		schemas:     make(map[string]*gojsonschema.Schema, len(definitions)),
	}

	for _, def := range definitions {
		if err := validate.Struct(def); err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidDefinition, def.ID, err)
		}

		if _, exists := r.index[def.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBlockType, def.ID)
		}

		if err := checkFields(def); err != nil {
			return nil, err
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.JSONSchema()))
		if err != nil {
			return nil, fmt.Errorf("%w %q: failed to compile schema: %w", ErrInvalidDefinition, def.ID, err)
		}

		r.index[def.ID] = len(r.definitions)
		r.definitions = append(r.definitions, cloneDefinition(def))
		r.schemas[def.ID] = schema
	}

	return r, nil
}

// MustNew is like New but panics on error. Used for the built-in catalog.
func MustNew(definitions ...models.BlockDefinition) *Registry {
	r, err := New(definitions...)
	if err != nil {
		panic(err)
	}

	return r
}

// LoadFile reads a list of block definitions. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
		}
	}

	var definitions []models.BlockDefinition
	if err := json.Unmarshal(data, &definitions); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	return New(definitions...)
}

// yamlToJSON re-encodes a YAML document so the JSON decoders of the model
// types, configuration values included, apply unchanged.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return json.Marshal(doc)
}

// Lookup returns the definition registered under id.
func (r *Registry) Lookup(id string) (models.BlockDefinition, bool) {
	i, ok := r.index[id]
	if !ok {
		return models.BlockDefinition{}, false
	}

	return cloneDefinition(r.definitions[i]), true
}

// Definitions returns every definition in declaration order.
func (r *Registry) Definitions() []models.BlockDefinition {
	out := make([]models.BlockDefinition, len(r.definitions))
	for i, def := range r.definitions {
		out[i] = cloneDefinition(def)
	}

	return out
}

// ByCategory returns the definitions of one category in declaration order.
func (r *Registry) ByCategory(category models.Category) []models.BlockDefinition {
	var out []models.BlockDefinition

	for _, def := range r.definitions {
		if def.Category == category {
			out = append(out, cloneDefinition(def))
		}
	}

	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.definitions)
}

// HealthCheck reports whether the catalog is usable.
func (r *Registry) HealthCheck() (string, bool) {
	if r == nil || len(r.definitions) == 0 {
		return "Block catalog is empty", false
	}

	return fmt.Sprintf("Block catalog loaded with %d definitions", len(r.definitions)), true
}

// LogSummary writes the catalog contents to logger.
func (r *Registry) LogSummary(logger *slog.Logger) {
	for _, category := range models.Categories {
		ids := make([]string, 0)
		for _, def := range r.ByCategory(category) {
			ids = append(ids, def.ID)
		}

		logger.Debug("Block catalog", "category", category, "blocks", ids)
	}

	logger.Info("Block catalog loaded", "definitions", len(r.definitions))
}

func checkFields(def models.BlockDefinition) error {
	seen := make(map[string]bool, len(def.Schema))

	for _, f := range def.Schema {
		if seen[f.Name] {
			return fmt.Errorf("%w %q: duplicate field %q", ErrInvalidDefinition, def.ID, f.Name)
		}

		seen[f.Name] = true

		if f.Type == models.FieldTypeSelect && len(f.Choices) == 0 {
			return fmt.Errorf("%w %q: select field %q has no choices", ErrInvalidDefinition, def.ID, f.Name)
		}

		if !f.Default.IsZero() && f.Default.Kind() != f.Type.Kind() {
			return fmt.Errorf("%w %q: default of field %q is %s, want %s",
				ErrInvalidDefinition, def.ID, f.Name, f.Default.Kind(), f.Type.Kind())
		}

		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return fmt.Errorf("%w %q: field %q has min greater than max", ErrInvalidDefinition, def.ID, f.Name)
		}
	}

	return nil
}

func cloneDefinition(def models.BlockDefinition) models.BlockDefinition {
	def.Schema = slices.Clone(def.Schema)
	for i := range def.Schema {
		def.Schema[i].Default = def.Schema[i].Default.Clone()
		def.Schema[i].Choices = slices.Clone(def.Schema[i].Choices)
	}

	return def
}
