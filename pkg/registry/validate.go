package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/polymicro/manager/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidConfig is returned when a configuration does not satisfy its block schema.
var ErrInvalidConfig = errors.New("invalid block configuration")

// FieldError describes one schema violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ConfigError lists every schema violation of a configuration.
type ConfigError struct {
	BlockType string
	Fields    []FieldError
}

func (e *ConfigError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}

	return fmt.Sprintf("invalid configuration for %s: %s", e.BlockType, strings.Join(msgs, "; "))
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ValidateConfig checks cfg against the schema of the given block type.
func (r *Registry) ValidateConfig(blockType string, cfg models.Config) error {
	schema, ok := r.schemas[blockType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBlockType, blockType)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(cfg.Interface()))
	if err != nil {
		return fmt.Errorf("failed to validate %s configuration: %w", blockType, err)
	}

	if result.Valid() {
		return nil
	}

	configErr := &ConfigError{BlockType: blockType}
	for _, desc := range result.Errors() {
		configErr.Fields = append(configErr.Fields, FieldError{
			Field:   fieldName(desc),
			Message: desc.Description(),
		})
	}

	sort.Slice(configErr.Fields, func(i, j int) bool {
		return configErr.Fields[i].Field < configErr.Fields[j].Field
	})

	return configErr
}

// required violations are reported on the root; the missing property is the interesting name.
func fieldName(desc gojsonschema.ResultError) string {
	if desc.Type() == "required" {
		if property, ok := desc.Details()["property"].(string); ok {
			return property
		}
	}

	return desc.Field()
}
