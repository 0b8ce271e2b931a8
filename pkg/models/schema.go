package models

// JSONSchema represents a JSON Schema for configuration validation
type JSONSchema struct {
	Schema               string               `json:"$schema,omitempty"`
	Type                 string               `json:"type"`
	Properties           map[string]*Property `json:"properties,omitempty"`
	Required             []string             `json:"required,omitempty"`
	AdditionalProperties *bool                `json:"additionalProperties,omitempty"`
	Title                string               `json:"title,omitempty"`
	Description          string               `json:"description,omitempty"`
}

// Property represents a JSON Schema property
type Property struct {
	Type        string    `json:"type"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Enum        []any     `json:"enum,omitempty"`
	Default     any       `json:"default,omitempty"`
	Format      string    `json:"format,omitempty"`
	MinLength   *int      `json:"minLength,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
	Maximum     *float64  `json:"maximum,omitempty"`
	MinItems    *int      `json:"minItems,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// JSONSchema compiles the definition's field descriptors into a JSON Schema document.
func (d BlockDefinition) JSONSchema() *JSONSchema {
	closed := false
	one := 1

	schema := &JSONSchema{
		Schema:               "http://json-schema.org/draft-07/schema#",
		Type:                 "object",
		Title:                d.Name,
		Description:          d.Description,
		Properties:           make(map[string]*Property, len(d.Schema)),
		AdditionalProperties: &closed,
	}

	for _, f := range d.Schema {
		prop := &Property{Title: f.Label}

		switch f.Type {
		case FieldTypeString, FieldTypeText:
			prop.Type = "string"
			prop.Format = f.Format
		case FieldTypeSelect:
			prop.Type = "string"
			for _, c := range f.Choices {
				prop.Enum = append(prop.Enum, c)
			}
		case FieldTypeNumber:
			prop.Type = "number"
			prop.Minimum = f.Min
			prop.Maximum = f.Max
		case FieldTypeBoolean:
			prop.Type = "boolean"
		case FieldTypeList:
			prop.Type = "array"
			prop.Items = &Property{Type: "string"}
		}

		if !f.Default.IsZero() {
			prop.Default = f.Default.Interface()
		}

		if f.Required {
			schema.Required = append(schema.Required, f.Name)

			switch f.Type.Kind() {
			case KindString:
				prop.MinLength = &one
			case KindList:
				prop.MinItems = &one
			}
		}

		schema.Properties[f.Name] = prop
	}

	return schema
}
