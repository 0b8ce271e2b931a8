// Package models defines the core domain models for the pipeline editor.
package models

// Category represents the palette group a block belongs to.
type Category string

const (
	CategoryTriggers   Category = "triggers"   // Entry points (webhook, schedule, push)
	CategoryExecution  Category = "execution"  // Build, test, deploy and script steps
	CategoryFlow       Category = "flow"       // Branching and waiting
	CategoryAutomation Category = "automation" // Notifications and approvals
)

// Categories lists every known category in palette order.
var Categories = []Category{CategoryTriggers, CategoryExecution, CategoryFlow, CategoryAutomation}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryTriggers, CategoryExecution, CategoryFlow, CategoryAutomation:
		return true
	default:
		return false
	}
}

// FieldType is the declared type of a configuration field.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeText    FieldType = "text" // Multi-line string
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeSelect  FieldType = "select" // String restricted to Choices
	FieldTypeList    FieldType = "list"   // List of strings
)

// Kind returns the value variant a field of this type holds.
func (t FieldType) Kind() ValueKind {
	switch t {
	case FieldTypeString, FieldTypeText, FieldTypeSelect:
		return KindString
	case FieldTypeNumber:
		return KindNumber
	case FieldTypeBoolean:
		return KindBool
	case FieldTypeList:
		return KindList
	default:
		return KindUnset
	}
}

// FieldDescriptor describes one configuration field of a block definition.
type FieldDescriptor struct {
	Name     string      `json:"name"              validate:"required"`
	Type     FieldType   `json:"type"              validate:"required,oneof=string text number boolean select list"`
	Label    string      `json:"label"`
	Default  ConfigValue `json:"default,omitzero"`
	Choices  []string    `json:"choices,omitempty"`
	Min      *float64    `json:"min,omitempty"`
	Max      *float64    `json:"max,omitempty"`
	Format   string      `json:"format,omitempty"  validate:"omitempty,oneof=cron timezone"` // Extra check on string values
	Required bool        `json:"required"`
}

// BlockDefinition is an immutable catalog entry describing a placeable block.
type BlockDefinition struct {
	ID          string            `json:"id"          validate:"required"`
	Name        string            `json:"name"        validate:"required"`
	Icon        string            `json:"icon"`
	Description string            `json:"description"`
	Category    Category          `json:"category"    validate:"required,oneof=triggers execution flow automation"`
	Schema      []FieldDescriptor `json:"schema"      validate:"dive"`
}

// Field returns the descriptor for the named field.
func (d BlockDefinition) Field(name string) (FieldDescriptor, bool) {
	for _, f := range d.Schema {
		if f.Name == name {
			return f, true
		}
	}

	return FieldDescriptor{}, false
}

// DefaultConfig builds a configuration holding every declared default.
func (d BlockDefinition) DefaultConfig() Config {
	cfg := make(Config, len(d.Schema))

	for _, f := range d.Schema {
		if f.Default.IsZero() {
			continue
		}

		cfg[f.Name] = f.Default.Clone()
	}

	return cfg
}

// Position is a point on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BlockInstance is a block definition placed on the canvas.
type BlockInstance struct {
	ID       string   `json:"id"       validate:"required"`
	Type     string   `json:"type"     validate:"required"` // BlockDefinition.ID
	Name     string   `json:"name"     validate:"required"`
	Icon     string   `json:"icon,omitempty"`
	Category Category `json:"category" validate:"required"`
	Position Position `json:"position"`
	Config   Config   `json:"config"`
}

// IsTrigger reports whether the instance is an entry point of the pipeline.
func (b *BlockInstance) IsTrigger() bool {
	return b.Category == CategoryTriggers
}

// Clone returns a deep copy of the instance.
func (b *BlockInstance) Clone() *BlockInstance {
	c := *b
	c.Config = b.Config.Clone()

	return &c
}
