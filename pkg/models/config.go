package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a ConfigValue.
type ValueKind uint8

const (
	KindUnset ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindList:
		return "list"
	default:
		return "unset"
	}
}

// ConfigValue is a tagged union of the value shapes a configuration field may hold.
// The zero value is unset.
type ConfigValue struct {
	kind ValueKind
	str  string
	num  float64
	flag bool
	list []string
}

func StringValue(s string) ConfigValue { return ConfigValue{kind: KindString, str: s} }
func NumberValue(n float64) ConfigValue { return ConfigValue{kind: KindNumber, num: n} }
func BoolValue(b bool) ConfigValue { return ConfigValue{kind: KindBool, flag: b} }
func ListValue(l ...string) ConfigValue { return ConfigValue{kind: KindList, list: slices.Clone(l)} }

// Kind returns the variant tag.
func (v ConfigValue) Kind() ValueKind { return v.kind }

// IsZero reports whether the value is unset.
func (v ConfigValue) IsZero() bool { return v.kind == KindUnset }

func (v ConfigValue) AsString() (string, bool) { return v.str, v.kind == KindString }
func (v ConfigValue) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }
func (v ConfigValue) AsBool() (bool, bool) { return v.flag, v.kind == KindBool }

func (v ConfigValue) AsList() ([]string, bool) {
	if v.kind != KindList {
		return nil, false
	}

	return slices.Clone(v.list), true
}

// Clone returns a copy that shares no memory with v.
func (v ConfigValue) Clone() ConfigValue {
	v.list = slices.Clone(v.list)

	return v
}

// Equal reports whether both values hold the same variant and content.
func (v ConfigValue) Equal(o ConfigValue) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.flag == o.flag
	case KindList:
		return slices.Equal(v.list, o.list)
	default:
		return true
	}
}

// Interface returns the plain Go value (string, float64, bool, []string or nil).
func (v ConfigValue) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.flag
	case KindList:
		if v.list == nil {
			return []string{}
		}

		return slices.Clone(v.list)
	default:
		return nil
	}
}

// Strings returns every string carried by the value, used for placeholder scanning.
func (v ConfigValue) Strings() []string {
	switch v.kind {
	case KindString:
		return []string{v.str}
	case KindList:
		return slices.Clone(v.list)
	default:
		return nil
	}
}

// Display renders the value for human-readable output.
func (v ConfigValue) Display() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

func (v ConfigValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *ConfigValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ConfigValue{}

		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}

		*v = BoolValue(b)
	case '[':
		var l []string
		if err := json.Unmarshal(data, &l); err != nil {
			return fmt.Errorf("list values must contain only strings: %w", err)
		}

		*v = ConfigValue{kind: KindList, list: l}
	case '{':
		return fmt.Errorf("unsupported config value %s", data)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}

		*v = NumberValue(n)
	}

	return nil
}

// Config maps field names to their concrete values.
type Config map[string]ConfigValue

// Clone returns a deep copy of the configuration.
func (c Config) Clone() Config {
	if c == nil {
		return nil
	}

	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v.Clone()
	}

	return out
}

// Interface converts the configuration to a plain map, dropping unset values.
func (c Config) Interface() map[string]any {
	out := make(map[string]any, len(c))

	for k, v := range c {
		if v.IsZero() {
			continue
		}

		out[k] = v.Interface()
	}

	return out
}
