package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// AttributeKind numeric or categorical
type AttributeKind string

const (
	AttributeNumeric     AttributeKind = "numeric"
	AttributeCategorical AttributeKind = "categorical"
)

// Attribute is one entry of the situation vector.
type Attribute struct {
	kind AttributeKind
	num  float64
	cat  string
}

// Num builds a numeric attribute
func Num(v float64) Attribute {
	return Attribute{kind: AttributeNumeric, num: v}
}

// Cat builds a categorical attribute
func Cat(v string) Attribute {
	return Attribute{kind: AttributeCategorical, cat: v}
}

// Kind of value held
func (a Attribute) Kind() AttributeKind { return a.kind }

// Number returns the numeric value and whether the attribute is numeric.
func (a Attribute) Number() (float64, bool) {
	return a.num, a.kind == AttributeNumeric
}

// Category returns the categorical value and whether the attribute is categorical.
func (a Attribute) Category() (string, bool) {
	return a.cat, a.kind == AttributeCategorical
}

// Value as plain Go value (float64 or string), used for CEL input
func (a Attribute) Value() interface{} {
	if a.kind == AttributeNumeric {
		return a.num
	}
	return a.cat
}

func (a Attribute) String() string {
	if a.kind == AttributeNumeric {
		return strconv.FormatFloat(a.num, 'g', -1, 64)
	}
	return a.cat
}

// MarshalJSON emits a bare number or string
func (a Attribute) MarshalJSON() ([]byte, error) {
	if a.kind == AttributeNumeric {
		if math.IsNaN(a.num) || math.IsInf(a.num, 0) {
			return nil, fmt.Errorf("attribute value %v is not representable in JSON", a.num)
		}
		return json.Marshal(a.num)
	}
	return json.Marshal(a.cat)
}

// UnmarshalJSON accepts numbers and strings only
func (a *Attribute) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*a = Num(v)
	case string:
		*a = Cat(v)
	default:
		return fmt.Errorf("attribute must be a number or a string, got %T", raw)
	}
	return nil
}

// UnmarshalYAML accepts scalar numbers and strings only
func (a *Attribute) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: attribute must be a scalar", node.Line)
	}
	switch node.Tag {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid number %q: %w", node.Line, node.Value, err)
		}
		*a = Num(f)
	case "!!str":
		*a = Cat(node.Value)
	default:
		return fmt.Errorf("line %d: attribute must be a number or a string, got %s", node.Line, node.Tag)
	}
	return nil
}

// Attributes is the situation vector
type Attributes map[string]Attribute

// Keys sorted
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an independent copy
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// ActionRequest is a candidate action submitted for filtering.
// Callers must treat it as immutable once submitted.
type ActionRequest struct {
	ID          string     `json:"id" yaml:"id"`
	Description string     `json:"description" yaml:"description"`
	Attributes  Attributes `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// ToMap for CEL
func (r ActionRequest) ToMap() map[string]interface{} {
	attrs := make(map[string]interface{}, len(r.Attributes))
	for k, v := range r.Attributes {
		attrs[k] = v.Value()
	}
	return map[string]interface{}{
		"id":          r.ID,
		"description": r.Description,
		"attributes":  attrs,
	}
}
