package provider

import (
	"errors"
	"fmt"
	"sort"

	"github.com/imamik/converge/internal/expr"
)

// AttrType is the value type of an attribute.
type AttrType string

// Attribute types.
const (
	TypeString AttrType = "string"
	TypeNumber AttrType = "number"
	TypeBool   AttrType = "bool"
	TypeList   AttrType = "list"
	TypeMap    AttrType = "map"
	TypeAny    AttrType = "any"
)

// Attribute describes one property of a resource type.
type Attribute struct {
	Type AttrType
	// Required attributes must be set in configuration.
	Required bool
	// Optional attributes may be set in configuration.
	Optional bool
	// Computed attributes are set by the provider. Computed and not Optional
	// means read-only.
	Computed bool
	// ForceNew changes cannot be applied in place.
	ForceNew  bool
	Sensitive bool
	Default   any
}

// Configurable reports whether the attribute may appear in configuration.
func (a *Attribute) Configurable() bool {
	return a.Required || a.Optional
}

// Schema is the set of attributes of a resource type.
type Schema struct {
	Attributes map[string]*Attribute
}

// Attribute returns the named attribute or nil.
func (s *Schema) Attribute(name string) *Attribute {
	if s == nil {
		return nil
	}
	return s.Attributes[name]
}

// ForceNew reports whether a change to name requires replacement.
func (s *Schema) ForceNew(name string) bool {
	a := s.Attribute(name)
	return a != nil && a.ForceNew
}

// Sensitive reports whether name holds a secret.
func (s *Schema) Sensitive(name string) bool {
	a := s.Attribute(name)
	return a != nil && a.Sensitive
}

// SensitiveNames returns the sensitive attribute names, sorted.
func (s *Schema) SensitiveNames() []string {
	var out []string
	for name, a := range s.Attributes {
		if a.Sensitive {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ApplyDefaults returns a copy of props with defaults filled in for unset
// attributes.
func (s *Schema) ApplyDefaults(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	for name, a := range s.Attributes {
		if _, set := out[name]; !set && a.Default != nil {
			out[name] = a.Default
		}
	}
	return out
}

// Validate checks properties against the schema. Values that are not yet
// known (Unknown, or strings that still contain expressions) are only
// checked for presence.
func (s *Schema) Validate(props map[string]any) error {
	var errs []error
	for _, name := range expr.SortedKeys(props) {
		a := s.Attribute(name)
		switch {
		case a == nil:
			errs = append(errs, fmt.Errorf("unsupported argument %q", name))
			continue
		case !a.Configurable():
			errs = append(errs, fmt.Errorf("%q is computed and cannot be set", name))
			continue
		}
		if err := checkType(a.Type, props[name]); err != nil {
			errs = append(errs, fmt.Errorf("%q: %w", name, err))
		}
	}
	for _, name := range expr.SortedKeys(s.Attributes) {
		if _, set := props[name]; !set && s.Attributes[name].Required {
			errs = append(errs, fmt.Errorf("missing required argument %q", name))
		}
	}
	return errors.Join(errs...)
}

func checkType(t AttrType, v any) error {
	if v == nil || t == TypeAny || deferred(v) {
		return nil
	}
	ok := false
	switch t {
	case TypeString:
		_, ok = v.(string)
	case TypeNumber:
		_, ok = v.(float64)
	case TypeBool:
		_, ok = v.(bool)
	case TypeList:
		_, ok = v.([]any)
	case TypeMap:
		_, ok = v.(map[string]any)
	}
	if !ok {
		return fmt.Errorf("expected %s, got %s", t, expr.TypeName(v))
	}
	return nil
}

// deferred reports whether v cannot be type-checked yet.
func deferred(v any) bool {
	if expr.IsUnknown(v) {
		return true
	}
	str, ok := v.(string)
	if !ok {
		return false
	}
	tmpl, err := expr.ParseTemplate(str)
	return err == nil && !tmpl.IsLiteral()
}
