package schema

import (
	"fmt"

	"connkit/internal/errors"
)

// MaskPlaceholder replaces sensitive values wherever they would be shown.
const MaskPlaceholder = "***********"

// Schema is an ordered set of fields together with their current values.
type Schema struct {
	Name    string      `json:"name,omitempty"`
	Version int         `json:"version,omitempty"`
	Fields  []FieldSpec `json:"fields"`
	Values  Values      `json:"values"`
}

// New assembles a schema, rejecting duplicate keys and malformed fields.
func New(fields ...FieldSpec) (*Schema, error) {
	s := &Schema{Fields: fields, Values: Values{}}
	if err := s.check(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) check() error {
	seen := make(map[string]bool)
	var walk func(fields []FieldSpec) error
	walk = func(fields []FieldSpec) error {
		for _, f := range fields {
			if f.Key == "" {
				return errors.New(errors.KindSchema, "field with empty key")
			}
			if seen[f.Key] {
				return errors.Newf(errors.KindSchema, "duplicate field key %q", f.Key)
			}
			seen[f.Key] = true
			switch {
			case f.Kind == KindGroup:
				if err := walk(f.Fields); err != nil {
					return err
				}
			case len(f.Fields) > 0:
				return errors.Newf(errors.KindSchema, "field %q of kind %s cannot hold nested fields", f.Key, f.Kind)
			case f.Kind == KindChoice && len(f.Choices) == 0:
				return errors.Newf(errors.KindSchema, "choice field %q has no choices", f.Key)
			}
		}
		return nil
	}
	return walk(s.Fields)
}

// Walk calls fn for every value-holding field in declaration order,
// descending into groups.
func (s *Schema) Walk(fn func(FieldSpec)) {
	var walk func(fields []FieldSpec)
	walk = func(fields []FieldSpec) {
		for _, f := range fields {
			if f.Kind == KindGroup {
				walk(f.Fields)
				continue
			}
			fn(f)
		}
	}
	walk(s.Fields)
}

// Field looks up a value-holding field by key.
func (s *Schema) Field(key string) (FieldSpec, bool) {
	var found FieldSpec
	ok := false
	s.Walk(func(f FieldSpec) {
		if !ok && f.Key == key {
			found, ok = f, true
		}
	})
	return found, ok
}

// Keys returns the keys of all value-holding fields in order.
func (s *Schema) Keys() []string {
	var keys []string
	s.Walk(func(f FieldSpec) { keys = append(keys, f.Key) })
	return keys
}

// Defaults returns the default value of every field that declares one.
func (s *Schema) Defaults() Values {
	out := Values{}
	s.Walk(func(f FieldSpec) {
		if f.Default != nil {
			out[f.Key] = f.Default
		}
	})
	return out
}

// SensitiveKeys returns the keys of encrypted fields.
func (s *Schema) SensitiveKeys() []string {
	var keys []string
	s.Walk(func(f FieldSpec) {
		if f.Sensitive() {
			keys = append(keys, f.Key)
		}
	})
	return keys
}

// Masked returns a copy of values safe to show in diagnostics: encrypted
// fields are replaced by MaskPlaceholder.
func (s *Schema) Masked(values Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	s.Walk(func(f FieldSpec) {
		if _, ok := out[f.Key]; ok && f.Sensitive() {
			out[f.Key] = MaskPlaceholder
		}
	})
	return out
}

func (s *Schema) String() string {
	return fmt.Sprintf("%s@v%d (%d fields)", s.Name, s.Version, len(s.Keys()))
}
