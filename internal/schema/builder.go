package schema

import (
	"context"
	"fmt"

	"connkit/internal/errors"
)

// Expander returns the fields that depend on a trigger field's value, for
// example the fields of the form selected in a dropdown.
type Expander func(ctx context.Context, value any) ([]FieldSpec, error)

// Dependent binds an Expander to its trigger field.
type Dependent struct {
	Trigger string
	Expand  Expander
}

// Definition is the static description from which schemas are built.
type Definition struct {
	Name       string
	Version    int
	Fields     []FieldSpec
	Dependents []Dependent
}

// Build produces the schema for the current values.
//
// With nil values the default schema is returned. Dependent fields are
// expanded from their trigger's current value and inserted after it. When
// changed names a refreshOnChange trigger, the fields it expands start from
// their defaults; values of fields that left the schema are dropped and all
// other values are kept as given.
//
// A failing expander never aborts the caller: the base schema is returned
// together with a schema error.
func (d *Definition) Build(ctx context.Context, current Values, changed string) (*Schema, error) {
	base, err := New(cloneFields(d.Fields)...)
	if err != nil {
		return nil, err
	}
	base.Name, base.Version = d.Name, d.Version

	values := current.Clone()
	if values == nil {
		values = base.Defaults()
	}

	fields := base.Fields
	expanded := make(map[string][]string)
	for _, dep := range d.Dependents {
		if _, ok := base.Field(dep.Trigger); !ok {
			return d.partial(base, values), errors.Newf(errors.KindSchema, "dependent fields reference undeclared trigger %q", dep.Trigger).
				WithTitle("Unable to build configuration")
		}
		v := values[dep.Trigger]
		if isEmpty(v) {
			continue
		}
		extra, err := expand(ctx, dep, v)
		if err != nil {
			return d.partial(base, values), errors.Wrap(err, errors.KindSchema, fmt.Sprintf("loading fields for %q", dep.Trigger)).
				WithTitle("Unable to build configuration").
				WithDetail("trigger", dep.Trigger)
		}
		extra = cloneFields(extra)
		var keys []string
		(&Schema{Fields: extra}).Walk(func(f FieldSpec) { keys = append(keys, f.Key) })
		expanded[dep.Trigger] = append(expanded[dep.Trigger], keys...)
		fields = insertAfter(fields, dep.Trigger, extra)
	}

	s, err := New(fields...)
	if err != nil {
		return d.partial(base, values), errors.Wrap(err, errors.KindSchema, "assembling dependent fields").
			WithTitle("Unable to build configuration")
	}
	s.Name, s.Version = d.Name, d.Version

	reset := make(map[string]bool)
	if changed != "" {
		if f, ok := s.Field(changed); ok && f.RefreshOnChange {
			for _, k := range expanded[changed] {
				reset[k] = true
			}
		}
	}
	s.Values = retain(s, values, reset)
	attachErrors(s)
	return s, nil
}

// partial returns the base schema holding whatever values still apply to it.
func (d *Definition) partial(base *Schema, values Values) *Schema {
	base.Values = retain(base, values, nil)
	attachErrors(base)
	return base
}

func retain(s *Schema, values Values, reset map[string]bool) Values {
	out := Values{}
	s.Walk(func(f FieldSpec) {
		if v, ok := values[f.Key]; ok && !reset[f.Key] {
			out[f.Key] = v
			return
		}
		if f.Default != nil {
			out[f.Key] = f.Default
		}
	})
	return out
}

func attachErrors(s *Schema) {
	eachField(s.Fields, func(f *FieldSpec) {
		f.Errors = RuleErrors(*f, s.Values[f.Key])
	})
}

func expand(ctx context.Context, dep Dependent, v any) (fields []FieldSpec, err error) {
	defer func() {
		if r := recover(); r != nil {
			fields, err = nil, fmt.Errorf("expander for %q panicked: %v", dep.Trigger, r)
		}
	}()
	return dep.Expand(ctx, v)
}

func eachField(fields []FieldSpec, fn func(*FieldSpec)) {
	for i := range fields {
		if fields[i].Kind == KindGroup {
			eachField(fields[i].Fields, fn)
			continue
		}
		fn(&fields[i])
	}
}

// insertAfter places extra right after the field keyed key, at whatever
// nesting level it lives.
func insertAfter(fields []FieldSpec, key string, extra []FieldSpec) []FieldSpec {
	out := make([]FieldSpec, 0, len(fields)+len(extra))
	for _, f := range fields {
		if f.Kind == KindGroup {
			f.Fields = insertAfter(f.Fields, key, extra)
		}
		out = append(out, f)
		if f.Key == key {
			out = append(out, extra...)
		}
	}
	return out
}

func cloneFields(fields []FieldSpec) []FieldSpec {
	out := make([]FieldSpec, len(fields))
	for i, f := range fields {
		out[i] = f.clone()
	}
	return out
}
