package builtin

import (
	"context"
	"fmt"
	"strings"

	"connkit/internal/credential"
	"connkit/internal/errors"
	"connkit/internal/loader"
	"connkit/internal/plugin"
	"connkit/internal/schema"
)

const (
	formDropdownKey = "formDropdown"
	// FormsErrorTitle is reported when the forms cannot be listed.
	FormsErrorTitle = "Unable to load forms"
)

func formFieldSpec(f loader.FormField) (schema.FieldSpec, error) {
	label := f.Label
	if label == "" {
		label = f.ID
	}
	switch strings.ToUpper(f.Type) {
	case loader.FormText, "":
		return schema.Text(f.ID, label), nil
	case loader.FormInteger:
		return schema.Integer(f.ID, label), nil
	case loader.FormBoolean:
		return schema.Boolean(f.ID, label), nil
	default:
		return schema.FieldSpec{}, fmt.Errorf("field %q has unsupported type %q", f.ID, f.Type)
	}
}

// formExpander returns the fields of the selected form. An unknown form
// selects no fields; the dropdown's choice check reports it.
func formExpander(forms []loader.Form) schema.Expander {
	return func(_ context.Context, v any) ([]schema.FieldSpec, error) {
		name := fmt.Sprint(v)
		for _, form := range forms {
			if form.Name != name {
				continue
			}
			fields := make([]schema.FieldSpec, 0, len(form.Fields))
			for _, f := range form.Fields {
				spec, err := formFieldSpec(f)
				if err != nil {
					return nil, fmt.Errorf("form %q: %w", name, err)
				}
				fields = append(fields, spec)
			}
			return fields, nil
		}
		return nil, nil
	}
}

// dataEntry builds its schema from the forms data source: a dropdown of
// form names whose selection expands into that form's fields.
func dataEntry(d Deps) (*plugin.System, []plugin.Connector) {
	sys := &plugin.System{
		Name:        "data-entry",
		Description: "Dynamic forms backed by an external data source",
		Connection:  connection("data-entry"),
	}

	info := plugin.Info{System: sys.Name, Operation: "form", Version: 1, Description: "Fill out a form chosen from a dropdown"}
	form := local(d, info, nil,
		func(values schema.Values, _ *credential.Credential) map[string]any {
			return map[string]any(values.Clone())
		},
		func(_ context.Context, values schema.Values, _ *credential.Credential) (map[string]any, map[string]any, error) {
			payload := make(map[string]any, len(values))
			diag := make(map[string]any, len(values))
			for k, v := range values {
				payload[k] = v
				diag[k] = values.String(k)
			}
			return payload, diag, nil
		})
	form.define = func(ctx context.Context) (*schema.Definition, error) {
		forms, err := d.Forms(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindSchema, "listing forms").WithTitle(FormsErrorTitle)
		}
		choices := make([]schema.Choice, len(forms))
		for i, f := range forms {
			choices[i] = schema.Choice{Name: f.Name, Value: f.Name}
		}
		return &schema.Definition{
			Name:    info.Name(),
			Version: info.Version,
			Fields: []schema.FieldSpec{
				schema.Dropdown(formDropdownKey, "My Corp Forms", choices...).
					Require().
					Refresh().
					WithInstruction("Select a form to fill out"),
			},
			Dependents: []schema.Dependent{{Trigger: formDropdownKey, Expand: formExpander(forms)}},
		}, nil
	}
	return sys, []plugin.Connector{form}
}
