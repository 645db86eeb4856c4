package builtin

import (
	"context"
	"strings"

	"connkit/internal/content"
	"connkit/internal/credential"
	"connkit/internal/engine"
	"connkit/internal/errors"
	"connkit/internal/plugin"
	"connkit/internal/schema"
	"connkit/internal/types"
)

const (
	csPropKey  = "csProp"
	intPropKey = "intProp"

	// UploadErrorTitle is reported when the hello document cannot be stored.
	UploadErrorTitle = "Couldn't upload any documents"
	helloDocument    = "hello.txt"
	helloContent     = "asdf"
)

// local wraps a function in a connector that runs through the executor's
// local path.
func local(d Deps, info plugin.Info, fields []schema.FieldSpec, diag func(schema.Values, *credential.Credential) map[string]any,
	run func(ctx context.Context, values schema.Values, cred *credential.Credential) (map[string]any, map[string]any, error)) *connector {
	return newConnector(d, info, fields, func(ctx context.Context, s *schema.Schema, cred *credential.Credential) *types.ExecutionResult {
		return d.Executor.RunLocal(ctx, &engine.LocalOperation{
			Connector:   info.Ref(),
			Schema:      s,
			Diagnostics: diag,
			Run:         run,
		}, s.Values, cred)
	})
}

func concatDiagnostics(values schema.Values, cred *credential.Credential) map[string]any {
	return map[string]any{
		"csValue":          cred.Value(csPropKey),
		"integrationValue": values.String(intPropKey),
	}
}

func csPropConnection(system string) *schema.Definition {
	return connection(system,
		schema.Text(csPropKey, "Text Property").
			Require().
			WithDescription("This will be concatenated with the integration text property on execute"),
	)
}

func helloWorld(d Deps) (*plugin.System, []plugin.Connector) {
	sys := &plugin.System{
		Name:        "hello-world",
		Description: "Concatenates a connection value with an operation value",
		Connection:  csPropConnection("hello-world"),
	}

	fields := []schema.FieldSpec{
		schema.Folder("documentLocation", "Document Location").
			Require().
			Refresh().
			WithInstruction("The hello document is saved into this folder"),
		schema.Text(intPropKey, "Text Property").
			Require().
			WithDescription("This will be concatenated with the connected system text property on execute"),
	}
	hello := local(d, plugin.Info{System: sys.Name, Operation: "hello", Version: 1, Description: "Say hello and save a document"},
		fields, concatDiagnostics,
		func(ctx context.Context, values schema.Values, cred *credential.Credential) (map[string]any, map[string]any, error) {
			if d.Content == nil {
				return nil, nil, errors.New(errors.KindConfiguration, "no content store is configured").WithTitle(UploadErrorTitle)
			}
			var doc *content.Document
			err := engine.Retry(ctx, 2, func(ctx context.Context) error {
				var err error
				doc, err = d.Content.Save(ctx, values.String("documentLocation"), helloDocument, strings.NewReader(helloContent))
				return err
			})
			if err != nil {
				return nil, nil, errors.Wrap(err, errors.KindRemote, err.Error()).WithTitle(UploadErrorTitle)
			}
			return map[string]any{
				"hello":          "world",
				"concat":         cred.Value(csPropKey) + values.String(intPropKey),
				"savedDocuments": []any{doc},
			}, nil, nil
		})
	return sys, []plugin.Connector{hello}
}

// versioned registers two major versions of one operation. v2 adds a
// required field, which v1 integrations would fail to satisfy.
func versioned(d Deps) (*plugin.System, []plugin.Connector) {
	sys := &plugin.System{
		Name:        "example",
		Description: "Major versioned operation",
		Connection:  csPropConnection("example"),
	}

	v1 := local(d, plugin.Info{System: sys.Name, Operation: "versioned", Version: 1, Description: "Concatenate one value"},
		[]schema.FieldSpec{schema.Text(intPropKey, "Text Property").Require()},
		concatDiagnostics,
		func(_ context.Context, values schema.Values, cred *credential.Credential) (map[string]any, map[string]any, error) {
			return map[string]any{"value": cred.Value(csPropKey) + values.String(intPropKey)}, nil, nil
		})

	v2 := local(d, plugin.Info{System: sys.Name, Operation: "versioned", Version: 2, Description: "Concatenate two values"},
		[]schema.FieldSpec{
			schema.Text(intPropKey, "Text Property").Require(),
			schema.Text("intProp2", "Text Property 2").Require(),
		},
		concatDiagnostics,
		func(_ context.Context, values schema.Values, cred *credential.Credential) (map[string]any, map[string]any, error) {
			return map[string]any{
				"value": cred.Value(csPropKey) + values.String(intPropKey) + values.String("intProp2"),
			}, nil, nil
		})
	return sys, []plugin.Connector{v1, v2}
}

func localTypeGroup(key, name, suffix string) schema.FieldSpec {
	return schema.Group(key, name,
		schema.Dropdown("localTypeDropdown_"+suffix, "Local Type Dropdown",
			schema.Choice{Name: "Local Type Dropdown Choice 1", Value: "local_type_dropdown_choice_1_" + suffix + "_changed"},
			schema.Choice{Name: "Local Type Dropdown Choice 2", Value: "local_type_dropdown_choice_2_" + suffix + "_changed"},
		),
		schema.Text("localTypeTextBox_"+suffix, "Local Type Text Box").
			WithDescription("This will be concatenated with the integration text property on execute"),
	)
}

func rootFields(suffix string) []schema.FieldSpec {
	return []schema.FieldSpec{
		schema.Dropdown("rootPropertyDropdown_"+suffix, "Root Property Dropdown",
			schema.Choice{Name: "Root Property Choice 1", Value: "root_property_choice_1_" + suffix + "_changed"},
			schema.Choice{Name: "Root Property Choice 2", Value: "root_property_choice_2_" + suffix + "_changed"},
		).WithDescription("This will be concatenated with the integration text property on execute"),
		schema.Text("rootPropertyTextBox_"+suffix, "Root Property Text Box").
			WithDescription("This will be concatenated with the integration text property on execute"),
	}
}

// dropdownDiffs shows nested groups next to root level dropdowns on both
// the connection and the operation.
func dropdownDiffs(d Deps) (*plugin.System, []plugin.Connector) {
	connFields := append([]schema.FieldSpec{
		schema.Text(csPropKey, "Text Property"),
		localTypeGroup("localTypeCS", "localPropertyCS", "cs"),
	}, rootFields("cs")...)
	sys := &plugin.System{
		Name:        "dropdown-diffs",
		Description: "Nested and root level dropdowns",
		Connection:  connection("dropdown-diffs", connFields...),
	}

	fields := append([]schema.FieldSpec{
		schema.Text(intPropKey, "Text Property"),
		localTypeGroup("localTypeInt", "localPropertyInt", "int"),
	}, rootFields("int")...)
	diff := local(d, plugin.Info{System: sys.Name, Operation: "diff", Version: 1, Description: "Concatenate values from nested configurations"},
		fields, concatDiagnostics,
		func(_ context.Context, values schema.Values, cred *credential.Credential) (map[string]any, map[string]any, error) {
			return map[string]any{
				"hello":  "world",
				"concat": cred.Value(csPropKey) + values.String(intPropKey),
			}, nil, nil
		})
	return sys, []plugin.Connector{diff}
}
