// Package builtin provides the connectors shipped with connkit.
package builtin

import (
	"context"
	"fmt"

	"connkit/internal/content"
	"connkit/internal/credential"
	"connkit/internal/engine"
	"connkit/internal/loader"
	"connkit/internal/plugin"
	"connkit/internal/schema"
	"connkit/internal/types"
)

// Deps are the collaborators builtin connectors run against.
type Deps struct {
	Executor *engine.Executor
	// Content stores documents for document and folder fields.
	Content *content.Store
	// Forms lists the data entry forms. Defaults to loader.DefaultForms.
	Forms func(ctx context.Context) ([]loader.Form, error)
	// DriveMaxPages bounds Drive listings.
	DriveMaxPages int
	// Endpoints overrides a system's base URL, keyed by system name.
	Endpoints map[string]string
}

// Register adds every builtin system and connector to r.
func Register(r *plugin.Registry, d Deps) error {
	if d.Executor == nil {
		return fmt.Errorf("builtin connectors need an executor")
	}
	if d.Forms == nil {
		d.Forms = func(context.Context) ([]loader.Form, error) { return loader.DefaultForms(), nil }
	}

	for _, build := range []func(Deps) (*plugin.System, []plugin.Connector){
		helloWorld,
		versioned,
		dropdownDiffs,
		places,
		textDetection,
		errorHandling,
		dataEntry,
		googleDrive,
		github,
	} {
		sys, connectors := build(d)
		if err := r.RegisterSystem(sys); err != nil {
			return err
		}
		for _, c := range connectors {
			if err := r.Register(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// connector binds a schema definition to an execution function. The
// schema is rebuilt from the given values before every execution so
// defaults and dependent fields apply.
type connector struct {
	info       plugin.Info
	definition *schema.Definition
	// define, when set, replaces definition and is called on every build.
	define   func(ctx context.Context) (*schema.Definition, error)
	executor *engine.Executor
	run      func(ctx context.Context, s *schema.Schema, cred *credential.Credential) *types.ExecutionResult
}

func newConnector(d Deps, info plugin.Info, fields []schema.FieldSpec, run func(context.Context, *schema.Schema, *credential.Credential) *types.ExecutionResult) *connector {
	return &connector{
		info:       info,
		definition: &schema.Definition{Name: info.Name(), Version: info.Version, Fields: fields},
		executor:   d.Executor,
		run:        run,
	}
}

func (c *connector) Info() plugin.Info { return c.info }

func (c *connector) BuildSchema(ctx context.Context, values schema.Values, changed string) (*schema.Schema, error) {
	def := c.definition
	if c.define != nil {
		var err error
		if def, err = c.define(ctx); err != nil {
			return nil, err
		}
	}
	return def.Build(ctx, values, changed)
}

func (c *connector) Execute(ctx context.Context, values schema.Values, cred *credential.Credential) *types.ExecutionResult {
	s, err := c.BuildSchema(ctx, values, "")
	if err != nil {
		return c.executor.Reject(ctx, c.info.Ref(), cred, err)
	}
	return c.run(ctx, s, cred)
}

func connection(name string, fields ...schema.FieldSpec) *schema.Definition {
	return &schema.Definition{Name: name, Version: 1, Fields: fields}
}
