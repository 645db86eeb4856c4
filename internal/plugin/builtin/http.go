package builtin

import (
	"context"
	"strings"

	"connkit/internal/credential"
	"connkit/internal/engine"
	"connkit/internal/plugin"
	"connkit/internal/schema"
	"connkit/internal/types"
)

// endpoint returns the base URL of system, honouring d.Endpoints.
func (d Deps) endpoint(system, fallback string) string {
	if u := d.Endpoints[system]; u != "" {
		return strings.TrimRight(u, "/")
	}
	return fallback
}

// httpConnector is a connector whose execution is a single HTTP operation
// built from the current schema.
func httpConnector(d Deps, info plugin.Info, fields []schema.FieldSpec, op func(s *schema.Schema) *engine.Operation) *connector {
	return newConnector(d, info, fields, func(ctx context.Context, s *schema.Schema, cred *credential.Credential) *types.ExecutionResult {
		return d.Executor.Execute(ctx, op(s), s.Values, cred)
	})
}

// clientDiagnostics is the request bucket shared by OAuth client systems:
// the client id in clear and the secret as a placeholder.
func clientDiagnostics(_ schema.Values, cred *credential.Credential) map[string]any {
	return map[string]any{
		"clientId":     cred.Value("clientId"),
		"clientSecret": credential.Placeholder,
	}
}
