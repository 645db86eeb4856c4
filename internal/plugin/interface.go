package plugin

import (
	"context"
	"fmt"

	"connkit/internal/credential"
	"connkit/internal/schema"
	"connkit/internal/types"
)

// Connector is one operation of an external system. The host only ever
// asks for a schema and runs an execution.
type Connector interface {
	// Info identifies the connector.
	Info() Info

	// BuildSchema returns the configuration schema for the current values.
	// changed names the field the user just edited, or "".
	BuildSchema(ctx context.Context, values schema.Values, changed string) (*schema.Schema, error)

	// Execute runs the operation and returns its single result.
	Execute(ctx context.Context, values schema.Values, cred *credential.Credential) *types.ExecutionResult
}

// Info describes a connector.
type Info struct {
	System      string `json:"system" yaml:"system"`
	Operation   string `json:"operation" yaml:"operation"`
	Version     int    `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Name returns "system/operation".
func (i Info) Name() string {
	return i.System + "/" + i.Operation
}

// Ref returns "system/operation@vN".
func (i Info) Ref() string {
	return fmt.Sprintf("%s@v%d", i.Name(), i.version())
}

func (i Info) version() int {
	if i.Version < 1 {
		return 1
	}
	return i.Version
}

// ConnectionTester checks that a connection's credential works.
type ConnectionTester interface {
	TestConnection(ctx context.Context, cred *credential.Credential) *types.ExecutionResult
}

// ConnectionTesterFunc adapts a function to ConnectionTester.
type ConnectionTesterFunc func(ctx context.Context, cred *credential.Credential) *types.ExecutionResult

func (f ConnectionTesterFunc) TestConnection(ctx context.Context, cred *credential.Credential) *types.ExecutionResult {
	return f(ctx, cred)
}

// System describes the shared connection of a group of connectors.
type System struct {
	Name        string
	Description string
	// Connection defines the connection values; encrypted fields are
	// stored as secrets.
	Connection *schema.Definition
	// OAuth is set for systems whose bearer tokens can be refreshed.
	OAuth  *credential.OAuthEndpoint
	Tester ConnectionTester
}

// ConnectionSchema builds the connection schema for values.
func (s *System) ConnectionSchema(ctx context.Context, values schema.Values) (*schema.Schema, error) {
	if s.Connection == nil {
		return schema.New()
	}
	return s.Connection.Build(ctx, values, "")
}
