// Package service resolves connector references and connection names and
// runs connectors for the CLI, the HTTP API and the MCP server.
package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"connkit/internal/credential"
	"connkit/internal/errors"
	"connkit/internal/plugin"
	"connkit/internal/schema"
	"connkit/internal/types"
)

// ErrNotFound is wrapped by lookups of unknown connectors, systems and
// connections.
var ErrNotFound = stderrors.New("not found")

// Service is the set of connectors and connections one process serves.
type Service struct {
	Registry    *plugin.Registry
	Connections *credential.Store
}

// New returns a service over r and conns. conns may be nil.
func New(r *plugin.Registry, conns *credential.Store) *Service {
	if conns == nil {
		conns = credential.NewStore()
	}
	return &Service{Registry: r, Connections: conns}
}

// Connector resolves "system/operation[@vN]".
func (s *Service) Connector(ref string) (plugin.Connector, error) {
	if _, _, err := plugin.ParseRef(ref); err != nil {
		return nil, err
	}
	c, ok := s.Registry.Get(ref)
	if !ok {
		return nil, fmt.Errorf("connector %q: %w", ref, ErrNotFound)
	}
	return c, nil
}

// Credential returns the named connection for a connector of system. An
// empty name means the connector runs without a connection.
func (s *Service) Credential(name, system string) (*credential.Credential, error) {
	if name == "" {
		return nil, nil
	}
	cred, ok := s.Connections.Get(name)
	if !ok {
		return nil, fmt.Errorf("connection %q: %w", name, ErrNotFound)
	}
	if cred.System != system {
		return nil, errors.Newf(errors.KindConfiguration,
			"connection %q belongs to system %q, not %q", name, cred.System, system)
	}
	return cred, nil
}

// Schema builds a connector schema and returns it with sensitive values
// masked.
func (s *Service) Schema(ctx context.Context, ref string, values schema.Values, changed string) (*schema.Schema, error) {
	c, err := s.Connector(ref)
	if err != nil {
		return nil, err
	}
	built, err := c.BuildSchema(ctx, values, changed)
	if built != nil {
		built = Masked(built)
	}
	return built, err
}

// Masked returns a copy of sc whose values are safe to show.
func Masked(sc *schema.Schema) *schema.Schema {
	out := *sc
	out.Values = schema.Values(sc.Masked(sc.Values))
	return &out
}

// Execute runs ref with values against the named connection.
func (s *Service) Execute(ctx context.Context, ref, connection string, values schema.Values) (*types.ExecutionResult, error) {
	c, err := s.Connector(ref)
	if err != nil {
		return nil, err
	}
	cred, err := s.Credential(connection, c.Info().System)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, values, cred), nil
}

// TestConnection checks a connection with its system's tester.
func (s *Service) TestConnection(ctx context.Context, connection string) (*types.ExecutionResult, error) {
	cred, ok := s.Connections.Get(connection)
	if !ok {
		return nil, fmt.Errorf("connection %q: %w", connection, ErrNotFound)
	}
	sys, ok := s.Registry.System(cred.System)
	if !ok {
		return nil, fmt.Errorf("system %q: %w", cred.System, ErrNotFound)
	}
	if sys.Tester == nil {
		return nil, errors.Newf(errors.KindConfiguration, "system %q cannot test connections", sys.Name)
	}
	return sys.Tester.TestConnection(ctx, cred), nil
}

// ConnectionInfo is a connection as it may be listed: sensitive values are
// masked.
type ConnectionInfo struct {
	Name   string         `json:"name"`
	System string         `json:"system"`
	Values map[string]any `json:"values"`
}

// ListConnections lists every connection with masked values.
func (s *Service) ListConnections() []ConnectionInfo {
	names := s.Connections.Names()
	out := make([]ConnectionInfo, 0, len(names))
	for _, name := range names {
		cred, _ := s.Connections.Get(name)
		out = append(out, ConnectionInfo{Name: name, System: cred.System, Values: cred.Masked()})
	}
	return out
}
