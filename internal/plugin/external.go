package plugin

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"connkit/internal/credential"
	"connkit/internal/engine"
	"connkit/internal/errors"
	"connkit/internal/schema"
	"connkit/internal/types"
)

// ExternalConnector wraps an external executable that speaks JSON over stdin/stdout.
// Protocol:
//
//	Metadata: run with --describe to get {"name": "system/operation", "version": 1, "description": "...", "fields": [...]}
//	Request:  {"values": {...}, "connection": {"name": "...", "system": "...", "values": {...}}}
//	Response: {"outcome": "success|error", "payload": {...}, "errorTitle": "...", "errorMessage": "...", "diagnostics": {"response": {...}}}
//
// Connection values, secrets included, are written to the plugin's stdin
// only; they never appear in arguments or logs.
type ExternalConnector struct {
	info       Info
	path       string
	definition *schema.Definition
	executor   *engine.Executor
}

type externalDescribe struct {
	Name        string             `json:"name"`
	Version     int                `json:"version"`
	Description string             `json:"description"`
	Fields      []schema.FieldSpec `json:"fields"`
}

type externalConnection struct {
	Name   string            `json:"name"`
	System string            `json:"system"`
	Values map[string]string `json:"values"`
}

type externalRequest struct {
	Values     schema.Values       `json:"values"`
	Connection *externalConnection `json:"connection,omitempty"`
}

type externalResponse struct {
	Outcome      types.Outcome  `json:"outcome"`
	Payload      map[string]any `json:"payload"`
	ErrorTitle   string         `json:"errorTitle"`
	ErrorMessage string         `json:"errorMessage"`
	Diagnostics  struct {
		Response map[string]any `json:"response"`
	} `json:"diagnostics"`
}

// LoadExternalPlugin loads an external plugin from an executable path.
func LoadExternalPlugin(ctx context.Context, path string, executor *engine.Executor) (*ExternalConnector, error) {
	// Run with --describe to get metadata.
	cmd := exec.CommandContext(ctx, path, "--describe")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running %s --describe: %w", path, err)
	}

	var desc externalDescribe
	if err := json.Unmarshal(out, &desc); err != nil {
		return nil, fmt.Errorf("parsing describe output from %s: %w", path, err)
	}

	if desc.Name == "" {
		desc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	system, operation, ok := strings.Cut(desc.Name, "/")
	if !ok {
		system, operation = desc.Name, "execute"
	}

	def := &schema.Definition{Name: desc.Name, Version: desc.Version, Fields: desc.Fields}
	if _, err := def.Build(ctx, nil, ""); err != nil {
		return nil, fmt.Errorf("plugin %s: %w", path, err)
	}

	return &ExternalConnector{
		info: Info{
			System:      system,
			Operation:   operation,
			Version:     desc.Version,
			Description: desc.Description,
		},
		path:       path,
		definition: def,
		executor:   executor,
	}, nil
}

func (ec *ExternalConnector) Info() Info { return ec.info }

func (ec *ExternalConnector) BuildSchema(ctx context.Context, values schema.Values, changed string) (*schema.Schema, error) {
	return ec.definition.Build(ctx, values, changed)
}

func (ec *ExternalConnector) Execute(ctx context.Context, values schema.Values, cred *credential.Credential) *types.ExecutionResult {
	s, err := ec.definition.Build(ctx, values, "")
	if err != nil {
		s = nil
	}
	return ec.executor.RunLocal(ctx, &engine.LocalOperation{
		Connector: ec.info.Ref(),
		Schema:    s,
		Diagnostics: func(values schema.Values, cred *credential.Credential) map[string]any {
			return map[string]any{"plugin": filepath.Base(ec.path), "connection": cred.Masked()}
		},
		Run: ec.invoke,
	}, values, cred)
}

func (ec *ExternalConnector) invoke(ctx context.Context, values schema.Values, cred *credential.Credential) (map[string]any, map[string]any, error) {
	req := externalRequest{Values: values}
	if cred != nil {
		conn := &externalConnection{Name: cred.Connection, System: cred.System, Values: map[string]string{}}
		for _, k := range cred.Keys() {
			conn.Values[k] = cred.Value(k)
		}
		req.Connection = conn
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling request: %w", err)
	}

	cmd := exec.CommandContext(ctx, ec.path)
	cmd.Stdin = bytes.NewReader(reqJSON)

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, map[string]any{"stderr": string(exitErr.Stderr)},
				errors.Newf(errors.KindRemote, "plugin exited with code %d", exitErr.ExitCode()).
					WithTitle("Plugin failed")
		}
		return nil, nil, errors.Wrap(err, errors.KindTransport, "running plugin")
	}

	var resp externalResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, map[string]any{"Raw Response": string(out)},
			errors.Wrap(err, errors.KindNormalization, "parsing plugin response")
	}
	if resp.Outcome == types.OutcomeError {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = "plugin reported an error"
		}
		return nil, resp.Diagnostics.Response, errors.New(errors.KindRemote, msg).WithTitle(resp.ErrorTitle)
	}
	return resp.Payload, resp.Diagnostics.Response, nil
}

// LoadExternalPlugins discovers and loads all plugins from a directory.
// Plugins are executable files in the directory.
func LoadExternalPlugins(ctx context.Context, dir string, executor *engine.Executor, log *zap.Logger) ([]*ExternalConnector, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading plugins directory: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	var plugins []*ExternalConnector
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			continue
		}
		// Check if executable.
		if info.Mode()&0111 == 0 {
			continue
		}

		plugin, err := LoadExternalPlugin(ctx, path, executor)
		if err != nil {
			log.Warn("failed to load plugin", zap.String("path", path), zap.Error(err))
			continue
		}
		plugins = append(plugins, plugin)
	}

	return plugins, nil
}
