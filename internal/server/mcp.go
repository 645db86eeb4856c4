package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"connkit/internal/plugin"
	"connkit/internal/schema"
	"connkit/internal/service"
	"connkit/internal/types"
)

// connectionArg is the tool argument naming the connection to run against.
const connectionArg = "connection"

// MCPServer implements a JSON-RPC based MCP (Model Context Protocol) server
// that exposes connectors as tools.
type MCPServer struct {
	svc     *service.Service
	log     *zap.Logger
	version string
}

// NewMCPServer creates a new MCP server.
func NewMCPServer(svc *service.Service, log *zap.Logger, version string) *MCPServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &MCPServer{svc: svc, log: log, version: version}
}

// JSON-RPC types
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   any    `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MCP protocol types
type mcpInitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      mcpServerInfo  `json:"serverInfo"`
}

type mcpServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type mcpTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

type mcpToolsResult struct {
	Tools []mcpTool `json:"tools"`
}

type mcpCallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type mcpCallToolResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServeStdio runs the MCP server on stdin/stdout.
func (s *MCPServer) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve answers requests read from r on w until r is exhausted.
func (s *MCPServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	decoder := json.NewDecoder(r)
	encoder := json.NewEncoder(w)

	for {
		var req jsonRPCRequest
		if err := decoder.Decode(&req); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("decoding request: %w", err)
		}

		resp := s.handleRequest(ctx, req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				return fmt.Errorf("encoding response: %w", err)
			}
		}
	}
}

func (s *MCPServer) handleRequest(ctx context.Context, req jsonRPCRequest) *jsonRPCResponse {
	switch req.Method {
	case "initialize":
		return &jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: mcpInitializeResult{
				ProtocolVersion: "2024-11-05",
				Capabilities: map[string]any{
					"tools": map[string]any{},
				},
				ServerInfo: mcpServerInfo{
					Name:    "connkit",
					Version: s.version,
				},
			},
		}

	case "notifications/initialized":
		// No response needed for notifications.
		return nil

	case "tools/list":
		return &jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  s.listTools(ctx),
		}

	case "tools/call":
		var params mcpCallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return &jsonRPCResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   jsonRPCError{Code: -32602, Message: "invalid params: " + err.Error()},
			}
		}
		result, isError := s.callTool(ctx, params)
		return &jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: mcpCallToolResult{
				Content: []mcpContent{{Type: "text", Text: result}},
				IsError: isError,
			},
		}

	default:
		return &jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   jsonRPCError{Code: -32601, Message: "method not found: " + req.Method},
		}
	}
}

// toolName turns "system/operation@vN" into a name MCP clients accept.
func toolName(info plugin.Info) string {
	return fmt.Sprintf("%s__%s__v%d", info.System, info.Operation, max(info.Version, 1))
}

func (s *MCPServer) tools() map[string]plugin.Info {
	out := make(map[string]plugin.Info)
	for _, info := range s.svc.Registry.List() {
		out[toolName(info)] = info
	}
	return out
}

func (s *MCPServer) listTools(ctx context.Context) mcpToolsResult {
	infos := s.svc.Registry.List()
	tools := make([]mcpTool, 0, len(infos))
	for _, info := range infos {
		sc, err := s.svc.Schema(ctx, info.Ref(), nil, "")
		if sc == nil {
			s.log.Warn("skipping tool without schema", zap.String("connector", info.Ref()), zap.Error(err))
			continue
		}
		desc := info.Description
		if desc == "" {
			desc = info.Ref()
		}
		tools = append(tools, mcpTool{
			Name:        toolName(info),
			Description: desc,
			InputSchema: inputSchema(sc),
		})
	}
	return mcpToolsResult{Tools: tools}
}

// inputSchema renders a connector schema as a JSON schema object. The
// choices are those of the default schema; dependent fields appear once
// their trigger is set.
func inputSchema(sc *schema.Schema) map[string]any {
	properties := map[string]any{
		connectionArg: map[string]any{
			"type":        "string",
			"description": "Name of the connection to run against",
		},
	}
	var required []string

	sc.Walk(func(f schema.FieldSpec) {
		prop := map[string]any{}
		switch f.Kind {
		case schema.KindBoolean:
			prop["type"] = "boolean"
		case schema.KindInteger:
			prop["type"] = "integer"
		default:
			prop["type"] = "string"
		}
		if len(f.Choices) > 0 {
			values := make([]string, len(f.Choices))
			for i, c := range f.Choices {
				values[i] = fmt.Sprint(c.Value)
			}
			prop["enum"] = values
		}
		desc := strings.TrimSpace(strings.Join([]string{f.Label, f.Description, f.Instruction}, ". "))
		desc = strings.Trim(desc, ". ")
		if desc != "" {
			prop["description"] = desc
		}
		if f.Default != nil {
			prop["default"] = f.Default
		}
		properties[f.Key] = prop
		if f.Required {
			required = append(required, f.Key)
		}
	})

	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func (s *MCPServer) callTool(ctx context.Context, params mcpCallToolParams) (string, bool) {
	info, ok := s.tools()[params.Name]
	if !ok {
		return fmt.Sprintf("tool %q not found", params.Name), true
	}

	values := schema.Values{}
	connection := ""
	for k, v := range params.Arguments {
		if k == connectionArg {
			connection = fmt.Sprint(v)
			continue
		}
		values[k] = v
	}

	result, err := s.svc.Execute(ctx, info.Ref(), connection, values)
	if err != nil {
		return fmt.Sprintf("error: %v", err), true
	}

	resultJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("error marshaling result: %v", err), true
	}

	return string(resultJSON), result.Outcome == types.OutcomeError
}
