package server

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

func mcpExchange(t *testing.T, requests ...string) []map[string]any {
	t.Helper()
	api := testSetup(t)
	srv := NewMCPServer(api.svc, zap.NewNop(), "test")

	var out bytes.Buffer
	if err := srv.Serve(context.Background(), strings.NewReader(strings.Join(requests, "\n")), &out); err != nil {
		t.Fatalf("serve: %v", err)
	}
	var responses []map[string]any
	dec := json.NewDecoder(&out)
	for {
		var resp map[string]any
		err := dec.Decode(&resp)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestMCPInitializeAndNotification(t *testing.T) {
	responses := mcpExchange(t,
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
	)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	info := responses[0]["result"].(map[string]any)["serverInfo"].(map[string]any)
	if info["name"] != "connkit" || info["version"] != "test" {
		t.Errorf("serverInfo = %v", info)
	}
}

func TestMCPListTools(t *testing.T) {
	responses := mcpExchange(t, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	tools := responses[0]["result"].(map[string]any)["tools"].([]any)

	var status map[string]any
	for _, tool := range tools {
		m := tool.(map[string]any)
		if m["name"] == "error-handling__status__v1" {
			status = m
		}
	}
	if status == nil {
		t.Fatal("error-handling tool not listed")
	}
	input := status["inputSchema"].(map[string]any)
	props := input["properties"].(map[string]any)
	code := props["httpStatusCode"].(map[string]any)
	if enum := code["enum"].([]any); len(enum) != 8 || enum[0] != "200" {
		t.Errorf("enum = %v", enum)
	}
	if _, ok := props["connection"]; !ok {
		t.Error("connection argument missing")
	}
	if req := input["required"].([]any); len(req) != 1 || req[0] != "httpStatusCode" {
		t.Errorf("required = %v", req)
	}
}

func TestMCPCallTool(t *testing.T) {
	responses := mcpExchange(t,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"example__versioned__v1","arguments":{"connection":"ex","intProp":"z"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"example__versioned__v2","arguments":{"connection":"ex"}}}`,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"missing"}}`,
	)
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}

	ok := responses[0]["result"].(map[string]any)
	if ok["isError"] == true {
		t.Errorf("v1 call failed: %v", ok)
	}
	text := ok["content"].([]any)[0].(map[string]any)["text"].(string)
	if !strings.Contains(text, `"value": "cs-z"`) {
		t.Errorf("result text = %s", text)
	}

	for _, resp := range responses[1:] {
		if resp["result"].(map[string]any)["isError"] != true {
			t.Errorf("expected isError for %v", resp["id"])
		}
	}
}

func TestMCPUnknownMethod(t *testing.T) {
	responses := mcpExchange(t, `{"jsonrpc":"2.0","id":6,"method":"resources/list"}`)
	e := responses[0]["error"].(map[string]any)
	if e["code"].(float64) != -32601 {
		t.Errorf("code = %v, want -32601", e["code"])
	}
}
