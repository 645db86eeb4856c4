package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConnection(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "places.yaml", `
name: places
system: google-places
values:
  apiKey: secret:PLACES_KEY
`)

	conn, err := LoadConnection(path)
	if err != nil {
		t.Fatalf("LoadConnection error: %v", err)
	}
	if conn.Name != "places" || conn.System != "google-places" {
		t.Errorf("conn = %+v", conn)
	}
	if conn.Values["apiKey"] != "secret:PLACES_KEY" {
		t.Errorf("apiKey = %q", conn.Values["apiKey"])
	}
	if conn.Path() != path {
		t.Errorf("path = %q", conn.Path())
	}
}

func TestLoadConnectionMissingSystem(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "name: bad\n")

	_, err := LoadConnection(path)
	if err == nil {
		t.Fatal("expected error for missing system")
	}
	if !strings.Contains(err.Error(), "system") {
		t.Errorf("error = %v", err)
	}
}

func TestLoadConnectionsRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: a\nsystem: hello-world\n")
	writeFile(t, dir, "nested/b.yml", "name: b\nsystem: github\n")
	writeFile(t, dir, "notes.txt", "ignored")

	conns, err := LoadConnections(dir)
	if err != nil {
		t.Fatalf("LoadConnections error: %v", err)
	}
	if len(conns) != 2 || conns["a"] == nil || conns["b"] == nil {
		t.Errorf("conns = %v", conns)
	}
}

func TestLoadConnectionsDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: same\nsystem: github\n")
	writeFile(t, dir, "b.yaml", "name: same\nsystem: github\n")

	if _, err := LoadConnections(dir); err == nil {
		t.Fatal("expected duplicate connection error")
	}
}

func TestLoadConnectionsMissingDir(t *testing.T) {
	conns, err := LoadConnections(filepath.Join(t.TempDir(), "none"))
	if err != nil || len(conns) != 0 {
		t.Errorf("got %v, %v", conns, err)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("CONNKIT_TEST_OWNER", "octocat")
	conn := &Connection{
		Name:   "gh",
		System: "github",
		Values: map[string]string{
			"authToken": "secret:GITHUB_TOKEN",
			"owner":     "env:CONNKIT_TEST_OWNER",
			"note":      "plain",
		},
	}

	cred, err := conn.Credential(map[string]string{"GITHUB_TOKEN": "ghp_secret"}, []string{"clientSecret"})
	if err != nil {
		t.Fatalf("Credential error: %v", err)
	}
	if cred.Value("authToken") != "ghp_secret" || cred.Value("owner") != "octocat" || cred.Value("note") != "plain" {
		t.Errorf("values = %v", cred.Masked())
	}
	if !cred.Sensitive("authToken") || !cred.Sensitive("clientSecret") || cred.Sensitive("owner") {
		t.Error("sensitive keys not applied")
	}
}

func TestResolveMissingReferences(t *testing.T) {
	conn := &Connection{Name: "gh", Values: map[string]string{"authToken": "secret:NOPE"}}
	_, _, err := conn.Resolve(map[string]string{"OTHER": "ghp_secret"})
	if err == nil || !strings.Contains(err.Error(), "NOPE") {
		t.Fatalf("error = %v", err)
	}
	if strings.Contains(err.Error(), "ghp_secret") {
		t.Error("error leaks a secret value")
	}

	conn.Values = map[string]string{"owner": "env:CONNKIT_TEST_SURELY_UNSET"}
	if _, _, err := conn.Resolve(nil); err == nil {
		t.Fatal("expected error for unset environment variable")
	}
}

func TestStore(t *testing.T) {
	conns := map[string]*Connection{
		"places": {Name: "places", System: "google-places", Values: map[string]string{"apiKey": "AIza"}},
		"hello":  {Name: "hello", System: "hello-world", Values: map[string]string{"csProp": "cs"}},
	}
	store, err := Store(conns, nil, func(system string) []string {
		if system == "google-places" {
			return []string{"apiKey"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}
	if names := store.Names(); len(names) != 2 || names[0] != "hello" {
		t.Errorf("names = %v", names)
	}
	places, _ := store.Get("places")
	if !places.Sensitive("apiKey") {
		t.Error("apiKey should be sensitive")
	}
}
