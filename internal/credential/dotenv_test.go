package credential

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	content := `# Google connections
PLACES_API_KEY=AIza-places
DRIVE_CLIENT_ID=1234.apps.googleusercontent.com
DRIVE_CLIENT_SECRET="super secret"
GITHUB_TOKEN='ghp-test-123'
export VISION_API_KEY=AIza-vision

# Empty line above is fine
HELLO_CS_PROP=hello
`
	path := filepath.Join(dir, ".env")
	os.WriteFile(path, []byte(content), 0644)

	secrets, err := LoadDotEnv(path)
	if err != nil {
		t.Fatalf("LoadDotEnv error: %v", err)
	}

	tests := map[string]string{
		"PLACES_API_KEY":      "AIza-places",
		"DRIVE_CLIENT_ID":     "1234.apps.googleusercontent.com",
		"DRIVE_CLIENT_SECRET": "super secret",
		"GITHUB_TOKEN":        "ghp-test-123",
		"VISION_API_KEY":      "AIza-vision",
		"HELLO_CS_PROP":       "hello",
	}

	for key, expected := range tests {
		if got := secrets[key]; got != expected {
			t.Errorf("secrets[%q] = %q, want %q", key, got, expected)
		}
	}

	if len(secrets) != len(tests) {
		t.Errorf("expected %d secrets, got %d", len(tests), len(secrets))
	}
}

func TestLoadDotEnvInvalidFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	os.WriteFile(path, []byte("INVALID LINE WITHOUT EQUALS\n"), 0644)

	_, err := LoadDotEnv(path)
	if err == nil {
		t.Fatal("expected error for invalid format")
	}
}

func TestLoadDotEnvEmptyKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	os.WriteFile(path, []byte("=value\n"), 0644)

	if _, err := LoadDotEnv(path); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if _, err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadDotEnvSingleQuotesKeepDollar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	os.WriteFile(path, []byte("DRIVE_CLIENT_SECRET='pa$$word'\n"), 0644)

	secrets, err := LoadDotEnv(path)
	if err != nil {
		t.Fatalf("LoadDotEnv error: %v", err)
	}
	if got := secrets["DRIVE_CLIENT_SECRET"]; got != "pa$$word" {
		t.Errorf("DRIVE_CLIENT_SECRET = %q, want %q", got, "pa$$word")
	}
}

func TestLoadDotEnvErrorNamesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.env")
	os.WriteFile(path, []byte("OK=1\nBROKEN\n"), 0644)

	_, err := LoadDotEnv(path)
	if err == nil {
		t.Fatal("expected error for invalid format")
	}
	if !strings.Contains(err.Error(), path) || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q should name %s and line 2", err, path)
	}
}
