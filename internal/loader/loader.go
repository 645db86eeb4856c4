// Package loader reads connection and forms files.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"connkit/internal/credential"
)

// Value reference prefixes. "env:NAME" reads the process environment and
// "secret:NAME" reads the secrets file; anything else is a literal.
const (
	envPrefix    = "env:"
	secretPrefix = "secret:"
)

// Connection is one configured connection as written on disk.
type Connection struct {
	Name   string            `yaml:"name"`
	System string            `yaml:"system"`
	Values map[string]string `yaml:"values"`

	path string
}

// Path returns the file the connection was read from.
func (c *Connection) Path() string { return c.path }

// LoadConnection reads and parses a single YAML connection file.
func LoadConnection(path string) (*Connection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading connection file %s: %w", path, err)
	}

	var conn Connection
	if err := yaml.Unmarshal(data, &conn); err != nil {
		return nil, fmt.Errorf("parsing connection file %s: %w", path, err)
	}

	if conn.Name == "" {
		return nil, fmt.Errorf("connection file %s: missing required field 'name'", path)
	}
	if conn.System == "" {
		return nil, fmt.Errorf("connection file %s: missing required field 'system'", path)
	}
	conn.path = path
	return &conn, nil
}

// LoadConnections reads all YAML connection files from a directory,
// recursively. A missing directory holds no connections.
func LoadConnections(dir string) (map[string]*Connection, error) {
	conns := make(map[string]*Connection)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return conns, nil
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		conn, err := LoadConnection(path)
		if err != nil {
			return err
		}

		if prev, exists := conns[conn.Name]; exists {
			return fmt.Errorf("duplicate connection name %q in %s and %s", conn.Name, prev.path, path)
		}
		conns[conn.Name] = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading connections from %s: %w", dir, err)
	}

	return conns, nil
}

// Resolve expands value references. It returns the resolved values and
// the keys that were read from the secrets file. Errors name the missing
// reference, never a value.
func (c *Connection) Resolve(secrets map[string]string) (map[string]string, []string, error) {
	values := make(map[string]string, len(c.Values))
	var fromSecrets []string
	for k, v := range c.Values {
		switch {
		case strings.HasPrefix(v, envPrefix):
			name := strings.TrimPrefix(v, envPrefix)
			val, ok := os.LookupEnv(name)
			if !ok {
				return nil, nil, fmt.Errorf("connection %q: %s references unset environment variable %s", c.Name, k, name)
			}
			values[k] = val
		case strings.HasPrefix(v, secretPrefix):
			name := strings.TrimPrefix(v, secretPrefix)
			val, ok := secrets[name]
			if !ok {
				return nil, nil, fmt.Errorf("connection %q: %s references unknown secret %s", c.Name, k, name)
			}
			values[k] = val
			fromSecrets = append(fromSecrets, k)
		default:
			values[k] = v
		}
	}
	sort.Strings(fromSecrets)
	return values, fromSecrets, nil
}

// Credential resolves the connection into a credential. sensitive lists
// the keys the connection's system declares encrypted; values read from
// the secrets file are masked as well.
func (c *Connection) Credential(secrets map[string]string, sensitive []string) (*credential.Credential, error) {
	values, fromSecrets, err := c.Resolve(secrets)
	if err != nil {
		return nil, err
	}
	return credential.New(c.Name, c.System, values, append(append([]string(nil), sensitive...), fromSecrets...)), nil
}

// Store resolves every connection into a credential store. sensitive
// returns the encrypted keys of a system.
func Store(conns map[string]*Connection, secrets map[string]string, sensitive func(system string) []string) (*credential.Store, error) {
	store := credential.NewStore()
	names := make([]string, 0, len(conns))
	for name := range conns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		conn := conns[name]
		var keys []string
		if sensitive != nil {
			keys = sensitive(conn.System)
		}
		cred, err := conn.Credential(secrets, keys)
		if err != nil {
			return nil, err
		}
		store.Put(cred)
	}
	return store, nil
}
