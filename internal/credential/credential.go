// Package credential holds connection secrets, attaches them to outbound
// requests and masks them everywhere else.
package credential

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/oauth2"

	"connkit/internal/schema"
)

// Placeholder is shown in place of every sensitive value.
const Placeholder = schema.MaskPlaceholder

// Credential is an immutable snapshot of one connection's configuration.
// Sensitive keys are never echoed; all other values may be shown.
type Credential struct {
	Connection string
	System     string

	values    map[string]string
	sensitive map[string]bool
	store     *Store
}

// New builds a credential snapshot. values is copied.
func New(connection, system string, values map[string]string, sensitive []string) *Credential {
	c := &Credential{
		Connection: connection,
		System:     system,
		values:     make(map[string]string, len(values)),
		sensitive:  make(map[string]bool, len(sensitive)),
	}
	for k, v := range values {
		c.values[k] = v
	}
	for _, k := range sensitive {
		c.sensitive[k] = true
	}
	return c
}

// Value returns the value stored under key.
func (c *Credential) Value(key string) string {
	if c == nil {
		return ""
	}
	return c.values[key]
}

// Has reports whether key holds a non-empty value.
func (c *Credential) Has(key string) bool {
	return c.Value(key) != ""
}

// Sensitive reports whether key must be masked.
func (c *Credential) Sensitive(key string) bool {
	return c != nil && c.sensitive[key]
}

// Keys returns the configured keys in sorted order.
func (c *Credential) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Masked returns every value with sensitive ones replaced by Placeholder.
func (c *Credential) Masked() map[string]any {
	out := make(map[string]any)
	if c == nil {
		return out
	}
	for k, v := range c.values {
		if c.Sensitive(k) {
			out[k] = Placeholder
			continue
		}
		out[k] = v
	}
	return out
}

// Secrets returns the non-empty sensitive values, for masking.
func (c *Credential) Secrets() []string {
	if c == nil {
		return nil
	}
	var out []string
	for k := range c.sensitive {
		if v := c.values[k]; v != "" {
			out = append(out, v)
		}
	}
	return out
}

// TokenSource returns a token source for the bearer token under key. For
// credentials held in a Store the token is re-read on every call, so a
// rotation by the refresh collaborator is picked up by the next request.
func (c *Credential) TokenSource(key string) oauth2.TokenSource {
	if c != nil && c.store != nil {
		return &storeTokenSource{store: c.store, connection: c.Connection, key: key}
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.Value(key), TokenType: "Bearer"})
}

func (c *Credential) with(updates map[string]string) *Credential {
	out := New(c.Connection, c.System, c.values, nil)
	out.sensitive = c.sensitive
	out.store = c.store
	for k, v := range updates {
		out.values[k] = v
	}
	return out
}

// Store is a concurrency-safe set of credentials keyed by connection name.
type Store struct {
	mu    sync.RWMutex
	creds map[string]*Credential
}

// NewStore creates an empty credential store.
func NewStore() *Store {
	return &Store{creds: make(map[string]*Credential)}
}

// Put adds or replaces a connection's credential.
func (s *Store) Put(c *Credential) {
	c = c.with(nil)
	c.store = s
	s.mu.Lock()
	s.creds[c.Connection] = c
	s.mu.Unlock()
}

// Get returns the current snapshot for a connection.
func (s *Store) Get(connection string) (*Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[connection]
	return c, ok
}

// Names returns the stored connection names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.creds))
	for name := range s.creds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rotate replaces values of a stored connection. Snapshots handed out
// earlier are not modified.
func (s *Store) Rotate(connection string, updates map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[connection]
	if !ok {
		return fmt.Errorf("connection %q not found", connection)
	}
	s.creds[connection] = c.with(updates)
	return nil
}

type storeTokenSource struct {
	store      *Store
	connection string
	key        string
}

func (ts *storeTokenSource) Token() (*oauth2.Token, error) {
	c, ok := ts.store.Get(ts.connection)
	if !ok {
		return nil, fmt.Errorf("connection %q not found", ts.connection)
	}
	tok := c.Value(ts.key)
	if tok == "" {
		return nil, fmt.Errorf("connection %q has no %q token", ts.connection, ts.key)
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}
