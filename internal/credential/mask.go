package credential

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Masker replaces known secret values inside arbitrary text.
type Masker struct {
	secrets []string
}

// NewMasker returns a masker for the given secrets. Empty strings are ignored.
func NewMasker(secrets ...string) *Masker {
	m := &Masker{}
	for _, s := range secrets {
		m.Add(s)
	}
	return m
}

// Add registers a secret, along with its URL-encoded forms.
func (m *Masker) Add(secret string) {
	if secret == "" {
		return
	}
	for _, form := range []string{secret, url.QueryEscape(secret), url.PathEscape(secret)} {
		if !m.has(form) {
			m.secrets = append(m.secrets, form)
		}
	}
	// Longest first so a secret containing another is replaced whole.
	sort.Slice(m.secrets, func(i, j int) bool { return len(m.secrets[i]) > len(m.secrets[j]) })
}

func (m *Masker) has(s string) bool {
	for _, existing := range m.secrets {
		if existing == s {
			return true
		}
	}
	return false
}

// String masks every secret occurrence in s.
func (m *Masker) String(s string) string {
	if m == nil {
		return s
	}
	for _, secret := range m.secrets {
		s = strings.ReplaceAll(s, secret, Placeholder)
	}
	return s
}

// Value masks strings nested anywhere in maps and slices.
func (m *Masker) Value(v any) any {
	switch x := v.(type) {
	case string:
		return m.String(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = m.Value(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = m.Value(val)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(x))
		for i, val := range x {
			out[i], _ = m.Value(val).(map[string]any)
		}
		return out
	default:
		return v
	}
}

// Header renders h for diagnostics. Authorization values are always masked.
func (m *Masker) Header(h http.Header) map[string]any {
	out := make(map[string]any, len(h))
	for k, vals := range h {
		if strings.EqualFold(k, "Authorization") {
			scheme, _, _ := strings.Cut(strings.Join(vals, ", "), " ")
			out[k] = scheme + " " + Placeholder
			continue
		}
		out[k] = m.String(strings.Join(vals, ", "))
	}
	return out
}
