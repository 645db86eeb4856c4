package request

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-json"

	"connkit/internal/credential"
	"connkit/internal/schema"
)

var exprRegex = regexp.MustCompile(`\$\{\{\s*(.+?)\s*\}\}`)

// Scope holds the roots an expression can read: values, connection, vars
// and env.
type Scope struct {
	Values     schema.Values
	Connection *credential.Credential
	Vars       map[string]any
	Env        map[string]string
}

// NewScope creates a scope over the given values and credential with the
// process environment loaded.
func NewScope(values schema.Values, cred *credential.Credential) *Scope {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}
	if values == nil {
		values = schema.Values{}
	}
	return &Scope{
		Values:     values,
		Connection: cred,
		Vars:       make(map[string]any),
		Env:        env,
	}
}

// rawJSON is already encoded and skips body escaping.
type rawJSON string

// Resolve evaluates s. When s is a single expression the raw value is
// returned with its type preserved; otherwise the result is a string.
func (sc *Scope) Resolve(s string) (any, error) {
	if match := exprRegex.FindStringSubmatch(s); match != nil && match[0] == s {
		v, err := sc.evaluate(match[1])
		if err != nil {
			return nil, err
		}
		if r, ok := v.(rawJSON); ok {
			return string(r), nil
		}
		return v, nil
	}
	return sc.Expand(s, nil)
}

// Expand replaces every ${{ ... }} in s. escape, when set, is applied to
// each substituted value except output of the json pipe.
func (sc *Scope) Expand(s string, escape func(string) string) (string, error) {
	var evalErr error
	result := exprRegex.ReplaceAllStringFunc(s, func(match string) string {
		sub := exprRegex.FindStringSubmatch(match)
		val, err := sc.evaluate(sub[1])
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return match
		}
		if r, ok := val.(rawJSON); ok {
			return string(r)
		}
		str := format(val)
		if escape != nil {
			str = escape(str)
		}
		return str
	})
	return result, evalErr
}

// evaluate evaluates one expression such as "values.name | trim | upper".
func (sc *Scope) evaluate(expr string) (any, error) {
	parts := strings.Split(expr, "|")

	val, err := sc.resolvePath(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, err
	}
	for _, p := range parts[1:] {
		val, err = applyPipe(val, strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
	}
	return val, nil
}

// resolvePath resolves a dotted path like "values.searchField" or
// "connection.apiKey". Missing values and connection keys resolve to nil so
// optional fields interpolate as the empty string.
func (sc *Scope) resolvePath(path string) (any, error) {
	root, rest, _ := strings.Cut(path, ".")

	switch root {
	case "values":
		if rest == "" {
			return map[string]any(sc.Values), nil
		}
		val, err := lookupNested(sc.Values, rest)
		if err != nil {
			return nil, nil
		}
		return val, nil

	case "connection":
		if rest == "" {
			return nil, fmt.Errorf("incomplete connection reference: %q", path)
		}
		if !sc.Connection.Has(rest) {
			return nil, nil
		}
		return sc.Connection.Value(rest), nil

	case "vars":
		if rest == "" {
			return nil, fmt.Errorf("incomplete vars reference: %q", path)
		}
		val, err := lookupNested(sc.Vars, rest)
		if err != nil {
			return nil, fmt.Errorf("vars: %w", err)
		}
		return val, nil

	case "env":
		if rest == "" {
			return nil, fmt.Errorf("incomplete env reference: %q", path)
		}
		val, ok := sc.Env[rest]
		if !ok {
			return nil, nil
		}
		return val, nil

	default:
		return nil, fmt.Errorf("unknown variable root %q in %q", root, path)
	}
}

func lookupNested(m map[string]any, path string) (any, error) {
	var current any = m
	for _, part := range strings.Split(path, ".") {
		mp, ok := current.(map[string]any)
		if !ok {
			if v, isValues := current.(schema.Values); isValues {
				mp = v
			} else {
				return nil, fmt.Errorf("cannot index into non-object at %q", part)
			}
		}
		current, ok = mp[part]
		if !ok {
			return nil, fmt.Errorf("key %q not found", part)
		}
	}
	return current, nil
}

func applyPipe(val any, pipe string) (any, error) {
	name, arg, _ := strings.Cut(pipe, " ")
	arg = strings.Trim(strings.TrimSpace(arg), `"'`)

	switch name {
	case "default":
		if val == nil || format(val) == "" {
			return arg, nil
		}
		return val, nil
	case "json":
		b, err := marshalVerbatim(val)
		if err != nil {
			return nil, fmt.Errorf("json pipe: %w", err)
		}
		return rawJSON(b), nil
	}

	s := format(val)
	switch name {
	case "slugify":
		return slugify(s), nil
	case "upper":
		return strings.ToUpper(s), nil
	case "lower":
		return strings.ToLower(s), nil
	case "trim":
		return strings.TrimSpace(s), nil
	case "path":
		return url.PathEscape(s), nil
	default:
		return nil, fmt.Errorf("unknown pipe function %q", name)
	}
}

// format renders a resolved value. JSON numbers with no fraction print as
// integers.
func format(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case rawJSON:
		return string(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// marshalVerbatim encodes v as JSON without HTML escaping, so characters
// such as & and < reach the provider as written.
func marshalVerbatim(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// jsonEscape escapes s for use inside a JSON string literal.
func jsonEscape(s string) string {
	b, err := marshalVerbatim(s)
	if err != nil || len(b) < 2 {
		return s
	}
	return string(b[1 : len(b)-1])
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else if r == ' ' || r == '-' || r == '_' {
			b.WriteRune('-')
		}
	}
	result := b.String()
	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	return strings.Trim(result, "-")
}
