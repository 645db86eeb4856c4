// Package request turns schema values and a credential into an outbound
// HTTP request.
package request

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"connkit/internal/credential"
	"connkit/internal/errors"
	"connkit/internal/schema"
)

// Encoding selects how substituted values are escaped in the body.
type Encoding string

const (
	EncodingRaw  Encoding = "raw"
	EncodingJSON Encoding = "json"
	EncodingForm Encoding = "form"
)

// Param is a templated query parameter or header.
type Param struct {
	Name  string
	Value string
	// OmitEmpty drops the parameter when it expands to "".
	OmitEmpty bool
}

// Body is a prebuilt request body, used for multipart uploads.
type Body struct {
	Data        []byte
	ContentType string
}

// Template declares an operation's request.
type Template struct {
	Method      string
	URL         string
	Query       []Param
	Header      []Param
	Body        string
	Encoding    Encoding
	ContentType string
	Auth        credential.AuthSpec

	// Derive computes the vars root before any expansion.
	Derive func(values schema.Values, cred *credential.Credential) (map[string]any, error)
	// BodyFunc replaces Body when set.
	BodyFunc func(ctx context.Context, sc *Scope) (*Body, error)
}

// Request is a built request. It can be sent any number of times; the
// credential is applied to each attempt so a rotated token is picked up.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte

	auth   credential.Authenticator
	masker *credential.Masker
}

// Builder builds requests from a template.
type Builder struct {
	Template Template
}

// NewBuilder returns a builder for t.
func NewBuilder(t Template) *Builder {
	return &Builder{Template: t}
}

// Build validates values against s, expands the template and resolves the
// authenticator. Validation failures are returned as a
// *errors.ValidationError listing every violation.
func (b *Builder) Build(ctx context.Context, s *schema.Schema, values schema.Values, cred *credential.Credential) (*Request, error) {
	if s != nil {
		if err := s.Validate(values); err != nil {
			return nil, err
		}
	}
	t := b.Template

	sc := NewScope(values, cred)
	if t.Derive != nil {
		vars, err := t.Derive(sc.Values, cred)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindConfiguration, "deriving request variables")
		}
		for k, v := range vars {
			sc.Vars[k] = v
		}
	}

	rawURL, err := sc.Expand(t.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfiguration, "expanding url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfiguration, "parsing url")
	}

	q := u.Query()
	for _, p := range t.Query {
		v, err := sc.Expand(p.Value, nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindConfiguration, fmt.Sprintf("expanding query %q", p.Name))
		}
		if v == "" && p.OmitEmpty {
			continue
		}
		q.Set(p.Name, v)
	}
	u.RawQuery = q.Encode()

	header := make(http.Header)
	for _, p := range t.Header {
		v, err := sc.Expand(p.Value, nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindConfiguration, fmt.Sprintf("expanding header %q", p.Name))
		}
		if v == "" && p.OmitEmpty {
			continue
		}
		header.Set(p.Name, v)
	}

	body, contentType, err := buildBody(ctx, t, sc)
	if err != nil {
		return nil, err
	}
	if contentType != "" && header.Get("Content-Type") == "" {
		header.Set("Content-Type", contentType)
	}

	auth, err := t.Auth.Authenticator(cred)
	if err != nil {
		return nil, err
	}

	method := t.Method
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		Method: method,
		URL:    u,
		Header: header,
		Body:   body,
		auth:   auth,
		masker: credential.NewMasker(cred.Secrets()...),
	}, nil
}

func buildBody(ctx context.Context, t Template, sc *Scope) ([]byte, string, error) {
	if t.BodyFunc != nil {
		b, err := t.BodyFunc(ctx, sc)
		if err != nil {
			return nil, "", err
		}
		if b == nil {
			return nil, "", nil
		}
		return b.Data, b.ContentType, nil
	}
	if t.Body == "" {
		return nil, t.ContentType, nil
	}

	var escape func(string) string
	contentType := t.ContentType
	switch t.Encoding {
	case EncodingJSON:
		escape = jsonEscape
		if contentType == "" {
			contentType = "application/json"
		}
	case EncodingForm:
		escape = url.QueryEscape
		if contentType == "" {
			contentType = "application/x-www-form-urlencoded"
		}
	}
	body, err := sc.Expand(t.Body, escape)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.KindConfiguration, "expanding body")
	}
	return []byte(body), contentType, nil
}

// HTTPRequest returns a fresh *http.Request with the credential applied.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL.String(), bytes.NewReader(r.Body))
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfiguration, "creating request")
	}
	for k, vals := range r.Header {
		req.Header[k] = append([]string(nil), vals...)
	}
	if err := r.auth.Apply(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Bearer reports whether the request authenticates with a refreshable token.
func (r *Request) Bearer() bool {
	return r.auth != nil && r.auth.Bearer()
}

// Diagnostic renders the request as sent, with every secret masked.
func (r *Request) Diagnostic() map[string]any {
	u := r.URL.String()
	header := r.Header
	if req, err := r.HTTPRequest(context.Background()); err == nil {
		u = req.URL.String()
		header = req.Header
	}
	out := map[string]any{
		"url":     r.masker.String(u),
		"method":  r.Method,
		"headers": r.masker.Header(header),
	}
	if len(r.Body) > 0 {
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			out["body"] = fmt.Sprintf("<%d bytes>", len(r.Body))
		} else {
			out["body"] = r.masker.String(string(r.Body))
		}
	}
	return out
}
