package credential

import (
	"context"
	"net/http"

	"connkit/internal/errors"
)

// AuthKind selects where a credential is attached to a request.
type AuthKind string

const (
	AuthNone   AuthKind = ""
	AuthQuery  AuthKind = "query"
	AuthHeader AuthKind = "header"
	AuthBearer AuthKind = "bearer"
)

// AuthSpec declares how an operation authenticates.
type AuthSpec struct {
	Kind AuthKind
	// Name is the query parameter or header name for API keys.
	Name string
	// Field is the credential key holding the secret or token.
	Field string
}

// Authenticator attaches a credential to an outbound request.
type Authenticator interface {
	Apply(ctx context.Context, req *http.Request) error
	// Bearer reports whether a 401 means an expired token worth refreshing.
	Bearer() bool
	Kind() AuthKind
}

// Authenticator resolves spec against c. A missing secret is a
// configuration error.
func (spec AuthSpec) Authenticator(c *Credential) (Authenticator, error) {
	switch spec.Kind {
	case AuthNone:
		return noAuth{}, nil
	case AuthQuery, AuthHeader:
		if !c.Has(spec.Field) {
			return nil, errors.Newf(errors.KindConfiguration, "connection value %q is not set", spec.Field).
				WithTitle("Missing credential")
		}
		return &apiKeyAuth{location: spec.Kind, name: spec.Name, value: c.Value(spec.Field)}, nil
	case AuthBearer:
		if c == nil {
			return nil, errors.New(errors.KindConfiguration, "bearer authentication requires a connection").
				WithTitle("Missing credential")
		}
		return &bearerAuth{cred: c, field: spec.Field}, nil
	default:
		return nil, errors.Newf(errors.KindConfiguration, "unsupported auth kind %q", spec.Kind)
	}
}

type noAuth struct{}

func (noAuth) Apply(context.Context, *http.Request) error { return nil }
func (noAuth) Bearer() bool                                { return false }
func (noAuth) Kind() AuthKind                              { return AuthNone }

type apiKeyAuth struct {
	location AuthKind
	name     string
	value    string
}

func (a *apiKeyAuth) Apply(_ context.Context, req *http.Request) error {
	if a.location == AuthHeader {
		req.Header.Set(a.name, a.value)
		return nil
	}
	q := req.URL.Query()
	q.Set(a.name, a.value)
	req.URL.RawQuery = q.Encode()
	return nil
}

func (a *apiKeyAuth) Bearer() bool   { return false }
func (a *apiKeyAuth) Kind() AuthKind { return a.location }

type bearerAuth struct {
	cred  *Credential
	field string
}

func (a *bearerAuth) Apply(_ context.Context, req *http.Request) error {
	tok, err := a.cred.TokenSource(a.field).Token()
	if err != nil {
		return errors.Wrap(err, errors.KindConfiguration, "obtaining bearer token").WithTitle("Missing credential")
	}
	tok.SetAuthHeader(req)
	return nil
}

func (a *bearerAuth) Bearer() bool   { return true }
func (a *bearerAuth) Kind() AuthKind { return AuthBearer }
