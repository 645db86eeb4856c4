// Package errors provides the structured error taxonomy shared by connectors,
// the request builder and the executor.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is the category of a connector error.
type Kind string

const (
	// KindConfiguration is returned when a connector cannot run with the supplied configuration.
	KindConfiguration Kind = "configuration"
	// KindSchema is returned when a schema cannot be built.
	KindSchema Kind = "schema"
	// KindValidation marks field-level rule violations.
	KindValidation Kind = "validation"
	// KindTransport marks network failures (timeouts, DNS, refused connections).
	KindTransport Kind = "transport"
	// KindRemote marks provider-reported failures, by status or embedded error field.
	KindRemote Kind = "remote"
	// KindCredentialExpired signals the refresh collaborator that a bearer token was rejected.
	KindCredentialExpired Kind = "credential_expired"
	// KindNormalization marks responses that could not be decoded into the expected shape.
	KindNormalization Kind = "normalization"
	// KindMalformedGeometry marks bounding polygons with too few vertices.
	KindMalformedGeometry Kind = "malformed_geometry"
)

// Error is a categorised error carrying a user-facing title and message.
type Error struct {
	Kind       Kind
	Title      string
	Message    string
	StatusCode int
	Cause      error
	Details    map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithTitle sets the short title shown to the user.
func (e *Error) WithTitle(title string) *Error {
	e.Title = title
	return e
}

// WithStatus records the HTTP status code the error was derived from.
func (e *Error) WithStatus(code int) *Error {
	e.StatusCode = code
	return e
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a kind and message. A nil err yields nil.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf returns the kind of the outermost *Error, or "" when err carries none.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}
