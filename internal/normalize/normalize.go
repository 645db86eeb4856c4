// Package normalize converts provider responses into payloads with fixed,
// documented key sets.
package normalize

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"connkit/internal/errors"
)

// RawResponseKey holds the undecoded body in the response diagnostics.
const RawResponseKey = "Raw Response"

// Response is a received HTTP response with its body fully read.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// Reason returns the reason phrase from the status line, falling back to
// the standard text for the code.
func (r *Response) Reason() string {
	if _, reason, ok := strings.Cut(r.Status, " "); ok && reason != "" {
		return reason
	}
	return http.StatusText(r.StatusCode)
}

// Func maps a successful response to a payload and the "response"
// diagnostics bucket.
type Func func(resp *Response) (payload map[string]any, diag map[string]any, err error)

// Detector reports a provider error embedded in a 2xx body, or nil.
type Detector func(resp *Response) *errors.Error

// Decode unmarshals the body into v. Failures are normalization errors.
func Decode(resp *Response, v any) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return errors.Wrap(err, errors.KindNormalization, "decoding response body").
			WithTitle("Unable to read response")
	}
	return nil
}

// JSON returns the decoded JSON object as the payload and the raw body as
// diagnostics.
func JSON(resp *Response) (map[string]any, map[string]any, error) {
	var m map[string]any
	if err := Decode(resp, &m); err != nil {
		return nil, nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, map[string]any{RawResponseKey: string(resp.Body)}, nil
}

// ErrorMessageField reports field's value, verbatim, whenever a JSON object
// body carries it, even when empty.
func ErrorMessageField(field, title string) Detector {
	return func(resp *Response) *errors.Error {
		var m map[string]any
		if json.Unmarshal(resp.Body, &m) != nil {
			return nil
		}
		v, ok := m[field]
		if !ok {
			return nil
		}
		msg, isString := v.(string)
		if !isString && v != nil {
			msg = fmt.Sprint(v)
		}
		return errors.New(errors.KindRemote, msg).WithTitle(title).WithStatus(resp.StatusCode)
	}
}
