package normalize

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/googleapi"

	"connkit/internal/errors"
)

// GoogleError converts a Google JSON error envelope into a remote error
// titled "Google Exception Status: <status>". Non-error responses yield nil.
func GoogleError(resp *Response) *errors.Error {
	if resp.StatusCode < 300 {
		return nil
	}
	hr := &http.Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       io.NopCloser(bytes.NewReader(resp.Body)),
	}
	err := googleapi.CheckResponse(hr)
	if err == nil {
		return nil
	}

	msg := err.Error()
	if gerr, ok := err.(*googleapi.Error); ok && gerr.Message != "" {
		msg = gerr.Message
	}
	return errors.New(errors.KindRemote, msg).
		WithTitle(fmt.Sprintf("Google Exception Status: %s", resp.Reason())).
		WithStatus(resp.StatusCode)
}
