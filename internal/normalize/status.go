package normalize

import (
	"strconv"

	"connkit/internal/errors"
)

// HTTPStatus reports the status line of a successful response.
func HTTPStatus(resp *Response) (map[string]any, map[string]any, error) {
	payload := map[string]any{
		"Status Code: ":   resp.StatusCode,
		"Reason Phrase: ": resp.Reason(),
	}
	return payload, map[string]any{"Response": resp.Status}, nil
}

// StatusAsTitle builds the remote error for a failed status call: the code
// becomes the title and the reason phrase the message.
func StatusAsTitle(resp *Response) *errors.Error {
	return errors.New(errors.KindRemote, resp.Reason()).
		WithTitle(strconv.Itoa(resp.StatusCode)).
		WithStatus(resp.StatusCode)
}
