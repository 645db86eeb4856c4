package normalize

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vision "google.golang.org/api/vision/v1"

	"connkit/internal/errors"
)

func ok(body string) *Response {
	return &Response{StatusCode: http.StatusOK, Status: "200 OK", Header: http.Header{}, Body: []byte(body)}
}

const annotateBody = `{
  "responses": [{
    "textAnnotations": [
      {"description": "HELLO WORLD", "boundingPoly": {"vertices": [{"x": 1, "y": 1}, {"x": 90, "y": 1}, {"x": 90, "y": 20}, {"x": 1, "y": 20}]}},
      {"description": "HELLO", "boundingPoly": {"vertices": [{"x": 10, "y": 5}, {"x": 40, "y": 5}, {"x": 40, "y": 20}, {"x": 10, "y": 20}]}},
      {"description": "WORLD", "boundingPoly": {"vertices": [{"y": 5}, {"x": 80, "y": 5}, {"x": 80, "y": 25}, {"y": 25}]}}
    ]
  }]
}`

func TestTextDetectionSkipsSummary(t *testing.T) {
	payload, diag, err := TextDetection(ok(annotateBody))
	require.NoError(t, err)

	assert.Equal(t, []string{"HELLO", "WORLD"}, payload["textFound"])
	assert.Equal(t, []BoundingBox{
		{X: 10, Y: 5, Width: 30, Height: 15},
		{X: 0, Y: 5, Width: 80, Height: 20},
	}, payload["boundingBoxes"])
	assert.Equal(t, annotateBody, diag[RawResponseKey])
}

func TestTextDetectionIsIdempotent(t *testing.T) {
	first, _, err := TextDetection(ok(annotateBody))
	require.NoError(t, err)
	second, _, err := TextDetection(ok(annotateBody))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTextDetectionMalformedGeometry(t *testing.T) {
	body := `{"responses":[{"textAnnotations":[
	  {"description":"all"},
	  {"description":"x","boundingPoly":{"vertices":[{"x":1,"y":1},{"x":2,"y":1},{"x":2,"y":2}]}}
	]}]}`
	_, diag, err := TextDetection(ok(body))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindMalformedGeometry))
	assert.Equal(t, body, diag[RawResponseKey])
}

func TestTextDetectionNoText(t *testing.T) {
	payload, _, err := TextDetection(ok(`{"responses":[{}]}`))
	require.NoError(t, err)
	assert.Empty(t, payload["textFound"])
}

func TestBoxFromVertices(t *testing.T) {
	box, err := BoxFromVertices([]*vision.Vertex{{X: 3, Y: 4}, {X: 9, Y: 4}, {X: 9, Y: 10}, {X: 3, Y: 10}})
	require.NoError(t, err)
	assert.Equal(t, BoundingBox{X: 3, Y: 4, Width: 6, Height: 6}, box)

	_, err = BoxFromVertices(nil)
	assert.True(t, errors.IsKind(err, errors.KindMalformedGeometry))
}

func TestVisionError(t *testing.T) {
	e := VisionError(ok(`{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`))
	require.NotNil(t, e)
	assert.Equal(t, "Bad image data.", e.Message)
	assert.Equal(t, errors.KindRemote, e.Kind)

	assert.Nil(t, VisionError(ok(annotateBody)))
}

func TestDecodeFailureIsNormalization(t *testing.T) {
	_, _, err := DriveFile(ok("<html>oops</html>"))
	assert.True(t, errors.IsKind(err, errors.KindNormalization))
}

func TestDriveFile(t *testing.T) {
	payload, diag, err := DriveFile(ok(`{"id":"abc","name":"Reports","mimeType":"application/vnd.google-apps.folder"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"fileName":     "Reports",
		"fileID":       "abc",
		"fileMimeType": "application/vnd.google-apps.folder",
	}, payload)
	assert.Equal(t, map[string]any{
		"Name":      "Reports",
		"ID":        "abc",
		"MIME Type": "application/vnd.google-apps.folder",
	}, diag)
}

func TestDriveFileList(t *testing.T) {
	payload, diag, err := DriveFileList(ok(`{"files":[{"id":"1","name":"a.jpg","mimeType":"image/jpeg"},{"id":"2","name":"b"}],"nextPageToken":"p2"}`))
	require.NoError(t, err)
	files := payload["files"].([]map[string]any)
	require.Len(t, files, 2)
	assert.Equal(t, "a.jpg", files[0]["fileName"])
	assert.Equal(t, "p2", payload["nextPageToken"])
	assert.Equal(t, 2, diag["Number of files"])
}

func TestDriveMetadata(t *testing.T) {
	_, diag, err := DriveMetadata(ok(`{"id":"1","name":"scan.jpg","mimeType":"image/jpeg","description":"receipt"}`))
	require.NoError(t, err)
	assert.Equal(t, "scan.jpg", diag["File Name"])
	assert.Equal(t, "image/jpeg", diag["File Type"])
	assert.Equal(t, "receipt", diag["File Description"])
}

func TestGoogleError(t *testing.T) {
	resp := &Response{
		StatusCode: http.StatusNotFound,
		Status:     "404 Not Found",
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"error":{"code":404,"message":"File not found: xyz.","errors":[{"reason":"notFound","message":"File not found: xyz."}]}}`),
	}
	e := GoogleError(resp)
	require.NotNil(t, e)
	assert.Equal(t, "Google Exception Status: Not Found", e.Title)
	assert.Equal(t, "File not found: xyz.", e.Message)
	assert.Equal(t, http.StatusNotFound, e.StatusCode)

	assert.Nil(t, GoogleError(ok(`{}`)))
}

func TestPlacesErrorMessage(t *testing.T) {
	e := PlacesError(ok(`{"candidates":[],"error_message":"The provided API key is invalid.","status":"REQUEST_DENIED"}`))
	require.NotNil(t, e)
	assert.Equal(t, PlacesErrorTitle, e.Title)
	assert.Equal(t, "The provided API key is invalid.", e.Message)

	assert.Nil(t, PlacesError(ok(`{"candidates":[{"name":"Grocery Outlet"}],"status":"OK"}`)))
}

func TestPlacesErrorMessagePresentButEmpty(t *testing.T) {
	e := PlacesError(ok(`{"candidates":[],"error_message":"","status":"INVALID_REQUEST"}`))
	require.NotNil(t, e)
	assert.Equal(t, errors.KindRemote, e.Kind)
	assert.Equal(t, PlacesErrorTitle, e.Title)
	assert.Equal(t, "", e.Message)

	e = PlacesError(ok(`{"error_message":42}`))
	require.NotNil(t, e)
	assert.Equal(t, "42", e.Message)
}

func TestPlacesPayload(t *testing.T) {
	body := `{"candidates":[{"name":"Grocery Outlet","rating":4.5}],"status":"OK"}`
	payload, diag, err := Places(ok(body))
	require.NoError(t, err)
	candidates := payload["candidates"].([]any)
	assert.Equal(t, "Grocery Outlet", candidates[0].(map[string]any)["name"])
	assert.Equal(t, body, diag[RawResponseKey])
}

func TestGitHubPullsFiltersByAuthor(t *testing.T) {
	body := `[
	  {"user":{"login":"octocat"},"head":{"ref":"feature-a","sha":"aaa"}},
	  {"user":{"login":"hubot"},"head":{"ref":"feature-b","sha":"bbb"}}
	]`
	payload, diag, err := GitHubPulls("octocat")(ok(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, payload["Result"])
	assert.Equal(t, []map[string]any{{"ref": "feature-a", "sha": "aaa"}}, payload["Body"])
	assert.Equal(t, 2, diag["Pull requests"])

	payload, _, err = GitHubPulls("")(ok(body))
	require.NoError(t, err)
	assert.Len(t, payload["Body"], 2)
}

func TestHTTPStatus(t *testing.T) {
	payload, _, err := HTTPStatus(&Response{StatusCode: 201, Status: "201 Created"})
	require.NoError(t, err)
	assert.Equal(t, 201, payload["Status Code: "])
	assert.Equal(t, "Created", payload["Reason Phrase: "])

	e := StatusAsTitle(&Response{StatusCode: 418, Status: "418 I'm a teapot"})
	assert.Equal(t, "418", e.Title)
	assert.Equal(t, "I'm a teapot", e.Message)
}

func TestReasonFallsBackToStatusText(t *testing.T) {
	r := &Response{StatusCode: http.StatusServiceUnavailable}
	assert.Equal(t, "Service Unavailable", r.Reason())
}
