package builtin

import (
	"net/http"

	"connkit/internal/credential"
	"connkit/internal/engine"
	"connkit/internal/normalize"
	"connkit/internal/plugin"
	"connkit/internal/request"
	"connkit/internal/schema"
)

const visionURL = "https://vision.googleapis.com/v1/images:annotate"

const annotateBody = `{
  "requests": [
    {
      "image": {"source": {"imageUri": "${{ values.imageUrl }}"}},
      "features": [{"type": "TEXT_DETECTION"}],
      "imageContext": {"languageHints": ["en-t-i0-handwrit"]}
    }
  ]
}`

func textDetection(d Deps) (*plugin.System, []plugin.Connector) {
	baseURL := d.endpoint("text-detection", visionURL)

	sys := &plugin.System{
		Name:        "text-detection",
		Description: "Google Vision handwriting and text detection",
		Connection: connection("text-detection",
			schema.Encrypted("apiKey", "API Key").Require(),
		),
	}

	detect := httpConnector(d,
		plugin.Info{System: sys.Name, Operation: "detect", Version: 1, Description: "Detect the words in an image"},
		[]schema.FieldSpec{
			schema.Text("imageUrl", "Image URL").
				Require().
				WithInstruction("A publicly reachable image URL"),
		},
		func(s *schema.Schema) *engine.Operation {
			return &engine.Operation{
				Connector: "text-detection/detect@v1",
				Schema:    s,
				Request: request.NewBuilder(request.Template{
					Method:   http.MethodPost,
					URL:      baseURL,
					Body:     annotateBody,
					Encoding: request.EncodingJSON,
					Auth:     credential.AuthSpec{Kind: credential.AuthQuery, Name: "key", Field: "apiKey"},
				}),
				Normalize: normalize.TextDetection,
				Detect:    normalize.VisionError,
				OnRemote:  normalize.GoogleError,
				Diagnostics: func(values schema.Values, _ *credential.Credential) map[string]any {
					return map[string]any{"Image URL": values.String("imageUrl")}
				},
			}
		})
	return sys, []plugin.Connector{detect}
}
