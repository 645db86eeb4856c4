package builtin

import (
	"fmt"

	"connkit/internal/credential"
	"connkit/internal/engine"
	"connkit/internal/normalize"
	"connkit/internal/plugin"
	"connkit/internal/request"
	"connkit/internal/schema"
)

const (
	httpbinURL = "https://httpbin.org"
	// StatusTransportTitle is the title of a failed call to the status service.
	StatusTransportTitle = "https://www.httpbin.org returns the following exception:"
)

var statusCodes = []struct {
	name string
	code int
}{
	{"OK", 200},
	{"CREATED", 201},
	{"BAD_REQUEST", 400},
	{"UNAUTHORIZED", 401},
	{"FORBIDDEN", 403},
	{"NOT_FOUND", 404},
	{"INTERNAL_SERVER_ERROR", 500},
	{"BAD_GATEWAY", 502},
}

func statusChoices() []schema.Choice {
	choices := make([]schema.Choice, len(statusCodes))
	for i, sc := range statusCodes {
		choices[i] = schema.Choice{Name: fmt.Sprintf("%s: %d", sc.name, sc.code), Value: fmt.Sprint(sc.code)}
	}
	return choices
}

// errorHandling asks the status service for a chosen code and reports
// non-2xx answers as errors titled with the code.
func errorHandling(d Deps) (*plugin.System, []plugin.Connector) {
	baseURL := d.endpoint("error-handling", httpbinURL)
	sys := &plugin.System{
		Name:        "error-handling",
		Description: "Configuration and execution error examples",
		Connection:  connection("error-handling"),
	}

	fields := []schema.FieldSpec{
		schema.Text("phoneNumber", "Phone Number").
			Refresh().
			WithInstruction("Please enter a 10 digit numbers in this format").
			WithRules(schema.PhoneNumber()...),
		schema.Dropdown("httpStatusCode", "HTTP Status Code", statusChoices()...).Require(),
	}
	status := httpConnector(d,
		plugin.Info{System: sys.Name, Operation: "status", Version: 1, Description: "Request a chosen HTTP status"},
		fields,
		func(s *schema.Schema) *engine.Operation {
			url := baseURL + "/status/${{ values.httpStatusCode | path }}"
			return &engine.Operation{
				Connector:      "error-handling/status@v1",
				Schema:         s,
				Request:        request.NewBuilder(request.Template{URL: url}),
				Normalize:      normalize.HTTPStatus,
				OnRemote:       normalize.StatusAsTitle,
				TransportTitle: StatusTransportTitle,
				Diagnostics: func(values schema.Values, _ *credential.Credential) map[string]any {
					return map[string]any{"URL": baseURL + "/status/" + values.String("httpStatusCode")}
				},
			}
		})
	return sys, []plugin.Connector{status}
}
