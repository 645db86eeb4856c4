package builtin

import (
	"context"

	"connkit/internal/credential"
	"connkit/internal/engine"
	"connkit/internal/normalize"
	"connkit/internal/plugin"
	"connkit/internal/request"
	"connkit/internal/schema"
	"connkit/internal/types"
)

const placesURL = "https://maps.googleapis.com/maps/api/place/findplacefromtext/json"

func placesSearch(baseURL string, s *schema.Schema) *engine.Operation {
	return &engine.Operation{
		Connector: "google-places/location-search@v1",
		Schema:    s,
		Request: request.NewBuilder(request.Template{
			URL: baseURL,
			Query: []request.Param{
				{Name: "input", Value: "${{ values.searchField }}"},
				{Name: "inputtype", Value: "${{ vars.inputtype }}"},
				{Name: "fields", Value: "formatted_address,name,rating,opening_hours"},
				{Name: "locationbias", Value: "ipbias"},
			},
			Auth: credential.AuthSpec{Kind: credential.AuthQuery, Name: "key", Field: "apiKey"},
			Derive: func(values schema.Values, _ *credential.Credential) (map[string]any, error) {
				inputType := "textquery"
				if values.Bool("phoneToggle") {
					inputType = "phonenumber"
				}
				return map[string]any{"inputtype": inputType}, nil
			},
		}),
		Normalize: normalize.Places,
		Detect:    normalize.PlacesError,
		Diagnostics: func(values schema.Values, _ *credential.Credential) map[string]any {
			return map[string]any{
				"Url":             baseURL,
				"Key":             credential.Placeholder,
				"Search Term":     values.String("searchField"),
				"Is Phone Number": values.Bool("phoneToggle"),
			}
		},
	}
}

func places(d Deps) (*plugin.System, []plugin.Connector) {
	baseURL := d.endpoint("google-places", placesURL)

	sys := &plugin.System{
		Name:        "google-places",
		Description: "Google Places search authenticated with an API key",
		Connection: connection("google-places",
			schema.Encrypted("apiKey", "API Key").Require(),
		),
		// An empty search is enough to learn whether the key is accepted.
		Tester: plugin.ConnectionTesterFunc(func(ctx context.Context, cred *credential.Credential) *types.ExecutionResult {
			return d.Executor.Execute(ctx, placesSearch(baseURL, nil), schema.Values{"searchField": ""}, cred)
		}),
	}

	fields := []schema.FieldSpec{
		schema.Text("searchField", "Search Field").
			Require().
			WithInstruction("Please enter a name, address or phone number").
			WithDescription("This will find results near your IP address").
			WithPlaceholder("Grocery"),
		schema.Boolean("phoneToggle", "Phone Number?"),
	}
	search := httpConnector(d, plugin.Info{System: sys.Name, Operation: "location-search", Version: 1, Description: "Find a place by name, address or phone number"},
		fields, func(s *schema.Schema) *engine.Operation { return placesSearch(baseURL, s) })
	return sys, []plugin.Connector{search}
}
