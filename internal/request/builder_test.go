package request

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"connkit/internal/credential"
	"connkit/internal/errors"
	"connkit/internal/schema"
)

func placesTemplate() Template {
	return Template{
		Method: http.MethodGet,
		URL:    "https://maps.googleapis.com/maps/api/place/findplacefromtext/json",
		Query: []Param{
			{Name: "input", Value: "${{ values.searchField }}"},
			{Name: "inputtype", Value: "${{ vars.inputType }}"},
			{Name: "fields", Value: "formatted_address,name,rating,opening_hours"},
			{Name: "locationbias", Value: "ipbias"},
		},
		Auth: credential.AuthSpec{Kind: credential.AuthQuery, Name: "key", Field: "apiKey"},
		Derive: func(values schema.Values, _ *credential.Credential) (map[string]any, error) {
			if values.Bool("phoneToggle") {
				return map[string]any{"inputType": "phonenumber"}, nil
			}
			return map[string]any{"inputType": "textquery"}, nil
		},
	}
}

func placesSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Text("searchField", "Search").Require(),
		schema.Boolean("phoneToggle", "Phone number"),
	)
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	return s
}

func placesCred() *credential.Credential {
	return credential.New("places", "google-places", map[string]string{"apiKey": "AIza-secret"}, []string{"apiKey"})
}

func TestBuildQueryRequest(t *testing.T) {
	b := NewBuilder(placesTemplate())
	req, err := b.Build(context.Background(), placesSchema(t), schema.Values{"searchField": "Fish & Chips", "phoneToggle": false}, placesCred())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	httpReq, err := req.HTTPRequest(context.Background())
	if err != nil {
		t.Fatalf("HTTPRequest error: %v", err)
	}
	q := httpReq.URL.Query()
	if q.Get("input") != "Fish & Chips" {
		t.Errorf("input = %q", q.Get("input"))
	}
	if q.Get("inputtype") != "textquery" {
		t.Errorf("inputtype = %q", q.Get("inputtype"))
	}
	if q.Get("key") != "AIza-secret" {
		t.Errorf("key = %q", q.Get("key"))
	}
	if req.Bearer() {
		t.Error("api key request must not be bearer")
	}
}

func TestBuildValidatesFirst(t *testing.T) {
	called := false
	tmpl := placesTemplate()
	tmpl.Derive = func(schema.Values, *credential.Credential) (map[string]any, error) {
		called = true
		return nil, nil
	}

	_, err := NewBuilder(tmpl).Build(context.Background(), placesSchema(t), schema.Values{"phoneToggle": "maybe"}, placesCred())
	if err == nil {
		t.Fatal("expected validation error")
	}
	ve, ok := err.(*errors.ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Fields()) != 2 {
		t.Errorf("fields = %v, want searchField and phoneToggle", ve.Fields())
	}
	if called {
		t.Error("template must not be expanded when validation fails")
	}
}

func TestBuildMissingCredential(t *testing.T) {
	_, err := NewBuilder(placesTemplate()).Build(context.Background(), nil, schema.Values{"searchField": "x"}, nil)
	if !errors.IsKind(err, errors.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestBuildJSONBody(t *testing.T) {
	tmpl := Template{
		Method:   http.MethodPost,
		URL:      "https://vision.googleapis.com/v1/images:annotate",
		Body:     `{"requests":[{"image":{"source":{"imageUri":"${{ values.imageUrl }}"}}}]}`,
		Encoding: EncodingJSON,
	}
	url := `https://example.com/scan.png?sig="abc"`
	req, err := NewBuilder(tmpl).Build(context.Background(), nil, schema.Values{"imageUrl": url}, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("content type = %q", got)
	}
	if !strings.Contains(string(req.Body), `https://example.com/scan.png?sig=\"abc\"`) {
		t.Errorf("body = %s", req.Body)
	}
}

func TestDiagnosticMasksSecrets(t *testing.T) {
	req, err := NewBuilder(placesTemplate()).Build(context.Background(), nil, schema.Values{"searchField": "Grocery"}, placesCred())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	diag := req.Diagnostic()
	u, _ := diag["url"].(string)
	if strings.Contains(u, "AIza-secret") {
		t.Errorf("url leaks secret: %s", u)
	}
	if !strings.Contains(u, "key="+credential.Placeholder) {
		t.Errorf("url not masked: %s", u)
	}
	if diag["method"] != http.MethodGet {
		t.Errorf("method = %v", diag["method"])
	}
}

func TestBearerRequestPicksUpRotation(t *testing.T) {
	store := credential.NewStore()
	store.Put(credential.New("gh", "github", map[string]string{"authToken": "old"}, []string{"authToken"}))
	cred, _ := store.Get("gh")

	tmpl := Template{
		URL:  "https://api.github.com/repos/${{ values.owner | path }}/${{ values.repo | path }}/pulls",
		Auth: credential.AuthSpec{Kind: credential.AuthBearer, Field: "authToken"},
	}
	req, err := NewBuilder(tmpl).Build(context.Background(), nil, schema.Values{"owner": "acme", "repo": "web"}, cred)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if !req.Bearer() {
		t.Fatal("expected bearer request")
	}
	if req.URL.Path != "/repos/acme/web/pulls" {
		t.Errorf("path = %q", req.URL.Path)
	}

	if err := store.Rotate("gh", map[string]string{"authToken": "new"}); err != nil {
		t.Fatal(err)
	}
	httpReq, err := req.HTTPRequest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := httpReq.Header.Get("Authorization"); got != "Bearer new" {
		t.Errorf("Authorization = %q, want Bearer new", got)
	}
	if h := req.Diagnostic()["headers"].(map[string]any); h["Authorization"] != "Bearer "+credential.Placeholder {
		t.Errorf("diagnostic Authorization = %v", h["Authorization"])
	}
}
