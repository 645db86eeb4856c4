package builtin

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"connkit/internal/content"
	"connkit/internal/credential"
	"connkit/internal/engine"
	"connkit/internal/errors"
	"connkit/internal/loader"
	"connkit/internal/plugin"
	"connkit/internal/schema"
	"connkit/internal/types"
)

func init() {
	engine.RetryBackoff = time.Millisecond
}

func newDeps(t *testing.T, endpoints map[string]string) Deps {
	t.Helper()
	store, err := content.NewStore(t.TempDir())
	require.NoError(t, err)
	return Deps{
		Executor:      engine.NewExecutor(http.DefaultClient, nil, zap.NewNop()),
		Content:       store,
		DriveMaxPages: 5,
		Endpoints:     endpoints,
	}
}

func register(t *testing.T, d Deps) *plugin.Registry {
	t.Helper()
	r := plugin.NewRegistry()
	require.NoError(t, Register(r, d))
	return r
}

func get(t *testing.T, r *plugin.Registry, ref string) plugin.Connector {
	t.Helper()
	c, ok := r.Get(ref)
	require.True(t, ok, "connector %s not registered", ref)
	return c
}

func requireSuccess(t *testing.T, res *types.ExecutionResult) {
	t.Helper()
	require.Equal(t, types.OutcomeSuccess, res.Outcome, "%s: %s (%s)", res.ErrorKind, res.ErrorTitle, res.ErrorMessage)
}

func TestRegisterAll(t *testing.T) {
	d := newDeps(t, nil)
	r := register(t, d)

	var refs []string
	for _, info := range r.List() {
		refs = append(refs, info.Ref())
	}
	assert.Equal(t, []string{
		"data-entry/form@v1",
		"dropdown-diffs/diff@v1",
		"error-handling/status@v1",
		"example/versioned@v1",
		"example/versioned@v2",
		"github/pull@v1",
		"google-drive/create-folder@v1",
		"google-drive/download-file@v1",
		"google-drive/list-files@v1",
		"google-drive/send-file@v1",
		"google-places/location-search@v1",
		"hello-world/hello@v1",
		"text-detection/detect@v1",
	}, refs)
	assert.Len(t, r.Systems(), 9)

	assert.Error(t, Register(r, d), "registering twice must fail")
	assert.Error(t, Register(plugin.NewRegistry(), Deps{}), "an executor is required")
}

func TestHelloWorld(t *testing.T) {
	d := newDeps(t, nil)
	_, err := d.Content.CreateFolder("docs")
	require.NoError(t, err)
	hello := get(t, register(t, d), "hello-world/hello")
	cred := credential.New("hello", "hello-world", map[string]string{"csProp": "Hello "}, nil)

	res := hello.Execute(context.Background(), schema.Values{"documentLocation": "docs", "intProp": "World"}, cred)
	requireSuccess(t, res)
	assert.Equal(t, "world", res.Payload["hello"])
	assert.Equal(t, "Hello World", res.Payload["concat"])
	docs, ok := res.Payload["savedDocuments"].([]any)
	require.True(t, ok)
	require.Len(t, docs, 1)
	doc := docs[0].(*content.Document)
	assert.Equal(t, "hello.txt", doc.Name)
	assert.EqualValues(t, 4, doc.Size)
	assert.Equal(t, "Hello ", res.Diagnostics.Request["csValue"])
	assert.Equal(t, "World", res.Diagnostics.Request["integrationValue"])

	data, _, err := d.Content.Read(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "asdf", string(data))

	res = hello.Execute(context.Background(), schema.Values{"documentLocation": "missing", "intProp": "World"}, cred)
	assert.Equal(t, types.OutcomeError, res.Outcome)
	assert.Equal(t, UploadErrorTitle, res.ErrorTitle)
}

func TestVersionedOperations(t *testing.T) {
	r := register(t, newDeps(t, nil))
	cred := credential.New("example", "example", map[string]string{"csProp": "cs"}, nil)

	latest := get(t, r, "example/versioned")
	assert.Equal(t, 2, latest.Info().Version)

	res := latest.Execute(context.Background(), schema.Values{"intProp": "1"}, cred)
	assert.Equal(t, "configuration", res.ErrorKind)
	fields, ok := res.ErrorDetails["fields"].(map[string][]string)
	require.True(t, ok, "details = %v", res.ErrorDetails)
	assert.Equal(t, []string{"is required"}, fields["intProp2"])

	res = latest.Execute(context.Background(), schema.Values{"intProp": "1", "intProp2": "2"}, cred)
	requireSuccess(t, res)
	assert.Equal(t, "cs12", res.Payload["value"])

	res = get(t, r, "example/versioned@v1").Execute(context.Background(), schema.Values{"intProp": "1"}, cred)
	requireSuccess(t, res)
	assert.Equal(t, "cs1", res.Payload["value"])
}

func TestDropdownDiffs(t *testing.T) {
	r := register(t, newDeps(t, nil))
	diff := get(t, r, "dropdown-diffs/diff")

	s, err := diff.BuildSchema(context.Background(), nil, "")
	require.NoError(t, err)
	f, ok := s.Field("localTypeDropdown_int")
	require.True(t, ok, "nested dropdown not found")
	assert.Len(t, f.Choices, 2)
	_, ok = s.Field("rootPropertyTextBox_int")
	assert.True(t, ok)

	sys, ok := r.System("dropdown-diffs")
	require.True(t, ok)
	cs, err := sys.ConnectionSchema(context.Background(), nil)
	require.NoError(t, err)
	_, ok = cs.Field("localTypeDropdown_cs")
	assert.True(t, ok)

	cred := credential.New("diffs", "dropdown-diffs", map[string]string{"csProp": "a"}, nil)
	res := diff.Execute(context.Background(), schema.Values{"intProp": "b", "localTypeDropdown_int": "local_type_dropdown_choice_2_int_changed"}, cred)
	requireSuccess(t, res)
	assert.Equal(t, "ab", res.Payload["concat"])
}

func placesCred() *credential.Credential {
	return credential.New("places", "google-places", map[string]string{"apiKey": "AIza-secret"}, []string{"apiKey"})
}

func TestPlacesSearch(t *testing.T) {
	var inputs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		inputs = append(inputs, q.Get("input"))
		assert.Equal(t, "AIza-secret", q.Get("key"))
		assert.Equal(t, "ipbias", q.Get("locationbias"))
		assert.Equal(t, "formatted_address,name,rating,opening_hours", q.Get("fields"))
		if q.Get("input") == "bad" {
			fmt.Fprint(w, `{"candidates":[],"error_message":"The provided API key is invalid.","status":"REQUEST_DENIED"}`)
			return
		}
		if q.Get("input") == "5551234567" {
			assert.Equal(t, "phonenumber", q.Get("inputtype"))
		} else {
			assert.Equal(t, "textquery", q.Get("inputtype"))
		}
		fmt.Fprint(w, `{"candidates":[{"name":"Grocery Outlet"}],"status":"OK"}`)
	}))
	defer srv.Close()

	r := register(t, newDeps(t, map[string]string{"google-places": srv.URL}))
	search := get(t, r, "google-places/location-search")

	res := search.Execute(context.Background(), schema.Values{"searchField": "5551234567", "phoneToggle": true}, placesCred())
	requireSuccess(t, res)
	assert.Equal(t, "OK", res.Payload["status"])
	assert.Equal(t, credential.Placeholder, res.Diagnostics.Request["Key"])
	assert.Equal(t, true, res.Diagnostics.Request["Is Phone Number"])
	assert.Equal(t, srv.URL, res.Diagnostics.Request["Url"])
	assert.NotContains(t, fmt.Sprint(res.Diagnostics.Request), "AIza-secret")
	assert.Contains(t, res.Diagnostics.Response, "Raw Response")

	res = search.Execute(context.Background(), schema.Values{"searchField": "bad"}, placesCred())
	assert.Equal(t, types.OutcomeError, res.Outcome)
	assert.Equal(t, "Error with search", res.ErrorTitle)
	assert.Equal(t, "The provided API key is invalid.", res.ErrorMessage)

	sys, _ := r.System("google-places")
	res = sys.Tester.TestConnection(context.Background(), placesCred())
	requireSuccess(t, res)
	assert.Equal(t, "", inputs[len(inputs)-1])
}

func TestPlacesEmptyErrorMessageFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[],"error_message":"","status":"INVALID_REQUEST"}`)
	}))
	defer srv.Close()

	search := get(t, register(t, newDeps(t, map[string]string{"google-places": srv.URL})), "google-places/location-search")
	res := search.Execute(context.Background(), schema.Values{"searchField": "grocery"}, placesCred())
	assert.Equal(t, types.OutcomeError, res.Outcome)
	assert.Equal(t, "Error with search", res.ErrorTitle)
	assert.Equal(t, "", res.ErrorMessage)
}

func TestTextDetection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "denied") {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`)
			return
		}
		assert.Contains(t, string(body), `"imageUri": "https://example.com/note.png"`)
		assert.Contains(t, string(body), "TEXT_DETECTION")
		fmt.Fprint(w, `{"responses":[{"textAnnotations":[
			{"description":"HELLO","boundingPoly":{"vertices":[{"x":1,"y":1},{"x":9,"y":1},{"x":9,"y":5},{"x":1,"y":5}]}},
			{"description":"HELLO","boundingPoly":{"vertices":[{"x":1,"y":1},{"x":9,"y":1},{"x":9,"y":5},{"x":1,"y":5}]}}
		]}]}`)
	}))
	defer srv.Close()

	detect := get(t, register(t, newDeps(t, map[string]string{"text-detection": srv.URL})), "text-detection/detect")
	cred := credential.New("vision", "text-detection", map[string]string{"apiKey": "vision-key"}, []string{"apiKey"})

	res := detect.Execute(context.Background(), schema.Values{"imageUrl": "https://example.com/note.png"}, cred)
	requireSuccess(t, res)
	assert.Equal(t, []string{"HELLO"}, res.Payload["textFound"])

	res = detect.Execute(context.Background(), schema.Values{"imageUrl": "https://example.com/denied.png"}, cred)
	assert.Equal(t, "Google Exception Status: Forbidden", res.ErrorTitle)
	assert.Equal(t, "API key not valid", res.ErrorMessage)
}

func TestTextDetectionSendsQueryStringVerbatim(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		fmt.Fprint(w, `{"responses":[{}]}`)
	}))
	defer srv.Close()

	detect := get(t, register(t, newDeps(t, map[string]string{"text-detection": srv.URL})), "text-detection/detect")
	cred := credential.New("vision", "text-detection", map[string]string{"apiKey": "vision-key"}, []string{"apiKey"})

	res := detect.Execute(context.Background(), schema.Values{"imageUrl": "https://x.test/a.png?w=1&h=2"}, cred)
	requireSuccess(t, res)
	assert.Contains(t, body, `"imageUri": "https://x.test/a.png?w=1&h=2"`)
	assert.NotContains(t, body, `\u0026`)
}

func TestErrorHandlingStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var code int
		fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/status/"), "%d", &code)
		w.WriteHeader(code)
	}))
	defer srv.Close()

	status := get(t, register(t, newDeps(t, map[string]string{"error-handling": srv.URL})), "error-handling/status")

	res := status.Execute(context.Background(), schema.Values{"httpStatusCode": "404"}, nil)
	assert.Equal(t, types.OutcomeError, res.Outcome)
	assert.Equal(t, "404", res.ErrorTitle)
	assert.Equal(t, "Not Found", res.ErrorMessage)

	res = status.Execute(context.Background(), schema.Values{"httpStatusCode": "201"}, nil)
	requireSuccess(t, res)
	assert.Equal(t, 201, res.Payload["Status Code: "])
	assert.Equal(t, "Created", res.Payload["Reason Phrase: "])
	assert.Equal(t, srv.URL+"/status/201", res.Diagnostics.Request["URL"])

	before := calls.Load()
	res = status.Execute(context.Background(), schema.Values{"httpStatusCode": "200", "phoneNumber": "12ab"}, nil)
	assert.Equal(t, "configuration", res.ErrorKind)
	res = status.Execute(context.Background(), schema.Values{"httpStatusCode": "999"}, nil)
	assert.Equal(t, "configuration", res.ErrorKind)
	assert.Equal(t, before, calls.Load(), "invalid configuration must not reach the server")

	s, err := status.BuildSchema(context.Background(), schema.Values{"phoneNumber": "123"}, "phoneNumber")
	require.NoError(t, err)
	f, _ := s.Field("phoneNumber")
	assert.Equal(t, []string{schema.PhoneLengthMessage}, f.Errors)
	choices, _ := s.Field("httpStatusCode")
	assert.Equal(t, "NOT_FOUND: 404", choices.Choices[5].Name)
}

func TestErrorHandlingTransportTitle(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	status := get(t, register(t, newDeps(t, map[string]string{"error-handling": url})), "error-handling/status")
	res := status.Execute(context.Background(), schema.Values{"httpStatusCode": "200"}, nil)
	assert.Equal(t, "transport", res.ErrorKind)
	assert.Equal(t, StatusTransportTitle, res.ErrorTitle)
}

func TestDataEntryForms(t *testing.T) {
	form := get(t, register(t, newDeps(t, nil)), "data-entry/form")

	s, err := form.BuildSchema(context.Background(), nil, "")
	require.NoError(t, err)
	require.Len(t, s.Fields, 1)
	assert.Equal(t, "My Corp Forms", s.Fields[0].Label)
	assert.Len(t, s.Fields[0].Choices, 2)

	s, err = form.BuildSchema(context.Background(), schema.Values{"formDropdown": "customer"}, "formDropdown")
	require.NoError(t, err)
	age, ok := s.Field("customerAge")
	require.True(t, ok)
	assert.Equal(t, schema.KindInteger, age.Kind)

	values := schema.Values{"formDropdown": "customer", "customerName": "Ada", "customerAge": 36, "isActive": true}
	res := form.Execute(context.Background(), values, nil)
	requireSuccess(t, res)
	assert.Equal(t, map[string]any(values), res.Payload)
	assert.Equal(t, "36", res.Diagnostics.Response["customerAge"])

	res = form.Execute(context.Background(), schema.Values{"formDropdown": "customer", "customerAge": "old"}, nil)
	assert.Equal(t, "configuration", res.ErrorKind)
}

func TestDataEntryFormsUnavailable(t *testing.T) {
	d := newDeps(t, nil)
	d.Forms = func(context.Context) ([]loader.Form, error) { return nil, stderrors.New("forms service down") }
	form := get(t, register(t, d), "data-entry/form")

	_, err := form.BuildSchema(context.Background(), nil, "")
	assert.True(t, errors.IsKind(err, errors.KindSchema), "err = %v", err)

	res := form.Execute(context.Background(), schema.Values{"formDropdown": "customer"}, nil)
	assert.Equal(t, types.OutcomeError, res.Outcome)
	assert.Equal(t, FormsErrorTitle, res.ErrorTitle)
}

func TestDataEntryUnsupportedFieldType(t *testing.T) {
	d := newDeps(t, nil)
	d.Forms = func(context.Context) ([]loader.Form, error) {
		return []loader.Form{{Name: "event", Fields: []loader.FormField{{ID: "when", Type: "DATE"}}}}, nil
	}
	form := get(t, register(t, d), "data-entry/form")

	_, err := form.BuildSchema(context.Background(), schema.Values{"formDropdown": "event"}, "formDropdown")
	assert.True(t, errors.IsKind(err, errors.KindSchema), "err = %v", err)
}
