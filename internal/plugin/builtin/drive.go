package builtin

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"

	"github.com/goccy/go-json"

	"connkit/internal/credential"
	"connkit/internal/engine"
	"connkit/internal/errors"
	"connkit/internal/normalize"
	"connkit/internal/plugin"
	"connkit/internal/request"
	"connkit/internal/schema"
	"connkit/internal/types"
)

const (
	driveURL       = "https://www.googleapis.com"
	driveAuthURL   = "https://accounts.google.com/o/oauth2/v2/auth"
	driveTokenURL  = "https://www.googleapis.com/oauth2/v4/token"
	driveScope     = "https://www.googleapis.com/auth/drive"
	folderMimeType = "application/vnd.google-apps.folder"
	uploadMimeType = "image/jpg"

	fileFields = "name, id, mimeType"
)

var driveAuth = credential.AuthSpec{Kind: credential.AuthBearer, Field: "accessToken"}

type driveAPI struct {
	deps Deps
	base string
}

// operation returns a bearer authenticated Drive call. Errors of status
// >= 400 carry Google's message.
func (api *driveAPI) operation(connector string, s *schema.Schema, t request.Template, norm normalize.Func,
	diag func(schema.Values) map[string]any) *engine.Operation {
	t.Auth = driveAuth
	return &engine.Operation{
		Connector: connector,
		Schema:    s,
		Request:   request.NewBuilder(t),
		Normalize: norm,
		OnRemote:  normalize.GoogleError,
		Diagnostics: func(values schema.Values, cred *credential.Credential) map[string]any {
			out := clientDiagnostics(values, cred)
			if diag != nil {
				for k, v := range diag(values) {
					out[k] = v
				}
			}
			return out
		},
	}
}

func (api *driveAPI) filesURL() string  { return api.base + "/drive/v3/files" }
func (api *driveAPI) uploadURL() string { return api.base + "/upload/drive/v3/files" }

func googleDrive(d Deps) (*plugin.System, []plugin.Connector) {
	api := &driveAPI{deps: d, base: d.endpoint("google-drive", driveURL)}

	sys := &plugin.System{
		Name:        "google-drive",
		Description: "Google Drive files with OAuth 2.0",
		Connection: connection("google-drive",
			schema.Text("clientId", "Client Id").Require(),
			schema.Encrypted("clientSecret", "Client Secret").Require(),
			schema.Encrypted("accessToken", "Access Token"),
			schema.Encrypted("refreshToken", "Refresh Token"),
		),
		OAuth: &credential.OAuthEndpoint{
			AuthURL:         driveAuthURL,
			TokenURL:        d.endpoint("google-drive-oauth", driveTokenURL),
			Scopes:          []string{driveScope},
			ClientIDKey:     "clientId",
			ClientSecretKey: "clientSecret",
			AccessTokenKey:  "accessToken",
			RefreshTokenKey: "refreshToken",
		},
		Tester: plugin.ConnectionTesterFunc(func(ctx context.Context, cred *credential.Credential) *types.ExecutionResult {
			op := api.operation("google-drive/test-connection", nil, request.Template{
				URL:   api.filesURL(),
				Query: []request.Param{{Name: "pageSize", Value: "1"}},
			}, normalize.DriveFileList, nil)
			return d.Executor.Execute(ctx, op, nil, cred)
		}),
	}

	return sys, []plugin.Connector{
		api.listFiles(),
		api.createFolder(),
		api.sendFile(),
		api.downloadFile(),
	}
}

func (api *driveAPI) listFiles() plugin.Connector {
	d := api.deps
	info := plugin.Info{System: "google-drive", Operation: "list-files", Version: 1, Description: "List the files of a folder"}
	fields := []schema.FieldSpec{
		schema.Text("folderId", "Folder Id").
			WithDefault("root").
			WithInstruction("If left blank, it will list the files in the root folder. Otherwise it will list the children files in the specified folder"),
	}
	return newConnector(d, info, fields, func(ctx context.Context, s *schema.Schema, cred *credential.Credential) *types.ExecutionResult {
		pager := engine.Pager{
			Page: func(token string) *engine.Operation {
				return api.operation(info.Ref(), s, request.Template{
					URL: api.filesURL(),
					Query: []request.Param{
						{Name: "q", Value: "'${{ values.folderId | default root }}' in parents"},
						{Name: "fields", Value: "nextPageToken, files(" + fileFields + ")"},
						{Name: "pageToken", Value: token, OmitEmpty: true},
					},
				}, normalize.DriveFileList, func(values schema.Values) map[string]any {
					folder := values.String("folderId")
					if folder == "" {
						folder = "root"
					}
					return map[string]any{"Folder ID": folder}
				})
			},
			Next: func(payload map[string]any) string {
				token, _ := payload["nextPageToken"].(string)
				return token
			},
			Merge:    mergeFilePages,
			MaxPages: d.DriveMaxPages,
		}
		return d.Executor.Paginate(ctx, info.Ref(), pager, s.Values, cred)
	})
}

func mergeFilePages(acc, page *types.ExecutionResult) {
	files, _ := acc.Payload["files"].([]map[string]any)
	more, _ := page.Payload["files"].([]map[string]any)
	acc.Payload["files"] = append(files, more...)
	acc.Diagnostics.Response["Number of files"] = len(files) + len(more)
	if token, ok := page.Payload["nextPageToken"]; ok {
		acc.Payload["nextPageToken"] = token
	} else {
		delete(acc.Payload, "nextPageToken")
	}
}

func (api *driveAPI) createFolder() plugin.Connector {
	info := plugin.Info{System: "google-drive", Operation: "create-folder", Version: 1, Description: "Create a folder"}
	fields := []schema.FieldSpec{schema.Text("fileName", "Folder Name").Require()}
	return httpConnector(api.deps, info, fields, func(s *schema.Schema) *engine.Operation {
		return api.operation(info.Ref(), s, request.Template{
			Method:   http.MethodPost,
			URL:      api.filesURL(),
			Query:    []request.Param{{Name: "fields", Value: fileFields}},
			Body:     `{"name": "${{ values.fileName }}", "mimeType": "` + folderMimeType + `"}`,
			Encoding: request.EncodingJSON,
		}, normalize.DriveFile, func(values schema.Values) map[string]any {
			return map[string]any{"Folder Name": values.String("fileName")}
		})
	})
}

func (api *driveAPI) sendFile() plugin.Connector {
	d := api.deps
	info := plugin.Info{System: "google-drive", Operation: "send-file", Version: 1, Description: "Upload a stored document"}
	fields := []schema.FieldSpec{
		schema.Document("fileId", "File").Require(),
		schema.Text("fileName", "File Name").
			WithInstruction("If left blank, the document's stored name will be used instead"),
	}
	return httpConnector(d, info, fields, func(s *schema.Schema) *engine.Operation {
		return api.operation(info.Ref(), s, request.Template{
			Method: http.MethodPost,
			URL:    api.uploadURL(),
			Query: []request.Param{
				{Name: "uploadType", Value: "multipart"},
				{Name: "fields", Value: fileFields},
			},
			BodyFunc: api.multipartBody,
		}, normalize.DriveFile, api.documentDiagnostics)
	})
}

func documentName(values schema.Values, stored string) string {
	if name := values.String("fileName"); name != "" {
		return name
	}
	return stored
}

func (api *driveAPI) documentDiagnostics(values schema.Values) map[string]any {
	id := values.String("fileId")
	out := map[string]any{"Document ID": id}
	if api.deps.Content == nil {
		return out
	}
	doc, err := api.deps.Content.Stat(id)
	if err != nil {
		return out
	}
	out["Document Name"] = documentName(values, doc.Name)
	out["Document Extension"] = strings.TrimPrefix(path.Ext(doc.Name), ".")
	out["Document Size"] = doc.Size
	out["Document Parent Folder ID"] = doc.Folder
	return out
}

// multipartBody builds a multipart/related upload: JSON metadata first,
// then the document bytes.
func (api *driveAPI) multipartBody(_ context.Context, sc *request.Scope) (*request.Body, error) {
	if api.deps.Content == nil {
		return nil, errors.New(errors.KindConfiguration, "no content store is configured")
	}
	data, doc, err := api.deps.Content.Read(sc.Values.String("fileId"))
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfiguration, err.Error()).WithTitle("Document not found")
	}

	meta, err := json.Marshal(map[string]string{"name": documentName(sc.Values, doc.Name)})
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return nil, err
	}
	part.Write(meta)
	part, err = w.CreatePart(textproto.MIMEHeader{"Content-Type": {uploadMimeType}})
	if err != nil {
		return nil, err
	}
	part.Write(data)
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &request.Body{Data: buf.Bytes(), ContentType: "multipart/related; boundary=" + w.Boundary()}, nil
}

// downloadFile reads the file metadata, then its media, and saves the
// media into the chosen folder under the Drive file name.
func (api *driveAPI) downloadFile() plugin.Connector {
	d := api.deps
	info := plugin.Info{System: "google-drive", Operation: "download-file", Version: 1, Description: "Download a file into a folder"}
	fields := []schema.FieldSpec{
		schema.Text("fileId", "File ID").
			Require().
			WithInstruction("This can be found in a shareable link for a file as part of the URL, e.g. https://drive.google.com/open?id=<FileID>"),
		schema.Folder("folderID", "Save to Folder").Require(),
	}
	fileDiag := func(values schema.Values) map[string]any {
		return map[string]any{"File ID": values.String("fileId")}
	}
	fileURL := api.filesURL() + "/${{ values.fileId | path }}"

	return newConnector(d, info, fields, func(ctx context.Context, s *schema.Schema, cred *credential.Credential) *types.ExecutionResult {
		metadata := func(context.Context, map[string]any) (*engine.Operation, error) {
			return api.operation(info.Ref(), s, request.Template{
				URL:   fileURL,
				Query: []request.Param{{Name: "fields", Value: fileFields + ", description"}},
			}, normalize.DriveMetadata, fileDiag), nil
		}
		media := func(ctx context.Context, prev map[string]any) (*engine.Operation, error) {
			if d.Content == nil {
				return nil, errors.New(errors.KindConfiguration, "no content store is configured")
			}
			name, _ := prev["fileName"].(string)
			if name == "" {
				name = s.Values.String("fileId")
			}
			save := func(resp *normalize.Response) (map[string]any, map[string]any, error) {
				doc, err := d.Content.Save(ctx, s.Values.String("folderID"), name, bytes.NewReader(resp.Body))
				if err != nil {
					return nil, nil, errors.Wrap(err, errors.KindNormalization, err.Error()).WithTitle("Unable to save document")
				}
				return map[string]any{"Document": doc}, map[string]any{"Bytes": len(resp.Body)}, nil
			}
			return api.operation(info.Ref(), s, request.Template{
				URL:   fileURL,
				Query: []request.Param{{Name: "alt", Value: "media"}},
			}, save, fileDiag), nil
		}
		return d.Executor.Sequence(ctx, info.Ref(), s.Values, cred, metadata, media)
	})
}
