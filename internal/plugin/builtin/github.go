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

const githubURL = "https://api.github.com"

var githubHeaders = []request.Param{
	{Name: "Accept", Value: "application/vnd.github+json"},
	{Name: "X-GitHub-Api-Version", Value: "2022-11-28"},
}

func github(d Deps) (*plugin.System, []plugin.Connector) {
	baseURL := d.endpoint("github", githubURL)
	auth := credential.AuthSpec{Kind: credential.AuthBearer, Field: "authToken"}

	sys := &plugin.System{
		Name:        "github",
		Description: "GitHub pull requests with a personal access token",
		Connection: connection("github",
			schema.Encrypted("authToken", "Auth Token").Require(),
		),
		Tester: plugin.ConnectionTesterFunc(func(ctx context.Context, cred *credential.Credential) *types.ExecutionResult {
			return d.Executor.Execute(ctx, &engine.Operation{
				Connector: "github/test-connection",
				Request: request.NewBuilder(request.Template{
					URL:    baseURL + "/user",
					Header: githubHeaders,
					Auth:   auth,
				}),
			}, nil, cred)
		}),
	}

	fields := []schema.FieldSpec{
		schema.Text("repo", "Repository").Require(),
		schema.Text("owner", "Owner").Require(),
		schema.Text("username", "Author").
			WithInstruction("Only pull requests opened by this user are returned"),
	}
	pull := httpConnector(d,
		plugin.Info{System: sys.Name, Operation: "pull", Version: 1, Description: "List the head ref and sha of open pull requests"},
		fields,
		func(s *schema.Schema) *engine.Operation {
			return &engine.Operation{
				Connector: "github/pull@v1",
				Schema:    s,
				Request: request.NewBuilder(request.Template{
					URL:    baseURL + "/repos/${{ values.owner | path }}/${{ values.repo | path }}/pulls",
					Query:  []request.Param{{Name: "state", Value: "open"}, {Name: "per_page", Value: "100"}},
					Header: githubHeaders,
					Auth:   auth,
				}),
				Normalize: normalize.GitHubPulls(s.Values.String("username")),
				Diagnostics: func(values schema.Values, _ *credential.Credential) map[string]any {
					return map[string]any{
						"Repository": values.String("owner") + "/" + values.String("repo"),
						"Author":     values.String("username"),
					}
				},
			}
		})
	return sys, []plugin.Connector{pull}
}
