package normalize

import "strings"

type pullRequest struct {
	User struct {
		Login string `json:"login"`
	} `json:"user"`
	Head struct {
		Ref string `json:"ref"`
		Sha string `json:"sha"`
	} `json:"head"`
}

// GitHubPulls returns a Func mapping a pulls listing to
// {Result: 200, Body: [{ref, sha}]}. When author is set only their pull
// requests are kept.
func GitHubPulls(author string) Func {
	return func(resp *Response) (map[string]any, map[string]any, error) {
		var pulls []pullRequest
		if err := Decode(resp, &pulls); err != nil {
			return nil, nil, err
		}
		body := make([]map[string]any, 0, len(pulls))
		for _, pr := range pulls {
			if author != "" && !strings.EqualFold(pr.User.Login, author) {
				continue
			}
			body = append(body, map[string]any{"ref": pr.Head.Ref, "sha": pr.Head.Sha})
		}
		payload := map[string]any{
			"Result": resp.StatusCode,
			"Body":   body,
		}
		diag := map[string]any{
			"Pull requests": len(pulls),
			"Matched":       len(body),
		}
		return payload, diag, nil
	}
}
