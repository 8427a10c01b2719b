// Package github implements the minimal GitHub REST surface nix-review
// needs against the NixOS/nixpkgs repository: pull request metadata,
// ofborg evaluation results, and the comment/merge/approve operations
// used by the GitHub-actions subcommands.
//
// Unauthenticated access works for read operations but is rate-limited;
// a token is required for comment, merge, and approve.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Repository coordinates for the package collection under review.
const (
	repoOwner = "NixOS"
	repoName  = "nixpkgs"
)

// defaultBaseURL is the GitHub REST API endpoint.
const defaultBaseURL = "https://api.github.com"

// maxAttempts bounds retries for transient server errors.
const maxAttempts = 3

// retryBackoff is the delay between retry attempts.
const retryBackoff = 500 * time.Millisecond

// PullRequest holds the pull request metadata the review pipeline needs.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`

	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`

	Head struct {
		SHA string `json:"sha"`
		Ref string `json:"ref"`
	} `json:"head"`
}

// commitStatus is one entry of a commit's status list. Ofborg publishes
// its evaluation result as a status whose target URL points at a gist.
type commitStatus struct {
	State     string `json:"state"`
	Context   string `json:"context"`
	TargetURL string `json:"target_url"`
}

// Client is a small GitHub REST client with token auth, a request
// timeout, and bounded retries on server errors.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the public GitHub API. An empty token
// means unauthenticated (rate-limited) access.
func NewClient(token string) *Client {
	base, _ := url.Parse(defaultBaseURL)
	return &Client{
		baseURL: base,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a client against a custom API endpoint.
// Used by tests to point at an httptest server.
func NewClientWithBaseURL(token, baseURL string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	c := NewClient(token)
	c.baseURL = base
	return c, nil
}

// PullRequestURL returns the web URL for a nixpkgs pull request. This is
// the identity printed for every change, successful or failed.
func PullRequestURL(number int) string {
	return fmt.Sprintf("https://github.com/%s/%s/pull/%d", repoOwner, repoName, number)
}

// PullRequest fetches metadata for the given pull request number.
func (c *Client) PullRequest(ctx context.Context, number int) (*PullRequest, error) {
	var pr PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", repoOwner, repoName, number)
	if err := c.getJSON(ctx, path, &pr); err != nil {
		return nil, fmt.Errorf("fetch pull request %d: %w", number, err)
	}
	return &pr, nil
}

// OfborgEval returns the package attributes ofborg's evaluation reported
// as changed for the given head commit. The result is resolved in two
// steps: find the successful ofborg-eval commit status, then download
// the attribute list from the gist its target URL points at.
//
// An empty result with a nil error means ofborg has not (yet) published
// an evaluation for the commit; callers fall back to local evaluation.
func (c *Client) OfborgEval(ctx context.Context, headSHA string) ([]string, error) {
	var statuses []commitStatus
	path := fmt.Sprintf("/repos/%s/%s/commits/%s/statuses", repoOwner, repoName, headSHA)
	if err := c.getJSON(ctx, path, &statuses); err != nil {
		return nil, fmt.Errorf("fetch commit statuses for %s: %w", headSHA, err)
	}

	for _, status := range statuses {
		if !strings.HasPrefix(status.Context, "ofborg-eval") {
			continue
		}
		if status.State != "success" || !strings.Contains(status.TargetURL, "gist.github.com") {
			continue
		}
		return c.fetchGistAttrs(ctx, status.TargetURL)
	}
	return nil, nil
}

// fetchGistAttrs downloads the raw gist behind an ofborg status and
// parses it as one package attribute per line.
func (c *Client) fetchGistAttrs(ctx context.Context, gistURL string) ([]string, error) {
	// gist.github.com serves HTML; the raw content lives on
	// gist.githubusercontent.com under /raw.
	rawURL := strings.Replace(gistURL, "gist.github.com", "gist.githubusercontent.com", 1)
	rawURL = strings.TrimSuffix(rawURL, "/") + "/raw/"

	body, err := c.getRaw(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch ofborg evaluation gist: %w", err)
	}

	var attrs []string
	for _, line := range strings.Split(string(body), "\n") {
		attr := strings.TrimSpace(line)
		if attr == "" {
			continue
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// Comment posts a comment on the given pull request.
func (c *Client) Comment(ctx context.Context, number int, body string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", repoOwner, repoName, number)
	payload := map[string]string{"body": body}
	if err := c.send(ctx, http.MethodPost, path, payload); err != nil {
		return fmt.Errorf("comment on pull request %d: %w", number, err)
	}
	return nil
}

// Merge merges the given pull request.
func (c *Client) Merge(ctx context.Context, number int) error {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/merge", repoOwner, repoName, number)
	if err := c.send(ctx, http.MethodPut, path, map[string]string{}); err != nil {
		return fmt.Errorf("merge pull request %d: %w", number, err)
	}
	return nil
}

// Approve submits an approving review on the given pull request.
func (c *Client) Approve(ctx context.Context, number int) error {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", repoOwner, repoName, number)
	payload := map[string]string{"event": "APPROVE"}
	if err := c.send(ctx, http.MethodPost, path, payload); err != nil {
		return fmt.Errorf("approve pull request %d: %w", number, err)
	}
	return nil
}

// getJSON performs a GET against an API path and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, c.apiURL(path), nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// getRaw performs a GET against an absolute URL and returns the body.
func (c *Client) getRaw(ctx context.Context, absoluteURL string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, absoluteURL, nil)
}

// send performs a mutating request with a JSON payload, discarding the
// response body.
func (c *Client) send(ctx context.Context, method, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	_, err = c.do(ctx, method, c.apiURL(path), data)
	return err
}

// apiURL joins a path onto the configured base URL.
func (c *Client) apiURL(path string) string {
	joined := *c.baseURL
	joined.Path = strings.TrimSuffix(joined.Path, "/") + path
	return joined.String()
}

// do executes one HTTP request with auth headers and bounded retries on
// 5xx responses. 4xx responses are returned immediately — retrying a
// missing PR or a bad token never helps.
func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff):
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("User-Agent", "nix-review")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "token "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%s %s: server error %d", method, rawURL, resp.StatusCode)
			continue
		default:
			return nil, fmt.Errorf("%s %s: unexpected status %d: %s",
				method, rawURL, resp.StatusCode, strings.TrimSpace(string(body)))
		}
	}

	return nil, fmt.Errorf("%s %s failed after %d attempts: %w", method, rawURL, maxAttempts, lastErr)
}
