package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPullRequestURL(t *testing.T) {
	assert.Equal(t, "https://github.com/NixOS/nixpkgs/pull/12345", PullRequestURL(12345))
}

func TestPullRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/NixOS/nixpkgs/pulls/42", r.URL.Path)
		assert.Equal(t, "token secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))

		fmt.Fprint(w, `{
			"number": 42,
			"title": "hello: 2.12 -> 2.13",
			"html_url": "https://github.com/NixOS/nixpkgs/pull/42",
			"state": "open",
			"base": {"ref": "master"},
			"head": {"sha": "abc123", "ref": "update-hello"}
		}`)
	}))
	defer server.Close()

	c, err := NewClientWithBaseURL("secret", server.URL)
	require.NoError(t, err)

	pr, err := c.PullRequest(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "master", pr.Base.Ref)
	assert.Equal(t, "abc123", pr.Head.SHA)
	assert.Equal(t, "https://github.com/NixOS/nixpkgs/pull/42", pr.HTMLURL)
}

func TestPullRequestNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	c, err := NewClientWithBaseURL("", server.URL)
	require.NoError(t, err)

	_, err = c.PullRequest(context.Background(), 999999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestUnauthenticatedRequestOmitsAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"number": 1}`)
	}))
	defer server.Close()

	c, err := NewClientWithBaseURL("", server.URL)
	require.NoError(t, err)

	_, err = c.PullRequest(context.Background(), 1)
	require.NoError(t, err)
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"number": 7}`)
	}))
	defer server.Close()

	c, err := NewClientWithBaseURL("", server.URL)
	require.NoError(t, err)

	pr, err := c.PullRequest(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, pr.Number)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchGistAttrs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gists/abc/raw/", r.URL.Path)
		fmt.Fprint(w, "hello\njq\n\n  ripgrep  \n")
	}))
	defer server.Close()

	c, err := NewClientWithBaseURL("", server.URL)
	require.NoError(t, err)

	attrs, err := c.fetchGistAttrs(context.Background(), server.URL+"/gists/abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "jq", "ripgrep"}, attrs)
}

func TestOfborgEvalNoEvaluation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Statuses exist but none is a successful ofborg evaluation.
		fmt.Fprint(w, `[
			{"state": "pending", "context": "ofborg-eval", "target_url": "https://gist.github.com/x"},
			{"state": "success", "context": "grahamcofborg-eval-check-maintainers", "target_url": ""},
			{"state": "success", "context": "continuous-integration/travis", "target_url": "https://travis-ci.org"}
		]`)
	}))
	defer server.Close()

	c, err := NewClientWithBaseURL("", server.URL)
	require.NoError(t, err)

	attrs, err := c.OfborgEval(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Nil(t, attrs, "no successful ofborg eval means no attrs and no error")
}

func TestMutatingOperations(t *testing.T) {
	type call struct {
		method string
		path   string
	}
	var calls []call

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{method: r.Method, path: r.URL.Path})
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	c, err := NewClientWithBaseURL("secret", server.URL)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Comment(ctx, 5, "report"))
	require.NoError(t, c.Merge(ctx, 5))
	require.NoError(t, c.Approve(ctx, 5))

	assert.Equal(t, []call{
		{method: http.MethodPost, path: "/repos/NixOS/nixpkgs/issues/5/comments"},
		{method: http.MethodPut, path: "/repos/NixOS/nixpkgs/pulls/5/merge"},
		{method: http.MethodPost, path: "/repos/NixOS/nixpkgs/pulls/5/reviews"},
	}, calls)
}
