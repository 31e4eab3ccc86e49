package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v55/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-review-sync/internal/domain"
	apperrors "github.com/kurihiro0119/github-review-sync/internal/errors"
)

func newTestCollector(t *testing.T, mux *http.ServeMux) *githubCollector {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = baseURL

	return &githubCollector{client: client, rateLimiter: newRateLimiter(0, slog.Default())}
}

func TestListCommitComments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/comments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "30", r.URL.Query().Get("per_page"))
		fmt.Fprint(w, `[
			{
				"id": 11,
				"html_url": "https://github.com/acme/widgets/commit/abc#commitcomment-11",
				"user": {"login": "sam"},
				"position": 10,
				"line": 42,
				"path": "src/x.rb",
				"commit_id": "abc",
				"created_at": "2024-01-02T03:04:05Z",
				"updated_at": "2024-01-02T04:04:05Z",
				"body": "nit"
			},
			{
				"id": 12,
				"html_url": "https://github.com/acme/widgets/commit/def#commitcomment-12",
				"user": null,
				"position": null,
				"line": null,
				"path": null,
				"commit_id": "def",
				"created_at": "2024-01-03T03:04:05Z",
				"updated_at": "2024-01-03T03:04:05Z",
				"body": "LGTM"
			}
		]`)
	})

	c := newTestCollector(t, mux)
	comments, err := c.ListCommitComments(context.Background(), &domain.Repository{FullName: "acme/widgets"}, 2)
	require.NoError(t, err)
	require.Len(t, comments, 2)

	first := comments[0]
	assert.Equal(t, int64(11), first.ID)
	assert.Equal(t, "https://github.com/acme/widgets/commit/abc#commitcomment-11", first.URL)
	require.NotNil(t, first.Login)
	assert.Equal(t, "sam", *first.Login)
	require.NotNil(t, first.Position)
	assert.Equal(t, 10, *first.Position)
	require.NotNil(t, first.Line)
	assert.Equal(t, 42, *first.Line)
	assert.Equal(t, "src/x.rb", *first.Path)
	assert.Equal(t, "abc", first.CommitHash)
	assert.Equal(t, 2024, first.CreatedAt.Year())
	assert.Equal(t, "nit", first.Body)
	assert.True(t, first.HasDiffAnchor())

	second := comments[1]
	assert.Nil(t, second.Login)
	assert.Nil(t, second.Position)
	assert.Nil(t, second.Path)
	assert.False(t, second.HasDiffAnchor())
}

func TestListCommitCommentsFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/comments", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Server Error"}`, http.StatusBadGateway)
	})

	c := newTestCollector(t, mux)
	_, err := c.ListCommitComments(context.Background(), &domain.Repository{FullName: "acme/widgets"}, 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsRemoteLookupFailed(err))
}

func TestListCommitsFrom(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ccc", r.URL.Query().Get("sha"))
		assert.Equal(t, "30", r.URL.Query().Get("per_page"))
		fmt.Fprint(w, `[
			{"sha": "ccc", "author": {"login": "sam", "id": 1}, "committer": {"login": "web-flow", "id": 2}},
			{"sha": "bbb", "author": null, "committer": null}
		]`)
	})

	c := newTestCollector(t, mux)
	commits, err := c.ListCommitsFrom(context.Background(), &domain.Repository{FullName: "acme/widgets"}, "ccc")
	require.NoError(t, err)
	require.Len(t, commits, 2)

	assert.Equal(t, RemoteCommit{SHA: "ccc", Identity: domain.Identity{
		AuthorLogin: "sam", AuthorID: 1, CommitterLogin: "web-flow", CommitterID: 2,
	}}, commits[0])
	assert.Equal(t, RemoteCommit{SHA: "bbb"}, commits[1])
}

func TestListCommitsFromEmptyRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/commits", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Git Repository is empty."}`, http.StatusConflict)
	})

	c := newTestCollector(t, mux)
	commits, err := c.ListCommitsFrom(context.Background(), &domain.Repository{FullName: "acme/widgets"}, "ccc")
	require.NoError(t, err)
	assert.Empty(t, commits)
}
