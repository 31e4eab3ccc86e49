package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"

	"github.com/kurihiro0119/github-review-sync/internal/domain"
	apperrors "github.com/kurihiro0119/github-review-sync/internal/errors"
)

// githubCollector implements Collector using GitHub API
type githubCollector struct {
	client      *github.Client
	rateLimiter RateLimiter
}

// NewGitHubCollector creates a new GitHub collector; an empty token makes anonymous requests
func NewGitHubCollector(token string) Collector {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	return NewGitHubCollectorWithClient(github.NewClient(httpClient))
}

// NewGitHubCollectorWithClient wraps an existing client, e.g. one pointed at GitHub Enterprise
func NewGitHubCollectorWithClient(client *github.Client) Collector {
	return &githubCollector{
		client:      client,
		rateLimiter: NewRateLimiter(),
	}
}

// commitComment mirrors the commit comment payload, which carries a line number
// the library type does not expose
type commitComment struct {
	ID        int64            `json:"id"`
	HTMLURL   string           `json:"html_url"`
	User      *github.User     `json:"user"`
	Position  *int             `json:"position"`
	Line      *int             `json:"line"`
	Path      *string          `json:"path"`
	CommitID  string           `json:"commit_id"`
	CreatedAt github.Timestamp `json:"created_at"`
	UpdatedAt github.Timestamp `json:"updated_at"`
	Body      string           `json:"body"`
}

// ListCommitComments retrieves one page of commit comments for a repository
func (c *githubCollector) ListCommitComments(ctx context.Context, repo *domain.Repository, page int) ([]*domain.CommentRecord, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("repos/%s/%s/comments?page=%d&per_page=%d",
		url.PathEscape(repo.Owner()), url.PathEscape(repo.Name()), max(page, 1), PageSize)
	req, err := c.client.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, apperrors.NewRemoteLookupFailedError("failed to build comments request", err)
	}

	var comments []*commitComment
	resp, err := c.client.Do(ctx, req, &comments)
	if err != nil {
		return nil, apperrors.NewRemoteLookupFailedError(
			fmt.Sprintf("failed to list commit comments for %s page %d", repo.FullName, page), err)
	}
	c.updateRateLimitFromResponse(resp)

	records := make([]*domain.CommentRecord, 0, len(comments))
	for _, comment := range comments {
		record := &domain.CommentRecord{
			ID:         comment.ID,
			URL:        comment.HTMLURL,
			Position:   comment.Position,
			Line:       comment.Line,
			Path:       comment.Path,
			CommitHash: comment.CommitID,
			CreatedAt:  comment.CreatedAt.Time,
			UpdatedAt:  comment.UpdatedAt.Time,
			Body:       comment.Body,
		}
		if comment.User != nil {
			login := comment.User.GetLogin()
			record.Login = &login
		}
		records = append(records, record)
	}

	return records, nil
}

// ListCommitsFrom retrieves up to PageSize commits reachable from sha
func (c *githubCollector) ListCommitsFrom(ctx context.Context, repo *domain.Repository, sha string) ([]RemoteCommit, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	opts := &github.CommitsListOptions{
		SHA:         sha,
		ListOptions: github.ListOptions{PerPage: PageSize},
	}

	commits, resp, err := c.client.Repositories.ListCommits(ctx, repo.Owner(), repo.Name(), opts)
	if err != nil {
		// Empty repository
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, nil
		}
		return nil, apperrors.NewRemoteLookupFailedError(
			fmt.Sprintf("failed to list commits for %s from %s", repo.FullName, sha), err)
	}
	c.updateRateLimitFromResponse(resp)

	result := make([]RemoteCommit, 0, len(commits))
	for _, commit := range commits {
		result = append(result, RemoteCommit{
			SHA: commit.GetSHA(),
			Identity: domain.Identity{
				AuthorLogin:    commit.GetAuthor().GetLogin(),
				AuthorID:       commit.GetAuthor().GetID(),
				CommitterLogin: commit.GetCommitter().GetLogin(),
				CommitterID:    commit.GetCommitter().GetID(),
			},
		})
	}

	return result, nil
}

// updateRateLimitFromResponse updates the rate limiter from API response
func (c *githubCollector) updateRateLimitFromResponse(resp *github.Response) {
	if resp != nil && resp.Rate.Limit > 0 && resp.Rate.Remaining >= 0 {
		c.rateLimiter.UpdateLimit(resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
}
