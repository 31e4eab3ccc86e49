package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kurihiro0119/github-review-sync/internal/domain"
)

// Client is the API client for github-review-sync
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// CommitsQuery narrows a commits request
type CommitsQuery struct {
	Since        string
	SkipIdentity bool
	SkipPull     bool
}

// Cursor is the persisted progress of a repository
type Cursor struct {
	Repo        string `json:"repo"`
	LastCommit  string `json:"last_commit"`
	CommentPage int    `json:"comment_page"`
}

// GetCommits retrieves the commits after a cursor without moving it
func (c *Client) GetCommits(ctx context.Context, owner, repo string, query CommitsQuery) ([]*domain.CommitRecord, error) {
	path := fmt.Sprintf("/api/v1/repos/%s/%s/commits", url.PathEscape(owner), url.PathEscape(repo))
	params := url.Values{}
	if query.Since != "" {
		params.Set("since", query.Since)
	}
	if query.SkipIdentity {
		params.Set("merge", "false")
	}
	if query.SkipPull {
		params.Set("pull", "false")
	}

	var response struct {
		Data []*domain.CommitRecord `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, params, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetComments retrieves one page of commit comments; page < 1 uses the persisted page
func (c *Client) GetComments(ctx context.Context, owner, repo string, page int) ([]*domain.CommentRecord, error) {
	path := fmt.Sprintf("/api/v1/repos/%s/%s/comments", url.PathEscape(owner), url.PathEscape(repo))
	var params url.Values
	if page > 0 {
		params = url.Values{"page": {strconv.Itoa(page)}}
	}

	var response struct {
		Data []*domain.CommentRecord `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, params, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetCursor retrieves the persisted progress of a repository
func (c *Client) GetCursor(ctx context.Context, owner, repo string) (*Cursor, error) {
	path := fmt.Sprintf("/api/v1/repos/%s/%s/cursor", url.PathEscape(owner), url.PathEscape(repo))

	var response struct {
		Data *Cursor `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// ResetCursor forgets the persisted progress of a repository
func (c *Client) ResetCursor(ctx context.Context, owner, repo string) error {
	path := fmt.Sprintf("/api/v1/repos/%s/%s/cursor", url.PathEscape(owner), url.PathEscape(repo))
	return c.do(ctx, http.MethodDelete, path, nil, http.StatusNoContent, nil)
}

// SyncCommits runs a commit pass on the server
func (c *Client) SyncCommits(ctx context.Context, owner, repo string) (*domain.SyncPass, []*domain.CommitRecord, error) {
	path := fmt.Sprintf("/api/v1/repos/%s/%s/sync/commits", url.PathEscape(owner), url.PathEscape(repo))

	var response struct {
		Pass *domain.SyncPass       `json:"pass"`
		Data []*domain.CommitRecord `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, path, nil, http.StatusOK, &response); err != nil {
		return nil, nil, err
	}
	return response.Pass, response.Data, nil
}

// SyncComments runs a comment pass on the server
func (c *Client) SyncComments(ctx context.Context, owner, repo string) (*domain.SyncPass, []*domain.CommentRecord, error) {
	path := fmt.Sprintf("/api/v1/repos/%s/%s/sync/comments", url.PathEscape(owner), url.PathEscape(repo))

	var response struct {
		Pass *domain.SyncPass        `json:"pass"`
		Data []*domain.CommentRecord `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, path, nil, http.StatusOK, &response); err != nil {
		return nil, nil, err
	}
	return response.Pass, response.Data, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, want int, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}
