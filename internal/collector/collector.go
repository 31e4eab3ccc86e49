package collector

import (
	"context"

	"github.com/kurihiro0119/github-review-sync/internal/domain"
)

// PageSize is the number of entries the remote API returns per page
const PageSize = 30

// RemoteCommit is a commit as known to the remote hosting service
type RemoteCommit struct {
	SHA      string
	Identity domain.Identity
}

// Collector defines the interface for reading review data from the remote hosting service
type Collector interface {
	// ListCommitComments retrieves one page of commit comments for a repository
	ListCommitComments(ctx context.Context, repo *domain.Repository, page int) ([]*domain.CommentRecord, error)

	// ListCommitsFrom retrieves up to PageSize commits reachable from sha
	ListCommitsFrom(ctx context.Context, repo *domain.Repository, sha string) ([]RemoteCommit, error)
}
