// Package cursor persists per-repository synchronization progress.
package cursor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kurihiro0119/github-review-sync/internal/domain"
)

// Namespace scopes every cursor key in the key-value store
const Namespace = "discourse-code-review"

const (
	lastCommitKey  = "last commit"
	commentPageKey = "comment page"
)

// KeyValue is the persistence capability a Store needs
type KeyValue interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key, value string) error
	Delete(ctx context.Context, namespace, key string) error
}

// Store reads and writes the last synchronized commit and comment page of repositories
type Store struct {
	kv KeyValue
}

// NewStore creates a cursor store backed by kv
func NewStore(kv KeyValue) *Store {
	return &Store{kv: kv}
}

// LastCommit returns the persisted commit cursor, or "" when none is set
func (s *Store) LastCommit(ctx context.Context, repo *domain.Repository) (string, error) {
	value, _, err := s.kv.Get(ctx, Namespace, lastCommitKey+repo.FullName)
	if err != nil {
		return "", fmt.Errorf("failed to read last commit of %s: %w", repo.FullName, err)
	}
	return value, nil
}

// SetLastCommit persists the commit cursor
func (s *Store) SetLastCommit(ctx context.Context, repo *domain.Repository, hash string) error {
	if err := s.kv.Set(ctx, Namespace, lastCommitKey+repo.FullName, hash); err != nil {
		return fmt.Errorf("failed to save last commit of %s: %w", repo.FullName, err)
	}
	return nil
}

// CommentPage returns the persisted comment page, defaulting to 1
func (s *Store) CommentPage(ctx context.Context, repo *domain.Repository) (int, error) {
	value, found, err := s.kv.Get(ctx, Namespace, commentPageKey+repo.FullName)
	if err != nil {
		return 0, fmt.Errorf("failed to read comment page of %s: %w", repo.FullName, err)
	}
	if !found {
		return 1, nil
	}

	page, err := strconv.Atoi(value)
	if err != nil || page < 1 {
		return 1, nil
	}
	return page, nil
}

// SetCommentPage persists the comment page; values below 1 are stored as 1
func (s *Store) SetCommentPage(ctx context.Context, repo *domain.Repository, page int) error {
	page = max(page, 1)
	if err := s.kv.Set(ctx, Namespace, commentPageKey+repo.FullName, strconv.Itoa(page)); err != nil {
		return fmt.Errorf("failed to save comment page of %s: %w", repo.FullName, err)
	}
	return nil
}

// Reset forgets both cursors of repo
func (s *Store) Reset(ctx context.Context, repo *domain.Repository) error {
	if err := s.kv.Delete(ctx, Namespace, lastCommitKey+repo.FullName); err != nil {
		return fmt.Errorf("failed to reset last commit of %s: %w", repo.FullName, err)
	}
	if err := s.kv.Delete(ctx, Namespace, commentPageKey+repo.FullName); err != nil {
		return fmt.Errorf("failed to reset comment page of %s: %w", repo.FullName, err)
	}
	return nil
}
