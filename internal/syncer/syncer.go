package syncer

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kurihiro0119/github-review-sync/internal/collector"
	"github.com/kurihiro0119/github-review-sync/internal/domain"
	apperrors "github.com/kurihiro0119/github-review-sync/internal/errors"
	"github.com/kurihiro0119/github-review-sync/internal/review"
)

// leasePrefix namespaces repository leases in the lease table
const leasePrefix = "code-review-sync:"

// CommitConsumer receives the commits of a pass; the cursor only moves when it returns nil
type CommitConsumer func(ctx context.Context, repo *domain.Repository, commits []*domain.CommitRecord) error

// CommentConsumer receives the comments of a pass; the cursor only moves when it returns nil
type CommentConsumer func(ctx context.Context, repo *domain.Repository, page int, comments []*domain.CommentRecord) error

// Syncer defines the interface for running synchronization passes
type Syncer interface {
	// SyncCommits delivers the commits after the cursor and advances it to the newest one
	SyncCommits(ctx context.Context, repo *domain.Repository, consume CommitConsumer) (*domain.SyncPass, error)

	// SyncComments delivers the current comment page and moves to the next page once it is full
	SyncComments(ctx context.Context, repo *domain.Repository, consume CommentConsumer) (*domain.SyncPass, error)
}

// Cursors reads and writes synchronization progress
type Cursors interface {
	SetLastCommit(ctx context.Context, repo *domain.Repository, hash string) error
	CommentPage(ctx context.Context, repo *domain.Repository) (int, error)
	SetCommentPage(ctx context.Context, repo *domain.Repository, page int) error
}

// Leases serializes passes over the same repository across processes
type Leases interface {
	AcquireLease(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, holder string) error
}

// syncer implements the Syncer interface
type syncer struct {
	service  review.Service
	cursors  Cursors
	leases   Leases
	leaseTTL time.Duration
	logger   *slog.Logger
}

// NewSyncer creates a new syncer
func NewSyncer(service review.Service, cursors Cursors, leases Leases, leaseTTL time.Duration, logger *slog.Logger) Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &syncer{
		service:  service,
		cursors:  cursors,
		leases:   leases,
		leaseTTL: leaseTTL,
		logger:   logger,
	}
}

// SyncCommits delivers the commits after the cursor and advances it to the newest one
func (s *syncer) SyncCommits(ctx context.Context, repo *domain.Repository, consume CommitConsumer) (*domain.SyncPass, error) {
	pass := newPass(domain.PassKindCommits, repo)

	err := s.withLease(ctx, repo, pass.ID, func() error {
		// CommitsSince pulls before it bootstraps the cursor, so read it back afterwards
		commits, err := s.service.CommitsSince(ctx, repo, review.CommitsOptions{})
		if err != nil {
			return err
		}
		from, err := s.service.LastCommit(ctx, repo)
		if err != nil {
			return err
		}
		pass.FromCursor = from
		pass.ToCursor = from
		pass.Count = len(commits)
		if len(commits) == 0 {
			return nil
		}

		if err := consume(ctx, repo, commits); err != nil {
			return err
		}

		newest := commits[len(commits)-1].Hash
		if err := s.cursors.SetLastCommit(ctx, repo, newest); err != nil {
			return err
		}
		pass.ToCursor = newest
		pass.Advanced = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.finish(pass), nil
}

// SyncComments delivers the current comment page and moves to the next page once it is full
func (s *syncer) SyncComments(ctx context.Context, repo *domain.Repository, consume CommentConsumer) (*domain.SyncPass, error) {
	pass := newPass(domain.PassKindComments, repo)

	err := s.withLease(ctx, repo, pass.ID, func() error {
		page, err := s.cursors.CommentPage(ctx, repo)
		if err != nil {
			return err
		}
		pass.FromCursor = strconv.Itoa(page)
		pass.ToCursor = pass.FromCursor

		comments, err := s.service.CommentsAt(ctx, repo, page)
		if err != nil {
			return err
		}
		pass.Count = len(comments)

		if err := consume(ctx, repo, page, comments); err != nil {
			return err
		}

		// A partial page may still grow, so it is read again next time
		if len(comments) < collector.PageSize {
			return nil
		}
		if err := s.cursors.SetCommentPage(ctx, repo, page+1); err != nil {
			return err
		}
		pass.ToCursor = strconv.Itoa(page + 1)
		pass.Advanced = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.finish(pass), nil
}

func (s *syncer) withLease(ctx context.Context, repo *domain.Repository, holder string, fn func() error) error {
	name := leasePrefix + repo.FullName

	ok, err := s.leases.AcquireLease(ctx, name, holder, s.leaseTTL)
	if err != nil {
		return apperrors.NewInternalError("failed to acquire repository lease", err)
	}
	if !ok {
		return apperrors.NewLockedError(repo.FullName)
	}
	defer func() {
		// Release even when ctx was cancelled mid-pass
		if err := s.leases.ReleaseLease(context.WithoutCancel(ctx), name, holder); err != nil {
			s.logger.Warn("failed to release repository lease",
				slog.String("repo", repo.FullName),
				slog.String("error", err.Error()))
		}
	}()

	if err := fn(); err != nil {
		s.logger.Error("synchronization pass failed",
			slog.String("repo", repo.FullName),
			slog.String("pass", holder),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (s *syncer) finish(pass *domain.SyncPass) *domain.SyncPass {
	pass.FinishedAt = time.Now()
	s.logger.Info("synchronization pass complete",
		slog.String("repo", pass.Repo),
		slog.String("kind", string(pass.Kind)),
		slog.Int("count", pass.Count),
		slog.String("from", pass.FromCursor),
		slog.String("to", pass.ToCursor),
		slog.Duration("took", pass.FinishedAt.Sub(pass.StartedAt)))
	return pass
}

func newPass(kind domain.PassKind, repo *domain.Repository) *domain.SyncPass {
	return &domain.SyncPass{
		ID:        uuid.New().String(),
		Kind:      kind,
		Repo:      repo.FullName,
		StartedAt: time.Now(),
	}
}
