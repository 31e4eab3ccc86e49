// Package review turns local git history and remote commit comments into
// records for code review tooling.
//
// Callers must not run two passes over the same repository at once: the
// working copy is mutated in place by pull and clone.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/kurihiro0119/github-review-sync/internal/collector"
	"github.com/kurihiro0119/github-review-sync/internal/domain"
	apperrors "github.com/kurihiro0119/github-review-sync/internal/errors"
	"github.com/kurihiro0119/github-review-sync/internal/vcs"
)

var commitHash = regexp.MustCompile(`^[0-9a-fA-F]{4,64}$`)

// Runner executes git commands in a repository working copy
type Runner interface {
	Run(ctx context.Context, repo *domain.Repository, args []string, opts ...vcs.RunOption) (string, error)
}

// Cursors reads and writes synchronization progress
type Cursors interface {
	LastCommit(ctx context.Context, repo *domain.Repository) (string, error)
	SetLastCommit(ctx context.Context, repo *domain.Repository, hash string) error
	CommentPage(ctx context.Context, repo *domain.Repository) (int, error)
}

// CommitsOptions tunes a CommitsSince call; the zero value pulls and merges identities
type CommitsOptions struct {
	From         string // start after this commit; empty means the persisted cursor
	SkipIdentity bool
	SkipPull     bool
}

// Service defines the synchronization operations over one repository
type Service interface {
	// LastCommit returns the commit cursor, bootstrapping and persisting it when unset
	LastCommit(ctx context.Context, repo *domain.Repository) (string, error)

	// CommitsSince returns the commits after the cursor, oldest first
	CommitsSince(ctx context.Context, repo *domain.Repository, opts CommitsOptions) ([]*domain.CommitRecord, error)

	// CommentsAt returns one page of commit comments with their diff context;
	// page < 1 means the persisted comment page
	CommentsAt(ctx context.Context, repo *domain.Repository, page int) ([]*domain.CommentRecord, error)
}

// Options configures a Service
type Options struct {
	CatchUpCommits int
	Logger         *slog.Logger
}

// service implements the Service interface
type service struct {
	runner     Runner
	cursors    Cursors
	remote     collector.Collector
	identities *collector.IdentityBatcher
	catchUp    int
	logger     *slog.Logger
}

// NewService creates a new review service
func NewService(runner Runner, cursors Cursors, remote collector.Collector, opts Options) Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &service{
		runner:     runner,
		cursors:    cursors,
		remote:     remote,
		identities: collector.NewIdentityBatcher(remote),
		catchUp:    max(opts.CatchUpCommits, 1),
		logger:     logger,
	}
}

// LastCommit returns the commit cursor, bootstrapping and persisting it when unset
func (s *service) LastCommit(ctx context.Context, repo *domain.Repository) (string, error) {
	hash, err := s.cursors.LastCommit(ctx, repo)
	if err != nil {
		return "", err
	}
	if hash != "" {
		return hash, nil
	}

	out, err := s.runner.Run(ctx, repo,
		[]string{"rev-parse", "--verify", "--quiet", fmt.Sprintf("HEAD~%d", s.catchUp-1)},
		vcs.WithFallback("rev-list", "--max-parents=0", "HEAD"))
	if err != nil {
		return "", err
	}

	// rev-list lists every root, newest first
	lines := splitLines(out)
	if len(lines) == 0 {
		return "", apperrors.NewCommandFailedError(repo.FullName, "rev-parse HEAD", fmt.Errorf("no commits found"))
	}
	hash = lines[len(lines)-1]

	s.logger.Info("bootstrapped commit cursor",
		slog.String("repo", repo.FullName),
		slog.String("commit", hash),
		slog.Int("catch_up_commits", s.catchUp))

	if err := s.cursors.SetLastCommit(ctx, repo, hash); err != nil {
		return "", err
	}
	return hash, nil
}

// CommitsSince returns the commits after the cursor, oldest first
func (s *service) CommitsSince(ctx context.Context, repo *domain.Repository, opts CommitsOptions) ([]*domain.CommitRecord, error) {
	if !opts.SkipPull {
		if err := s.pull(ctx, repo); err != nil {
			return nil, err
		}
	}

	from := opts.From
	if from == "" {
		var err error
		if from, err = s.LastCommit(ctx, repo); err != nil {
			return nil, err
		}
	}
	if strings.HasPrefix(from, "-") {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("invalid commit %q", from))
	}
	revRange := from + ".."

	var lookup map[string]domain.Identity
	if !opts.SkipIdentity && s.remote != nil {
		out, err := s.runner.Run(ctx, repo, []string{"log", revRange, "--pretty=%H"})
		if err != nil {
			return nil, err
		}
		if lookup, err = s.identities.IdentitiesFor(ctx, repo, splitLines(out)); err != nil {
			return nil, err
		}
	}

	raw, err := s.runner.Run(ctx, repo, []string{"log", revRange, "--pretty=" + logFormat})
	if err != nil {
		return nil, err
	}

	entries, anomalies := parseLog(raw)
	for _, anomaly := range anomalies {
		s.logger.Warn("skipping malformed log record",
			slog.String("repo", repo.FullName),
			slog.String("error", anomaly.Error()))
	}

	records := make([]*domain.CommitRecord, 0, len(entries))
	for _, entry := range entries {
		record := &domain.CommitRecord{
			Hash:    entry.Hash,
			Name:    entry.Name,
			Email:   entry.Email,
			Subject: entry.Subject,
			Body:    entry.Body,
			Date:    entry.Date,
		}

		diff, _ := s.runner.Run(ctx, repo, []string{"show", "--format=%b", entry.Hash}, vcs.AllowFailure())
		record.Diff, record.DiffTruncated = truncateDiff(diff, utf8.RuneCountInString(entry.Body))

		if identity, ok := lookup[entry.Hash]; ok {
			record.MergeIdentity(identity)
		}
		records = append(records, record)
	}

	// git lists newest first
	slices.Reverse(records)
	return records, nil
}

// CommentsAt returns one page of commit comments with their diff context
func (s *service) CommentsAt(ctx context.Context, repo *domain.Repository, page int) ([]*domain.CommentRecord, error) {
	if s.remote == nil {
		return nil, apperrors.NewInternalError("no remote client configured", nil)
	}
	if err := s.pull(ctx, repo); err != nil {
		return nil, err
	}

	if page < 1 {
		var err error
		if page, err = s.cursors.CommentPage(ctx, repo); err != nil {
			return nil, err
		}
	}

	comments, err := s.remote.ListCommitComments(ctx, repo, page)
	if err != nil {
		return nil, err
	}

	for _, comment := range comments {
		if !comment.HasDiffAnchor() {
			continue
		}
		if content, ok := s.lineContent(ctx, repo, comment); ok {
			comment.LineContent = &content
		}
	}

	return comments, nil
}

// lineContent extracts the diff lines around the comment position
func (s *service) lineContent(ctx context.Context, repo *domain.Repository, comment *domain.CommentRecord) (string, bool) {
	if !commitHash.MatchString(comment.CommitHash) {
		s.logger.Warn("comment has invalid commit id",
			slog.String("repo", repo.FullName),
			slog.Int64("comment_id", comment.ID))
		return "", false
	}

	diff, _ := s.runner.Run(ctx, repo, []string{
		"diff", comment.CommitHash + "~1", comment.CommitHash, "--", *comment.Path,
	}, vcs.AllowFailure())
	if diff == "" {
		return "", false
	}

	return diffSnippet(diff, *comment.Position)
}

// pull refreshes the working copy. A failed pull leaves the current history in
// place; only a working copy that cannot be cloned is an error.
func (s *service) pull(ctx context.Context, repo *domain.Repository) error {
	_, err := s.runner.Run(ctx, repo, []string{"pull", "--quiet"}, vcs.AllowFailure())
	return err
}
