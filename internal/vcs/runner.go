// Package vcs runs git subcommands against the local working copy of a
// remote repository, cloning it on first use.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kurihiro0119/github-review-sync/internal/domain"
	apperrors "github.com/kurihiro0119/github-review-sync/internal/errors"
)

// Options configures a Runner
type Options struct {
	RepoDir      string // parent directory of all working copies
	GitBinary    string
	RemoteHost   string
	AccessToken  string
	PrivateClone bool // embed AccessToken in clone URLs
	Logger       *slog.Logger
}

// Runner executes git commands inside repository working copies
type Runner struct {
	repoDir  string
	gitPath  string
	cloneURL func(repo *domain.Repository) string
	logger   *slog.Logger
}

// NewRunner creates a runner from opts
func NewRunner(opts Options) *Runner {
	gitPath := opts.GitBinary
	if gitPath == "" {
		gitPath = "git"
	}
	host := opts.RemoteHost
	if host == "" {
		host = "github.com"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		repoDir: opts.RepoDir,
		gitPath: gitPath,
		logger:  logger,
	}
	r.cloneURL = func(repo *domain.Repository) string {
		if opts.PrivateClone && opts.AccessToken != "" {
			return fmt.Sprintf("https://%s@%s/%s.git", opts.AccessToken, host, repo.FullName)
		}
		return fmt.Sprintf("https://%s/%s.git", host, repo.FullName)
	}
	return r
}

// WithCloneURL replaces how clone URLs are built, e.g. to clone from a mirror
func (r *Runner) WithCloneURL(fn func(repo *domain.Repository) string) *Runner {
	r.cloneURL = fn
	return r
}

// CloneURL returns the URL the working copy of repo is cloned from
func (r *Runner) CloneURL(repo *domain.Repository) string {
	return r.cloneURL(repo)
}

// Path returns the working copy location of repo
func (r *Runner) Path(repo *domain.Repository) string {
	if repo.Path != "" {
		return repo.Path
	}
	return filepath.Join(r.repoDir, repo.CleanName())
}

type runConfig struct {
	fallback     []string
	allowFailure bool
}

// RunOption customizes a single Run call
type RunOption func(*runConfig)

// WithFallback runs args instead when the primary command fails
func WithFallback(args ...string) RunOption {
	return func(c *runConfig) {
		c.fallback = args
	}
}

// AllowFailure makes Run log a failing command and return its output instead of an error
func AllowFailure() RunOption {
	return func(c *runConfig) {
		c.allowFailure = true
	}
}

// EnsureWorkingCopy clones repo if its working copy does not exist yet
func (r *Runner) EnsureWorkingCopy(ctx context.Context, repo *domain.Repository) error {
	path := r.Path(repo)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return apperrors.NewCloneFailedError(repo.FullName, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.NewCloneFailedError(repo.FullName, err)
	}

	cloneURL := r.cloneURL(repo)
	r.logger.Info("cloning repository",
		slog.String("repo", repo.FullName),
		slog.String("url", redactURL(cloneURL)),
		slog.String("path", path))

	args := []string{"clone", cloneURL, path}
	cmd := exec.CommandContext(ctx, r.gitPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		cmdErr := newCommandError([]string{"clone", redactURL(cloneURL), path}, filepath.Dir(path), redactToken(stderr.String(), cloneURL), err)
		return apperrors.NewCloneFailedError(repo.FullName, cmdErr)
	}
	return nil
}

// Run executes git args in the working copy of repo and returns its trimmed stdout
func (r *Runner) Run(ctx context.Context, repo *domain.Repository, args []string, opts ...RunOption) (string, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := r.EnsureWorkingCopy(ctx, repo); err != nil {
		return "", err
	}

	path := r.Path(repo)
	out, err := r.exec(ctx, path, args)
	if err != nil && len(cfg.fallback) > 0 {
		out, err = r.exec(ctx, path, cfg.fallback)
	}

	if err != nil {
		command := strings.Join(args, " ")
		r.logger.Warn("failed to run git command",
			slog.String("repo", repo.FullName),
			slog.String("command", command),
			slog.String("path", path),
			slog.Int("exit_code", ExitCode(err)))

		if !cfg.allowFailure {
			return "", apperrors.NewCommandFailedError(repo.FullName, command, err)
		}
	}

	return strings.TrimSpace(out), nil
}

func (r *Runner) exec(ctx context.Context, dir string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, r.gitPath, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), newCommandError(args, dir, stderr.String(), err)
	}
	return stdout.String(), nil
}

// redactURL strips credentials from a clone URL before it is logged
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}

func redactToken(text, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return text
	}
	return strings.ReplaceAll(text, u.User.String(), "***")
}
