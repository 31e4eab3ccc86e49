// Package vcstest builds throwaway git repositories for tests.
package vcstest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// BaseTime is the author/committer epoch of the first commit made by a Repo
const BaseTime int64 = 1700000000

// Repo is a git repository in a temporary directory
type Repo struct {
	t       testing.TB
	Dir     string
	commits int
}

// NewRepo initializes an empty repository
func NewRepo(t testing.TB) *Repo {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	r := &Repo{t: t, Dir: t.TempDir()}
	r.Git("init", "--quiet")
	return r
}

// Git runs a git command in the repository and returns its trimmed output
func (r *Repo) Git(args ...string) string {
	r.t.Helper()
	return r.GitEnv(nil, args...)
}

// GitEnv runs a git command with extra environment variables
func (r *Repo) GitEnv(env []string, args ...string) string {
	r.t.Helper()

	full := append([]string{
		"-c", "user.name=Test User",
		"-c", "user.email=test@example.com",
		"-c", "commit.gpgsign=false",
		"-c", "init.defaultBranch=main",
	}, args...)
	cmd := exec.Command("git", full...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), "GIT_CONFIG_NOSYSTEM=1")
	cmd.Env = append(cmd.Env, env...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// Commit writes files, commits everything with message and returns the new hash.
// Commit n (starting at 0) is dated BaseTime+n*60.
func (r *Repo) Commit(message string, files map[string]string) string {
	r.t.Helper()

	for name, content := range files {
		path := filepath.Join(r.Dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			r.t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			r.t.Fatalf("write %s: %v", name, err)
		}
	}

	date := fmt.Sprintf("@%d +0000", r.CommitTime(r.commits))
	env := []string{"GIT_AUTHOR_DATE=" + date, "GIT_COMMITTER_DATE=" + date}
	r.Git("add", "-A")
	r.GitEnv(env, "commit", "--quiet", "--allow-empty", "-m", message)
	r.commits++

	return r.Git("rev-parse", "HEAD")
}

// CommitTime returns the epoch used for the n-th commit
func (r *Repo) CommitTime(n int) int64 {
	return BaseTime + int64(n)*60
}
