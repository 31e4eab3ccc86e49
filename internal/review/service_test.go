package review

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-review-sync/internal/collector"
	"github.com/kurihiro0119/github-review-sync/internal/cursor"
	"github.com/kurihiro0119/github-review-sync/internal/domain"
	apperrors "github.com/kurihiro0119/github-review-sync/internal/errors"
	"github.com/kurihiro0119/github-review-sync/internal/vcs"
	"github.com/kurihiro0119/github-review-sync/internal/vcs/vcstest"
)

type memoryKV map[string]string

func (m memoryKV) Get(_ context.Context, namespace, key string) (string, bool, error) {
	v, ok := m[namespace+"/"+key]
	return v, ok, nil
}

func (m memoryKV) Set(_ context.Context, namespace, key, value string) error {
	m[namespace+"/"+key] = value
	return nil
}

func (m memoryKV) Delete(_ context.Context, namespace, key string) error {
	delete(m, namespace+"/"+key)
	return nil
}

type fakeRemote struct {
	comments      []*domain.CommentRecord
	commits       map[string][]collector.RemoteCommit
	commentsErr   error
	requestedPage int
	seeds         []string
}

func (f *fakeRemote) ListCommitComments(_ context.Context, _ *domain.Repository, page int) ([]*domain.CommentRecord, error) {
	f.requestedPage = page
	return f.comments, f.commentsErr
}

func (f *fakeRemote) ListCommitsFrom(_ context.Context, _ *domain.Repository, sha string) ([]collector.RemoteCommit, error) {
	f.seeds = append(f.seeds, sha)
	return f.commits[sha], nil
}

type fixture struct {
	source  *vcstest.Repo
	repo    *domain.Repository
	cursors *cursor.Store
	remote  *fakeRemote
	runner  *vcs.Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	source := vcstest.NewRepo(t)
	runner := vcs.NewRunner(vcs.Options{RepoDir: filepath.Join(t.TempDir(), "repos")}).
		WithCloneURL(func(*domain.Repository) string { return source.Dir })

	return &fixture{
		source:  source,
		repo:    &domain.Repository{FullName: "acme/widgets"},
		cursors: cursor.NewStore(memoryKV{}),
		remote:  &fakeRemote{},
		runner:  runner,
	}
}

func (f *fixture) service(catchUp int) Service {
	return NewService(f.runner, f.cursors, f.remote, Options{CatchUpCommits: catchUp})
}

func hashesOf(records []*domain.CommitRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Hash
	}
	return out
}

func TestCommitsSinceBootstrapsCursor(t *testing.T) {
	tests := []struct {
		name       string
		catchUp    int
		wantCursor int // index into commits
		wantHashes []int
	}{
		{name: "catch up one", catchUp: 1, wantCursor: 2, wantHashes: nil},
		{name: "catch up two", catchUp: 2, wantCursor: 1, wantHashes: []int{2}},
		{name: "zero counts as one", catchUp: 0, wantCursor: 2, wantHashes: nil},
		{name: "longer than history falls back to root", catchUp: 10, wantCursor: 0, wantHashes: []int{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			commits := []string{
				f.source.Commit("A", map[string]string{"a.txt": "a\n"}),
				f.source.Commit("B", map[string]string{"b.txt": "b\n"}),
				f.source.Commit("C", map[string]string{"c.txt": "c\n"}),
			}

			records, err := f.service(tt.catchUp).CommitsSince(context.Background(), f.repo, CommitsOptions{})
			require.NoError(t, err)

			var want []string
			for _, i := range tt.wantHashes {
				want = append(want, commits[i])
			}
			assert.Equal(t, len(want), len(records))
			if len(want) > 0 {
				assert.Equal(t, want, hashesOf(records))
			}

			stored, err := f.cursors.LastCommit(context.Background(), f.repo)
			require.NoError(t, err)
			assert.Equal(t, commits[tt.wantCursor], stored)
		})
	}
}

func TestLastCommitTwoCommitRepository(t *testing.T) {
	f := newFixture(t)
	root := f.source.Commit("root", nil)
	f.source.Commit("second", nil)

	hash, err := f.service(10).LastCommit(context.Background(), f.repo)
	require.NoError(t, err)
	assert.Equal(t, root, hash)
}

func TestLastCommitPrefersStoredCursor(t *testing.T) {
	f := newFixture(t)
	f.source.Commit("root", nil)
	require.NoError(t, f.cursors.SetLastCommit(context.Background(), f.repo, "abc123"))

	hash, err := f.service(1).LastCommit(context.Background(), f.repo)
	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)
}

func TestCommitsSinceRecords(t *testing.T) {
	f := newFixture(t)
	root := f.source.Commit("root", map[string]string{"README.md": "hello\n"})
	second := f.source.Commit("Add widget\n\nWidgets are | great & <fun>.\nSecond line.", map[string]string{"src/widget.rb": "class Widget\nend\n"})
	third := f.source.Commit("Tweak widget", map[string]string{"src/widget.rb": "class Widget\n  def spin; end\nend\n"})

	f.remote.commits = map[string][]collector.RemoteCommit{
		third: {{SHA: third, Identity: domain.Identity{AuthorLogin: "sam", AuthorID: 1, CommitterLogin: "web-flow", CommitterID: 19864447}}},
	}

	records, err := f.service(1).CommitsSince(context.Background(), f.repo, CommitsOptions{From: root})
	require.NoError(t, err)
	require.Equal(t, []string{second, third}, hashesOf(records), "oldest first")

	assert.Equal(t, []string{third}, f.remote.seeds)

	first := records[0]
	assert.Equal(t, "Test User", first.Name)
	assert.Equal(t, "test@example.com", first.Email)
	assert.Equal(t, "Add widget", first.Subject)
	assert.Equal(t, "Add widget\n\nWidgets are | great & <fun>.\nSecond line.", first.Body)
	assert.Equal(t, time.Unix(f.source.CommitTime(1), 0).UTC(), first.Date)
	assert.True(t, strings.HasPrefix(first.Diff, "diff --git a/src/widget.rb b/src/widget.rb"), first.Diff)
	assert.Contains(t, first.Diff, "+class Widget")
	assert.False(t, first.DiffTruncated)
	assert.Nil(t, first.AuthorLogin, "missing remote identity leaves fields absent")
	assert.Nil(t, first.AuthorID)
	assert.Nil(t, first.CommitterLogin)
	assert.Nil(t, first.CommitterID)

	last := records[1]
	require.NotNil(t, last.AuthorLogin)
	assert.Equal(t, "sam", *last.AuthorLogin)
	assert.Equal(t, int64(1), *last.AuthorID)
	assert.Equal(t, "web-flow", *last.CommitterLogin)
	assert.Equal(t, int64(19864447), *last.CommitterID)
	assert.True(t, last.Date.After(first.Date))
}

func TestCommitsSinceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.source.Commit("root", nil)
	head := f.source.Commit("head", nil)
	svc := f.service(1)

	for i := 0; i < 2; i++ {
		records, err := svc.CommitsSince(context.Background(), f.repo, CommitsOptions{From: head})
		require.NoError(t, err)
		assert.Empty(t, records)
	}
	assert.Empty(t, f.remote.seeds)
}

func TestCommitsSincePullsNewCommits(t *testing.T) {
	f := newFixture(t)
	head := f.source.Commit("root", nil)
	svc := f.service(1)

	records, err := svc.CommitsSince(context.Background(), f.repo, CommitsOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)

	next := f.source.Commit("pushed later", map[string]string{"later.txt": "x\n"})

	records, err = svc.CommitsSince(context.Background(), f.repo, CommitsOptions{From: head, SkipPull: true})
	require.NoError(t, err)
	assert.Empty(t, records, "working copy is stale without a pull")

	records, err = svc.CommitsSince(context.Background(), f.repo, CommitsOptions{From: head})
	require.NoError(t, err)
	assert.Equal(t, []string{next}, hashesOf(records))
}

func TestCommitsSinceTruncatesLargeDiffs(t *testing.T) {
	f := newFixture(t)
	root := f.source.Commit("root", nil)

	var big strings.Builder
	for big.Len() < 3*MaxDiffLength {
		big.WriteString("a line of generated content that keeps going\n")
	}
	f.source.Commit("Add big file", map[string]string{"big.txt": big.String()})

	records, err := f.service(1).CommitsSince(context.Background(), f.repo, CommitsOptions{From: root, SkipIdentity: true})
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.True(t, records[0].DiffTruncated)
	assert.LessOrEqual(t, len([]rune(records[0].Diff)), MaxDiffLength+len(records[0].Body))
	assert.True(t, strings.HasPrefix(records[0].Diff, "diff --git a/big.txt b/big.txt"))
	assert.True(t, strings.HasSuffix(records[0].Diff, "+a line of generated content that keeps going"), "ends on a whole line")
	assert.Empty(t, f.remote.seeds)
}

func TestCommitsSinceEmptyDiff(t *testing.T) {
	f := newFixture(t)
	root := f.source.Commit("root", nil)
	f.source.Commit("empty commit\n\nwith a body", nil)

	records, err := f.service(1).CommitsSince(context.Background(), f.repo, CommitsOptions{From: root, SkipIdentity: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Diff)
	assert.False(t, records[0].DiffTruncated)
}

func TestCommitsSinceUnknownCursorFails(t *testing.T) {
	f := newFixture(t)
	f.source.Commit("root", nil)

	_, err := f.service(1).CommitsSince(context.Background(), f.repo, CommitsOptions{
		From:         "0123456789abcdef0123456789abcdef01234567",
		SkipIdentity: true,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCommandFailed(err))
}

func TestCommitsSinceRejectsOptionLikeCursor(t *testing.T) {
	f := newFixture(t)
	f.source.Commit("root", nil)

	_, err := f.service(1).CommitsSince(context.Background(), f.repo, CommitsOptions{From: "--output=/tmp/x"})
	assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.CodeOf(err))
}

func TestCommitsSinceCloneFailure(t *testing.T) {
	f := newFixture(t)
	f.runner.WithCloneURL(func(*domain.Repository) string { return filepath.Join(t.TempDir(), "nowhere") })

	_, err := f.service(1).CommitsSince(context.Background(), f.repo, CommitsOptions{})
	assert.True(t, apperrors.IsCloneFailed(err))
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestCommentsAt(t *testing.T) {
	f := newFixture(t)
	root := f.source.Commit("root", map[string]string{"src/x.rb": numberedFile(1, 30)})
	change := f.source.Commit("change", map[string]string{"src/x.rb": numberedFile(1, 10) + "changed\n" + numberedFile(12, 30)})

	f.remote.comments = []*domain.CommentRecord{
		{ID: 1, CommitHash: change, Path: strPtr("src/x.rb"), Position: intPtr(10), Body: "anchored"},
		{ID: 2, CommitHash: change, Body: "general"},
		{ID: 3, CommitHash: root, Path: strPtr("src/x.rb"), Position: intPtr(1), Body: "root has no parent"},
		{ID: 4, CommitHash: "--output=/tmp/x", Path: strPtr("src/x.rb"), Position: intPtr(1), Body: "hostile"},
	}
	require.NoError(t, f.cursors.SetCommentPage(context.Background(), f.repo, 3))

	comments, err := f.service(1).CommentsAt(context.Background(), f.repo, 0)
	require.NoError(t, err)
	require.Len(t, comments, 4)
	assert.Equal(t, 3, f.remote.requestedPage, "defaults to the persisted page")

	diff := f.source.Git("diff", change+"~1", change, "--", "src/x.rb")
	lines := strings.Split(diff, "\n")
	require.NotNil(t, comments[0].LineContent)
	assert.Equal(t, strings.Join(lines[12:min(19, len(lines))], "\n"), *comments[0].LineContent)

	assert.Nil(t, comments[1].LineContent)
	assert.Nil(t, comments[2].LineContent)
	assert.Nil(t, comments[3].LineContent)
}

func TestCommentsAtExplicitPage(t *testing.T) {
	f := newFixture(t)
	f.source.Commit("root", nil)

	_, err := f.service(1).CommentsAt(context.Background(), f.repo, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, f.remote.requestedPage)

	page, err := f.cursors.CommentPage(context.Background(), f.repo)
	require.NoError(t, err)
	assert.Equal(t, 1, page, "the cursor is not advanced")
}

func TestCommentsAtRemoteFailure(t *testing.T) {
	f := newFixture(t)
	f.source.Commit("root", nil)
	f.remote.commentsErr = apperrors.NewRemoteLookupFailedError("list comments", errors.New("502"))

	_, err := f.service(1).CommentsAt(context.Background(), f.repo, 1)
	assert.True(t, apperrors.IsRemoteLookupFailed(err))
}

func numberedFile(from, to int) string {
	var b strings.Builder
	for i := from; i <= to; i++ {
		b.WriteString("line ")
		b.WriteString(strings.Repeat("*", i%3))
		b.WriteString(string(rune('a' + i%26)))
		b.WriteString("\n")
	}
	return b.String()
}
