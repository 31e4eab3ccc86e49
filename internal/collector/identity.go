package collector

import (
	"context"

	"github.com/kurihiro0119/github-review-sync/internal/domain"
)

// IdentityBatcher resolves remote author/committer identities for local commit hashes.
//
// Each batch seeds one remote listing with its first hash only; the listing walks
// history from there, so hashes of a batch usually appear in it. Hashes that do
// not appear simply have no entry in the result.
type IdentityBatcher struct {
	remote    Collector
	batchSize int
}

// NewIdentityBatcher creates a batcher issuing one remote lookup per PageSize hashes
func NewIdentityBatcher(remote Collector) *IdentityBatcher {
	return &IdentityBatcher{remote: remote, batchSize: PageSize}
}

// IdentitiesFor returns the remote identities keyed by commit hash
func (b *IdentityBatcher) IdentitiesFor(ctx context.Context, repo *domain.Repository, hashes []string) (map[string]domain.Identity, error) {
	lookup := make(map[string]domain.Identity)

	for start := 0; start < len(hashes); start += b.batchSize {
		batch := hashes[start:min(start+b.batchSize, len(hashes))]

		commits, err := b.remote.ListCommitsFrom(ctx, repo, batch[0])
		if err != nil {
			return nil, err
		}
		for _, commit := range commits {
			lookup[commit.SHA] = commit.Identity
		}
	}

	return lookup, nil
}
