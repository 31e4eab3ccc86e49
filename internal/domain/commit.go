package domain

import "time"

// Identity holds the remote account data attached to a commit
type Identity struct {
	AuthorLogin    string
	AuthorID       int64
	CommitterLogin string
	CommitterID    int64
}

// CommitRecord represents a single commit parsed from local history
type CommitRecord struct {
	Hash          string    `json:"hash"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	Date          time.Time `json:"date"`
	Diff          string    `json:"diff"`
	DiffTruncated bool      `json:"diff_truncated"`

	// Remote identity; nil when the remote lookup had no matching commit
	AuthorLogin    *string `json:"author_login,omitempty"`
	AuthorID       *int64  `json:"author_id,omitempty"`
	CommitterLogin *string `json:"committer_login,omitempty"`
	CommitterID    *int64  `json:"committer_id,omitempty"`
}

// MergeIdentity copies the remote identity fields onto the record
func (c *CommitRecord) MergeIdentity(id Identity) {
	if id.AuthorLogin != "" {
		login := id.AuthorLogin
		c.AuthorLogin = &login
	}
	if id.AuthorID != 0 {
		authorID := id.AuthorID
		c.AuthorID = &authorID
	}
	if id.CommitterLogin != "" {
		login := id.CommitterLogin
		c.CommitterLogin = &login
	}
	if id.CommitterID != 0 {
		committerID := id.CommitterID
		c.CommitterID = &committerID
	}
}
