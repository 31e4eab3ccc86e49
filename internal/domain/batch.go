package domain

import "time"

// PassKind identifies what a synchronization pass consumed
type PassKind string

const (
	PassKindCommits  PassKind = "commits"
	PassKindComments PassKind = "comments"
)

// SyncPass summarizes one synchronization pass over a repository
type SyncPass struct {
	ID         string    `json:"id"`
	Kind       PassKind  `json:"kind"`
	Repo       string    `json:"repo"`
	Count      int       `json:"count"`
	FromCursor string    `json:"from_cursor"`
	ToCursor   string    `json:"to_cursor"`
	Advanced   bool      `json:"advanced"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
