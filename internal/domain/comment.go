package domain

import "time"

// CommentRecord represents a remote commit comment with its diff context
type CommentRecord struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Login       *string   `json:"login,omitempty"`
	Position    *int      `json:"position,omitempty"`
	Line        *int      `json:"line,omitempty"`
	Path        *string   `json:"path,omitempty"`
	CommitHash  string    `json:"commit_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Body        string    `json:"body"`
	LineContent *string   `json:"line_content,omitempty"`
}

// HasDiffAnchor reports whether the comment points at a position inside a file diff
func (c *CommentRecord) HasDiffAnchor() bool {
	return c.Path != nil && *c.Path != "" && c.Position != nil
}
