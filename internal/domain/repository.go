package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`(?i)[^a-z0-9]`)

// Repository represents a remote repository mirrored into a local working copy
type Repository struct {
	FullName string // owner/name
	Path     string // local working copy; empty means derived from the repo dir
}

// NewRepository creates a repository from its owner/name form
func NewRepository(fullName string) (*Repository, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid repository name %q: expected owner/name", fullName)
	}
	return &Repository{FullName: fullName}, nil
}

// Owner returns the owner part of the full name
func (r *Repository) Owner() string {
	owner, _, _ := strings.Cut(r.FullName, "/")
	return owner
}

// Name returns the name part of the full name
func (r *Repository) Name() string {
	_, name, _ := strings.Cut(r.FullName, "/")
	return name
}

// CleanName returns the full name with every character outside [a-zA-Z0-9] replaced by "_"
func (r *Repository) CleanName() string {
	return unsafeNameChars.ReplaceAllString(r.FullName, "_")
}
