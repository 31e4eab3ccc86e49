package review

import "strings"

const (
	// MaxDiffLength bounds a commit diff, in characters, on top of the commit body length
	MaxDiffLength = 8000

	diffHeader = "diff --git"

	// lines before the first hunk line of a single-file diff
	diffPreamble  = 5
	snippetRadius = 3
)

// truncateDiff bounds diff to MaxDiffLength+bodyLength characters and drops
// everything before the first diff header. When the limit cut the diff, the
// last (probably partial) line is dropped too. A diff without any header
// yields an empty, untruncated diff.
func truncateDiff(diff string, bodyLength int) (string, bool) {
	if diff == "" {
		return "", false
	}

	limit := MaxDiffLength + bodyLength
	runes := []rune(diff)
	truncated := len(runes) > limit
	if truncated {
		runes = runes[:limit]
	}

	lines := strings.Split(strings.TrimSpace(string(runes)), "\n")

	start := -1
	for i, line := range lines {
		if strings.HasPrefix(line, diffHeader) {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}
	lines = lines[start:]

	if truncated {
		lines = lines[:len(lines)-1]
	}

	return strings.Join(lines, "\n"), truncated
}

// diffSnippet returns the lines of diff around a comment position, counting
// position from the end of the diff preamble
func diffSnippet(diff string, position int) (string, bool) {
	lines := strings.Split(diff, "\n")

	center := position + diffPreamble
	start := max(center-snippetRadius, diffPreamble)
	finish := min(center+snippetRadius, len(lines)-1)
	if start > finish {
		return "", false
	}

	return strings.Join(lines[start:finish+1], "\n"), true
}
