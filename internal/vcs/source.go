// Package vcs resolves the version-control state a build descriptor is computed from.
package vcs

import (
	"context"
	"errors"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultTagPattern matches tags such as v1.2.3 and v1.2.3.4.
const DefaultTagPattern = "v[0-9]*"

const tagRefPrefix = "refs/tags/"

// ErrNoTagFound indicates no tag matching the configured patterns is reachable from the build commit.
var ErrNoTagFound = errors.New("vcs: no matching version tag found")

// RawTagInfo captures the version-control facts a descriptor is derived from.
type RawTagInfo struct {
	// Tag is the tag name as found, without the refs/tags/ prefix.
	Tag string
	// CommitsSinceTag counts commits reachable from Commit but not from Tag.
	CommitsSinceTag int
	// Dirty reports uncommitted modifications to tracked files.
	Dirty bool
	// Commit is the full hash of the build commit.
	Commit string
	// Fallback is set when Tag holds a configured default instead of a real tag.
	Fallback bool
}

// Source describes a version-control backend able to locate the nearest version tag.
type Source interface {
	// Resolve returns the nearest ancestor tag matching any of the glob patterns.
	// When no tag matches it returns ErrNoTagFound together with an info value
	// whose Commit and Dirty fields are still populated.
	Resolve(ctx context.Context, patterns []string) (RawTagInfo, error)
}

// NormalizePatterns trims the provided patterns and falls back to DefaultTagPattern.
func NormalizePatterns(patterns []string) []string {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		cleaned = append(cleaned, trimmed)
	}
	if len(cleaned) == 0 {
		return []string{DefaultTagPattern}
	}
	return cleaned
}

// MatchesAny reports whether the tag name matches at least one glob pattern.
// Patterns follow git describe --match: no separator is special, so "*" and
// "?" also match "/". Invalid patterns never match.
func MatchesAny(name string, patterns []string) bool {
	name = strings.TrimPrefix(name, tagRefPrefix)
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			continue
		}
		if g.Match(name) {
			return true
		}
	}
	return false
}
