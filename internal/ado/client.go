package ado

import (
	"context"
	"strings"
)

// Ref represents a Git ref returned by Azure DevOps.
type Ref struct {
	Name     string
	ObjectID string
	// PeeledObjectID is the commit an annotated tag points at. Empty for lightweight tags.
	PeeledObjectID string
}

// CommitID returns the commit the ref resolves to, peeling annotated tags.
func (r Ref) CommitID() string {
	if peeled := strings.TrimSpace(r.PeeledObjectID); peeled != "" {
		return peeled
	}
	return strings.TrimSpace(r.ObjectID)
}

// CommitDiff summarizes how a target commit relates to a base tag.
type CommitDiff struct {
	// AheadCount is the number of commits in the target that are not in the base.
	AheadCount int
	// BehindCount is the number of commits in the base that are not in the target.
	BehindCount int
	// CommonCommit is the merge base of the two versions.
	CommonCommit string
}

// Client describes the Azure DevOps Git operations required to resolve version tags.
type Client interface {
	// ListRefsWithPrefix returns refs whose names start with the provided prefix
	// (e.g. "refs/tags/"). Annotated tags are returned with their peeled commit.
	ListRefsWithPrefix(ctx context.Context, prefix string) ([]Ref, error)

	// CompareTagToCommit returns ahead/behind counts of commitSHA relative to the named tag.
	CompareTagToCommit(ctx context.Context, tag string, commitSHA string) (CommitDiff, error)
}
