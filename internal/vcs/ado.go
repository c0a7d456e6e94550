package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	semver "github.com/blang/semver/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/launchbynttdata/metagen/internal/ado"
)

const defaultCompareConcurrency = 4

// ErrEmptyCommit is returned when the ADO source has no build commit to resolve against.
var ErrEmptyCommit = errors.New("vcs: build commit sha is empty")

// ADOSource resolves tags through the Azure DevOps Git API. It serves CI checkouts
// that are shallow or fetched without tags. The working tree is reported clean.
type ADOSource struct {
	client      ado.Client
	commit      string
	concurrency int
	logger      *zap.Logger
}

// NewADOSource creates an ADOSource resolving the nearest tag for commitSHA.
func NewADOSource(client ado.Client, commitSHA string, logger *zap.Logger) ADOSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return ADOSource{
		client:      client,
		commit:      strings.TrimSpace(commitSHA),
		concurrency: defaultCompareConcurrency,
		logger:      logger,
	}
}

type tagCandidate struct {
	ref     ado.Ref
	name    string
	version semver.Version
	ahead   int
	behind  int
}

// Resolve implements Source.
func (s ADOSource) Resolve(ctx context.Context, patterns []string) (RawTagInfo, error) {
	if s.client == nil {
		return RawTagInfo{}, errors.New("vcs: nil ado client")
	}
	if s.commit == "" {
		return RawTagInfo{}, ErrEmptyCommit
	}

	info := RawTagInfo{Commit: s.commit}

	refs, err := s.client.ListRefsWithPrefix(ctx, tagRefPrefix)
	if err != nil {
		return RawTagInfo{}, fmt.Errorf("listing tags: %w", err)
	}

	candidates := filterCandidates(refs, NormalizePatterns(patterns))
	if len(candidates) == 0 {
		return info, ErrNoTagFound
	}

	if err := s.compareAll(ctx, candidates); err != nil {
		return RawTagInfo{}, err
	}

	best := nearestAncestor(candidates)
	if best == nil {
		return info, ErrNoTagFound
	}

	info.Tag = best.name
	info.CommitsSinceTag = best.ahead

	s.logger.Debug("ado state resolved",
		zap.String("tag", info.Tag),
		zap.Int("commitsSinceTag", info.CommitsSinceTag),
		zap.Int("candidates", len(candidates)),
		zap.String("commit", info.Commit),
	)
	return info, nil
}

func (s ADOSource) compareAll(ctx context.Context, candidates []*tagCandidate) error {
	g, gCtx := errgroup.WithContext(ctx)
	limit := s.concurrency
	if limit <= 0 {
		limit = defaultCompareConcurrency
	}
	g.SetLimit(limit)

	for _, c := range candidates {
		if strings.EqualFold(c.ref.CommitID(), s.commit) {
			continue
		}
		g.Go(func() error {
			diff, err := s.client.CompareTagToCommit(gCtx, c.name, s.commit)
			if err != nil {
				return fmt.Errorf("comparing tag %s: %w", c.name, err)
			}
			c.ahead = diff.AheadCount
			c.behind = diff.BehindCount
			return nil
		})
	}

	return g.Wait()
}

func filterCandidates(refs []ado.Ref, patterns []string) []*tagCandidate {
	var out []*tagCandidate
	for _, ref := range refs {
		name := strings.TrimPrefix(strings.TrimSpace(ref.Name), tagRefPrefix)
		if name == "" || !MatchesAny(name, patterns) {
			continue
		}
		version, _ := semver.ParseTolerant(name)
		out = append(out, &tagCandidate{ref: ref, name: name, version: version})
	}
	return out
}

// nearestAncestor picks the ancestor tag with the fewest commits in between,
// preferring the higher version when two tags sit on the same commit.
func nearestAncestor(candidates []*tagCandidate) *tagCandidate {
	var best *tagCandidate
	for _, c := range candidates {
		if c.behind != 0 {
			continue
		}
		switch {
		case best == nil:
			best = c
		case c.ahead < best.ahead:
			best = c
		case c.ahead == best.ahead && c.version.GT(best.version):
			best = c
		}
	}
	return best
}
