package ado

import (
	"context"
	"errors"
	"fmt"
	"strings"

	azuredevops "github.com/microsoft/azure-devops-go-api/azuredevops/v7"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/git"
)

// Config controls how the Azure DevOps client connects to the Git API.
type Config struct {
	OrganizationURL string
	Project         string
	Repository      string
	Token           string
}

// NewClient constructs a Client backed by the official Azure DevOps Go SDK.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	if ctx == nil {
		return nil, errors.New("ado client: context is nil")
	}

	trimmed := sanitizeConfig(cfg)
	if err := validateConfig(trimmed); err != nil {
		return nil, err
	}

	connection := azuredevops.NewPatConnection(trimmed.OrganizationURL, trimmed.Token)
	gitClient, err := git.NewClient(ctx, connection)
	if err != nil {
		return nil, fmt.Errorf("creating git client: %w", err)
	}

	project := trimmed.Project
	repository := trimmed.Repository

	return &sdkClient{
		git:        gitClient,
		project:    &project,
		repository: &repository,
	}, nil
}

type sdkClient struct {
	git        git.Client
	project    *string
	repository *string
}

// ListRefsWithPrefix returns all refs whose names start with the provided prefix.
func (c *sdkClient) ListRefsWithPrefix(ctx context.Context, prefix string) ([]Ref, error) {
	filter := strings.TrimSpace(prefix)
	filter = strings.TrimPrefix(filter, "refs/")
	peel := true
	var continuation *string
	var results []Ref

	for {
		args := git.GetRefsArgs{
			Project:      c.project,
			RepositoryId: c.repository,
			PeelTags:     &peel,
		}
		if filter != "" {
			args.Filter = &filter
		}
		if continuation != nil {
			args.ContinuationToken = continuation
		}

		resp, err := c.git.GetRefs(ctx, args)
		if err != nil {
			return nil, fmt.Errorf("listing refs: %w", err)
		}
		if resp == nil {
			break
		}

		results = append(results, convertGitRefs(resp.Value)...)

		if resp.ContinuationToken == "" {
			break
		}
		token := resp.ContinuationToken
		continuation = &token
	}

	return results, nil
}

// CompareTagToCommit asks the commit-diffs API how far commitSHA is from tag.
func (c *sdkClient) CompareTagToCommit(ctx context.Context, tag string, commitSHA string) (CommitDiff, error) {
	base := strings.TrimPrefix(strings.TrimSpace(tag), "refs/tags/")
	if base == "" {
		return CommitDiff{}, errors.New("ado client: tag name is empty")
	}
	target := strings.TrimSpace(commitSHA)
	if target == "" {
		return CommitDiff{}, errors.New("ado client: commit sha is empty")
	}

	tagType := git.GitVersionTypeValues.Tag
	commitType := git.GitVersionTypeValues.Commit
	top := 0
	args := git.GetCommitDiffsArgs{
		Project:      c.project,
		RepositoryId: c.repository,
		Top:          &top,
		BaseVersionDescriptor: &git.GitBaseVersionDescriptor{
			BaseVersion:     &base,
			BaseVersionType: &tagType,
		},
		TargetVersionDescriptor: &git.GitTargetVersionDescriptor{
			TargetVersion:     &target,
			TargetVersionType: &commitType,
		},
	}

	resp, err := c.git.GetCommitDiffs(ctx, args)
	if err != nil {
		return CommitDiff{}, fmt.Errorf("comparing %s to %s: %w", base, target, err)
	}
	if resp == nil {
		return CommitDiff{}, fmt.Errorf("comparing %s to %s: empty response", base, target)
	}

	return CommitDiff{
		AheadCount:   derefInt(resp.AheadCount),
		BehindCount:  derefInt(resp.BehindCount),
		CommonCommit: strings.TrimSpace(derefString(resp.CommonCommit)),
	}, nil
}

func sanitizeConfig(cfg Config) Config {
	return Config{
		OrganizationURL: strings.TrimSpace(cfg.OrganizationURL),
		Project:         strings.TrimSpace(cfg.Project),
		Repository:      strings.TrimSpace(cfg.Repository),
		Token:           strings.TrimSpace(cfg.Token),
	}
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.OrganizationURL == "":
		return errors.New("ado client: organization url is required")
	case cfg.Project == "":
		return errors.New("ado client: project is required")
	case cfg.Repository == "":
		return errors.New("ado client: repository is required")
	case cfg.Token == "":
		return errors.New("ado client: token is required")
	default:
		return nil
	}
}

func convertGitRefs(values []git.GitRef) []Ref {
	if len(values) == 0 {
		return nil
	}
	refs := make([]Ref, 0, len(values))
	for _, r := range values {
		refs = append(refs, Ref{
			Name:           strings.TrimSpace(derefString(r.Name)),
			ObjectID:       strings.TrimSpace(derefString(r.ObjectId)),
			PeeledObjectID: strings.TrimSpace(derefString(r.PeeledObjectId)),
		})
	}
	return refs
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func derefInt(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}
