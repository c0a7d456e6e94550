package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// noTagMarkers are git describe diagnostics meaning no tag matched.
var noTagMarkers = []string{
	"No names found",
	"No tags can describe",
	"cannot describe anything",
}

// Runner executes a git subcommand in dir and returns its stdout.
// Implementations return a *CommandError when git exits unsuccessfully.
type Runner func(ctx context.Context, dir string, args ...string) (string, error)

// CommandError reports a failed git invocation together with its stderr.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("git %s: %v: %s", strings.Join(e.Args, " "), e.Err, msg)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner runs the git binary found on PATH.
func ExecRunner(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &CommandError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// GitSource resolves tags from a local git working tree.
type GitSource struct {
	dir    string
	run    Runner
	logger *zap.Logger
}

// NewGitSource creates a GitSource operating in dir. A nil runner uses ExecRunner.
func NewGitSource(dir string, run Runner, logger *zap.Logger) GitSource {
	if run == nil {
		run = ExecRunner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return GitSource{dir: dir, run: run, logger: logger}
}

// Resolve implements Source.
func (s GitSource) Resolve(ctx context.Context, patterns []string) (RawTagInfo, error) {
	head, err := s.run(ctx, s.dir, "rev-parse", "HEAD")
	if err != nil {
		return RawTagInfo{}, fmt.Errorf("reading HEAD commit: %w", err)
	}

	status, err := s.run(ctx, s.dir, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return RawTagInfo{}, fmt.Errorf("reading working tree status: %w", err)
	}

	info := RawTagInfo{
		Commit: strings.TrimSpace(head),
		Dirty:  strings.TrimSpace(status) != "",
	}

	args := []string{"describe", "--tags", "--long"}
	for _, p := range NormalizePatterns(patterns) {
		args = append(args, "--match", p)
	}
	args = append(args, "HEAD")

	out, err := s.run(ctx, s.dir, args...)
	if err != nil {
		if isNoTag(err) {
			s.logger.Debug("git describe found no tag", zap.Error(err))
			return info, ErrNoTagFound
		}
		return RawTagInfo{}, fmt.Errorf("describing HEAD: %w", err)
	}

	tag, count, err := ParseDescribe(out)
	if err != nil {
		return RawTagInfo{}, err
	}
	info.Tag = tag
	info.CommitsSinceTag = count

	s.logger.Debug("git state resolved",
		zap.String("tag", info.Tag),
		zap.Int("commitsSinceTag", info.CommitsSinceTag),
		zap.Bool("dirty", info.Dirty),
		zap.String("commit", info.Commit),
	)
	return info, nil
}

// ParseDescribe splits `git describe --long` output of the form TAG-N-gHASH.
// Tags may contain dashes; the count and hash are taken from the right.
func ParseDescribe(output string) (string, int, error) {
	trimmed := strings.TrimSpace(output)
	trimmed = strings.TrimSuffix(trimmed, "-dirty")

	hashSep := strings.LastIndex(trimmed, "-g")
	if hashSep <= 0 {
		return "", 0, fmt.Errorf("unexpected git describe output %q", output)
	}
	rest := trimmed[:hashSep]

	countSep := strings.LastIndex(rest, "-")
	if countSep <= 0 {
		return "", 0, fmt.Errorf("unexpected git describe output %q", output)
	}

	count, err := strconv.Atoi(rest[countSep+1:])
	if err != nil || count < 0 {
		return "", 0, fmt.Errorf("unexpected commit count in git describe output %q", output)
	}

	return rest[:countSep], count, nil
}

func isNoTag(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	for _, marker := range noTagMarkers {
		if strings.Contains(cmdErr.Stderr, marker) {
			return true
		}
	}
	return false
}
