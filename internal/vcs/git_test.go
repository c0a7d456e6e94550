package vcs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCommit = "955d5574a1434e1e270dc661bb4ecdd849f541cd"

type scriptedRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
	dirs    []string
}

func (r *scriptedRunner) run(_ context.Context, dir string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	r.calls = append(r.calls, key)
	r.dirs = append(r.dirs, dir)
	if err, ok := r.errs[args[0]]; ok {
		return "", err
	}
	return r.outputs[args[0]], nil
}

func TestParseDescribe(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in    string
		tag   string
		count int
	}{
		{in: "v1.2.3-0-g955d557\n", tag: "v1.2.3", count: 0},
		{in: "v1.2.3-4-g955d557", tag: "v1.2.3", count: 4},
		{in: "release-v2.0.0-12-gabcdef0-dirty", tag: "release-v2.0.0", count: 12},
		{in: "v1.2.3.7-1-g1234567", tag: "v1.2.3.7", count: 1},
		{in: "release/2.0.0-0-g82cf41e", tag: "release/2.0.0", count: 0},
	}

	for _, tc := range cases {
		tag, count, err := ParseDescribe(tc.in)
		require.NoError(t, err, "parse %q", tc.in)
		assert.Equal(t, tc.tag, tag, "tag of %q", tc.in)
		assert.Equal(t, tc.count, count, "count of %q", tc.in)
	}
}

func TestParseDescribeRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "v1.2.3", "v1.2.3-x-gabc", "-1-gabc"} {
		_, _, err := ParseDescribe(in)
		assert.Error(t, err, "expected error for %q", in)
	}
}

func TestGitSourceResolvesTaggedState(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{outputs: map[string]string{
		"rev-parse": sampleCommit + "\n",
		"status":    " M main.c\n",
		"describe":  "v1.2.3-4-g955d557\n",
	}}
	src := NewGitSource("/work", runner.run, nil)

	info, err := src.Resolve(context.Background(), []string{"v*", " "})
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", info.Tag)
	assert.Equal(t, 4, info.CommitsSinceTag)
	assert.True(t, info.Dirty, "expected dirty working tree")
	assert.Equal(t, sampleCommit, info.Commit)

	assert.Equal(t, "describe --tags --long --match v* HEAD", runner.calls[len(runner.calls)-1])
	for _, dir := range runner.dirs {
		assert.Equal(t, "/work", dir)
	}
}

func TestGitSourceReportsNoTag(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{
		outputs: map[string]string{"rev-parse": sampleCommit, "status": ""},
		errs: map[string]error{"describe": &CommandError{
			Args:   []string{"describe"},
			Stderr: "fatal: No names found, cannot describe anything.",
			Err:    errors.New("exit status 128"),
		}},
	}
	src := NewGitSource(".", runner.run, nil)

	info, err := src.Resolve(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoTagFound)
	assert.Equal(t, sampleCommit, info.Commit)
	assert.False(t, info.Dirty)
	assert.Contains(t, runner.calls[2], "--match "+DefaultTagPattern)
}

func TestGitSourcePropagatesOtherFailures(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{errs: map[string]error{"rev-parse": &CommandError{
		Args:   []string{"rev-parse", "HEAD"},
		Stderr: "fatal: not a git repository",
		Err:    errors.New("exit status 128"),
	}}}
	src := NewGitSource(".", runner.run, nil)

	_, err := src.Resolve(context.Background(), nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoTagFound)
	assert.Contains(t, err.Error(), "not a git repository")
}

func TestMatchesAny(t *testing.T) {
	t.Parallel()

	patterns := []string{"v[0-9]*", "release-*"}
	assert.True(t, MatchesAny("refs/tags/v1.0.0", patterns))
	assert.True(t, MatchesAny("release-2", patterns))
	assert.False(t, MatchesAny("vnext", patterns))
	assert.False(t, MatchesAny("v1", []string{"["}), "invalid pattern should not match")
}

// git describe --match does not treat "/" specially, so neither does MatchesAny.
func TestMatchesAnyCrossesSlashes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		pattern string
		want    bool
	}{
		{name: "release/2.0.0", pattern: "release*", want: true},
		{name: "team/v1.2.3", pattern: "*v[0-9]*", want: true},
		{name: "a/b", pattern: "a?b", want: true},
		{name: "v1.2.3", pattern: "v[!0-9]*", want: false},
		{name: "vx", pattern: "v[!0-9]*", want: true},
		{name: "v1.2.3", pattern: "v1.2.3", want: true},
		{name: "v1x2x3", pattern: "v1.2.3", want: false},
		{name: "v*", pattern: `v\*`, want: true},
		{name: "v1", pattern: `v\*`, want: false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, MatchesAny(tc.name, []string{tc.pattern}), "%q against %q", tc.name, tc.pattern)
	}
}
