// Package descriptor computes the version/build descriptor rendered into generated artifacts.
package descriptor

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	semver "github.com/blang/semver/v4"

	"github.com/launchbynttdata/metagen/internal/domain/buildsource"
	"github.com/launchbynttdata/metagen/internal/vcs"
)

// SnapshotSuffix is the pre-release identifier attached to snapshot builds.
const SnapshotSuffix = "SNAPSHOT"

// DateLayout is the ISO-8601 calendar date layout used for BuildDate.
const DateLayout = "2006-01-02"

// DefaultVersion is applied when no tag can be found.
const DefaultVersion = "0.0.0"

// ErrMalformedTag indicates a tag that does not encode <int>.<int>.<int>[.<int>].
var ErrMalformedTag = errors.New("malformed tag")

// tagPattern accepts an optional alphabetic prefix such as "v" or "release-".
var tagPattern = regexp.MustCompile(`^[A-Za-z_\-/]*(\d+)\.(\d+)\.(\d+)(?:\.(\d+))?$`)

var commitPattern = regexp.MustCompile(`^[0-9a-fA-F]*$`)

// TagError reports the tag string that could not be parsed.
type TagError struct {
	Tag string
	Err error
}

func (e *TagError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed tag %q: %v", e.Tag, e.Err)
	}
	return fmt.Sprintf("malformed tag %q: expected <int>.<int>.<int>[.<int>]", e.Tag)
}

func (e *TagError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedTag}
	}
	return []error{ErrMalformedTag, e.Err}
}

// Tag is a parsed version tag.
type Tag struct {
	Version semver.Version
	// Build is the optional fourth component; HasBuild reports whether it was present.
	Build    uint64
	HasBuild bool
}

// ParseTag parses a tag of the form [prefix]<int>.<int>.<int>[.<int>].
func ParseTag(name string) (Tag, error) {
	trimmed := strings.TrimSpace(name)
	trimmed = strings.TrimPrefix(trimmed, "refs/tags/")

	m := tagPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Tag{}, &TagError{Tag: name}
	}

	var parts [4]uint64
	for i := 1; i < len(m); i++ {
		if m[i] == "" {
			continue
		}
		n, err := strconv.ParseUint(m[i], 10, 64)
		if err != nil {
			return Tag{}, &TagError{Tag: name, Err: err}
		}
		parts[i-1] = n
	}

	return Tag{
		Version:  semver.Version{Major: parts[0], Minor: parts[1], Patch: parts[2]},
		Build:    parts[3],
		HasBuild: m[4] != "",
	}, nil
}

// Options controls how a descriptor is computed from raw version-control state.
type Options struct {
	BuildSource buildsource.Source
	// BuildNumber is used when BuildSource is buildsource.SourceCounter.
	BuildNumber uint64
}

// Descriptor is the normalized version/build metadata of one generator run.
type Descriptor struct {
	Version   semver.Version
	Build     uint64
	Snapshot  bool
	BuildDate time.Time
	Commit    string
}

// Compute derives a Descriptor from version-control state and the current time.
func Compute(raw vcs.RawTagInfo, now time.Time, opts Options) (Descriptor, error) {
	tag, err := ParseTag(raw.Tag)
	if err != nil {
		return Descriptor{}, err
	}

	if raw.CommitsSinceTag < 0 {
		return Descriptor{}, fmt.Errorf("negative commit count %d for tag %q", raw.CommitsSinceTag, raw.Tag)
	}

	if !commitPattern.MatchString(raw.Commit) {
		return Descriptor{}, fmt.Errorf("invalid commit hash %q", raw.Commit)
	}

	var build uint64
	switch opts.BuildSource {
	case buildsource.SourceTag:
		build = tag.Build
	case buildsource.SourceCounter:
		build = opts.BuildNumber
	default:
		build = uint64(raw.CommitsSinceTag)
	}

	return Descriptor{
		Version:   tag.Version,
		Build:     build,
		Snapshot:  raw.Fallback || raw.CommitsSinceTag > 0 || raw.Dirty,
		BuildDate: truncateToDay(now),
		Commit:    raw.Commit,
	}, nil
}

// VersionString returns "major.minor.patch".
func (d Descriptor) VersionString() string {
	core := d.Version
	core.Pre = nil
	core.Build = nil
	return core.String()
}

// FullVersionString returns VersionString with "-SNAPSHOT" appended for snapshot builds.
func (d Descriptor) FullVersionString() string {
	if !d.Snapshot {
		return d.VersionString()
	}
	full := d.Version
	full.Pre = []semver.PRVersion{{VersionStr: SnapshotSuffix}}
	full.Build = nil
	return full.String()
}

// BuildDateString returns the build date formatted as YYYY-MM-DD.
func (d Descriptor) BuildDateString() string {
	return d.BuildDate.Format(DateLayout)
}

func truncateToDay(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, t.Location())
}
