package descriptor

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchbynttdata/metagen/internal/domain/buildsource"
	"github.com/launchbynttdata/metagen/internal/vcs"
)

const sampleCommit = "955d5574a1434e1e270dc661bb4ecdd849f541cd"

var sampleNow = time.Date(2021, time.October, 25, 17, 42, 9, 0, time.UTC)

func TestParseTagAcceptsPrefixedVersions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in       string
		version  string
		build    uint64
		hasBuild bool
	}{
		{in: "v1.2.3", version: "1.2.3"},
		{in: "1.2.3", version: "1.2.3"},
		{in: "refs/tags/v10.20.30", version: "10.20.30"},
		{in: "release-2.0.1.17", version: "2.0.1", build: 17, hasBuild: true},
		{in: "release/2.0.0", version: "2.0.0"},
		{in: " V0.0.0 ", version: "0.0.0"},
	}

	for _, tc := range cases {
		tag, err := ParseTag(tc.in)
		require.NoError(t, err, "parse %q", tc.in)
		assert.Equal(t, tc.version, tag.Version.String(), "version of %q", tc.in)
		assert.Equal(t, tc.build, tag.Build, "build of %q", tc.in)
		assert.Equal(t, tc.hasBuild, tag.HasBuild, "hasBuild of %q", tc.in)
	}
}

func TestParseTagRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "v1.2", "v1.2.3-rc.1", "v1.2.3.4.5", "1.x.3", "v1..3", "v99999999999999999999.0.0"} {
		_, err := ParseTag(in)
		require.ErrorIs(t, err, ErrMalformedTag, "parse %q", in)

		var tagErr *TagError
		require.ErrorAs(t, err, &tagErr, "parse %q", in)
		assert.Equal(t, in, tagErr.Tag)
	}
}

func TestComputeVersionComponentsForAllTags(t *testing.T) {
	t.Parallel()

	for x := 0; x < 3; x++ {
		for y := 0; y < 12; y += 5 {
			for z := 0; z < 101; z += 50 {
				tag := fmt.Sprintf("v%d.%d.%d", x, y, z)
				d, err := Compute(vcs.RawTagInfo{Tag: tag}, sampleNow, Options{})
				require.NoError(t, err, "compute %s", tag)
				assert.Equal(t, uint64(x), d.Version.Major, tag)
				assert.Equal(t, uint64(y), d.Version.Minor, tag)
				assert.Equal(t, uint64(z), d.Version.Patch, tag)
				assert.Equal(t, tag[1:], d.VersionString())
			}
		}
	}
}

func TestComputeSnapshotRule(t *testing.T) {
	t.Parallel()

	cases := []struct {
		commits  int
		dirty    bool
		fallback bool
		snapshot bool
	}{
		{commits: 0, dirty: false, snapshot: false},
		{commits: 1, dirty: false, snapshot: true},
		{commits: 0, dirty: true, snapshot: true},
		{commits: 3, dirty: true, snapshot: true},
		{commits: 0, dirty: false, fallback: true, snapshot: true},
	}

	for _, tc := range cases {
		raw := vcs.RawTagInfo{Tag: "v1.2.3", CommitsSinceTag: tc.commits, Dirty: tc.dirty, Fallback: tc.fallback}
		d, err := Compute(raw, sampleNow, Options{})
		require.NoError(t, err, "compute %+v", raw)
		assert.Equal(t, tc.snapshot, d.Snapshot, "snapshot for %+v", raw)

		full := d.FullVersionString()
		assert.True(t, len(full) >= len(d.VersionString()) && full[:len(d.VersionString())] == d.VersionString(),
			"full version %s must start with %s", full, d.VersionString())
		if tc.snapshot {
			assert.Equal(t, d.VersionString()+"-SNAPSHOT", full)
		} else {
			assert.Equal(t, d.VersionString(), full)
		}
	}
}

func TestComputeReleaseExample(t *testing.T) {
	t.Parallel()

	raw := vcs.RawTagInfo{Tag: "v1.2.3", Commit: sampleCommit}
	d, err := Compute(raw, sampleNow, Options{})
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", d.VersionString())
	assert.Equal(t, "1.2.3", d.FullVersionString())
	assert.False(t, d.Snapshot, "exact clean tag must not be a snapshot")
	assert.Equal(t, "2021-10-25", d.BuildDateString())
	assert.Equal(t, sampleCommit, d.Commit)
}

func TestComputeSnapshotExample(t *testing.T) {
	t.Parallel()

	raw := vcs.RawTagInfo{Tag: "v1.2.3", CommitsSinceTag: 4, Dirty: true, Commit: sampleCommit}
	d, err := Compute(raw, sampleNow, Options{BuildSource: buildsource.SourceCommits})
	require.NoError(t, err)

	assert.Equal(t, "1.2.3-SNAPSHOT", d.FullVersionString())
	assert.Equal(t, uint64(4), d.Build)
	assert.True(t, d.Snapshot)
}

func TestComputeBuildSources(t *testing.T) {
	t.Parallel()

	raw := vcs.RawTagInfo{Tag: "v1.2.3.9", CommitsSinceTag: 2}

	cases := map[buildsource.Source]uint64{
		buildsource.SourceCommits: 2,
		buildsource.SourceTag:     9,
		buildsource.SourceCounter: 1234,
		"":                        2,
	}

	for source, want := range cases {
		d, err := Compute(raw, sampleNow, Options{BuildSource: source, BuildNumber: 1234})
		require.NoError(t, err, "compute %s", source)
		assert.Equal(t, want, d.Build, "build source %q", source)
	}
}

func TestComputeTruncatesToDayInClockLocation(t *testing.T) {
	t.Parallel()

	zone := time.FixedZone("UTC+9", 9*60*60)
	now := time.Date(2021, time.October, 25, 23, 59, 59, 0, time.UTC).In(zone)

	d, err := Compute(vcs.RawTagInfo{Tag: "v1.0.0"}, now, Options{})
	require.NoError(t, err)
	assert.Equal(t, "2021-10-26", d.BuildDateString())
	assert.Zero(t, d.BuildDate.Hour())
	assert.Zero(t, d.BuildDate.Minute())
}

func TestComputeRejectsMalformedTag(t *testing.T) {
	t.Parallel()

	_, err := Compute(vcs.RawTagInfo{Tag: "v1.2"}, sampleNow, Options{})
	assert.ErrorIs(t, err, ErrMalformedTag)
}

func TestComputeRejectsNonHexCommit(t *testing.T) {
	t.Parallel()

	_, err := Compute(vcs.RawTagInfo{Tag: "v1.0.0", Commit: `abc"; drop`}, sampleNow, Options{})
	assert.Error(t, err)
}
