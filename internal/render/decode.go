package render

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	semver "github.com/blang/semver/v4"

	"github.com/launchbynttdata/metagen/internal/domain/descriptor"
)

var (
	cDefinePattern = regexp.MustCompile(`^\s*#define\s+([A-Za-z_][A-Za-z0-9_]*)\s+(.+?)\s*$`)
	goConstPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.+?)\s*$`)
)

// goConstNames maps the identifiers of the Go layout to artifact keys.
var goConstNames = map[string]Placeholder{
	"BuildCommit":    PlaceholderBuildCommit,
	"BuildDate":      PlaceholderBuildDate,
	"BuildSnapshot":  PlaceholderBuildSnapshot,
	"VersionBuild":   PlaceholderVersionBuild,
	"VersionFullStr": PlaceholderVersionFullStr,
	"VersionMajor":   PlaceholderVersionMajor,
	"VersionMinor":   PlaceholderVersionMinor,
	"VersionPatch":   PlaceholderVersionPatch,
	"VersionStr":     PlaceholderVersionStr,
}

// artifactKeys are the constants every artifact defines, longest first so
// suffix matching prefers VERSION_FULL_STR over shorter keys.
var artifactKeys = func() []Placeholder {
	keys := make([]Placeholder, 0, len(goConstNames))
	for _, key := range goConstNames {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// Decode reads the constants of an artifact rendered with a built-in layout
// back into a Descriptor. Custom templates are not supported.
func Decode(layout Layout, text string) (descriptor.Descriptor, error) {
	values := make(map[Placeholder]string, len(artifactKeys))
	for _, line := range strings.Split(text, "\n") {
		key, raw, ok := decodeLine(layout, line)
		if !ok {
			continue
		}
		values[key] = raw
	}

	for _, key := range artifactKeys {
		if _, ok := values[key]; !ok {
			return descriptor.Descriptor{}, fmt.Errorf("artifact is missing %s", key)
		}
	}

	return buildDescriptor(values)
}

func decodeLine(layout Layout, line string) (Placeholder, string, bool) {
	if layout == LayoutGo {
		m := goConstPattern.FindStringSubmatch(line)
		if m == nil {
			return "", "", false
		}
		key, ok := goConstNames[m[1]]
		return key, m[2], ok
	}

	m := cDefinePattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	for _, key := range artifactKeys {
		name := m[1]
		if name == string(key) || strings.HasSuffix(name, "_"+string(key)) {
			return key, m[2], true
		}
	}
	return "", "", false
}

func buildDescriptor(values map[Placeholder]string) (descriptor.Descriptor, error) {
	var d descriptor.Descriptor
	var err error

	parts := make(map[Placeholder]uint64, 4)
	for _, key := range []Placeholder{PlaceholderVersionMajor, PlaceholderVersionMinor, PlaceholderVersionPatch, PlaceholderVersionBuild} {
		parts[key], err = strconv.ParseUint(values[key], 10, 64)
		if err != nil {
			return descriptor.Descriptor{}, fmt.Errorf("decoding %s: %w", key, err)
		}
	}
	d.Version = semver.Version{
		Major: parts[PlaceholderVersionMajor],
		Minor: parts[PlaceholderVersionMinor],
		Patch: parts[PlaceholderVersionPatch],
	}
	d.Build = parts[PlaceholderVersionBuild]

	d.Snapshot, err = strconv.ParseBool(values[PlaceholderBuildSnapshot])
	if err != nil {
		return descriptor.Descriptor{}, fmt.Errorf("decoding %s: %w", PlaceholderBuildSnapshot, err)
	}

	strs := make(map[Placeholder]string, 4)
	for _, key := range []Placeholder{PlaceholderVersionStr, PlaceholderVersionFullStr, PlaceholderBuildDate, PlaceholderBuildCommit} {
		strs[key], err = strconv.Unquote(values[key])
		if err != nil {
			return descriptor.Descriptor{}, fmt.Errorf("decoding %s: %w", key, err)
		}
	}

	d.BuildDate, err = time.Parse(descriptor.DateLayout, strs[PlaceholderBuildDate])
	if err != nil {
		return descriptor.Descriptor{}, fmt.Errorf("decoding %s: %w", PlaceholderBuildDate, err)
	}
	d.Commit = strs[PlaceholderBuildCommit]

	if got := d.VersionString(); got != strs[PlaceholderVersionStr] {
		return descriptor.Descriptor{}, fmt.Errorf("artifact %s %q disagrees with components %s", PlaceholderVersionStr, strs[PlaceholderVersionStr], got)
	}
	if got := d.FullVersionString(); got != strs[PlaceholderVersionFullStr] {
		return descriptor.Descriptor{}, fmt.Errorf("artifact %s %q disagrees with snapshot flag (%s)", PlaceholderVersionFullStr, strs[PlaceholderVersionFullStr], got)
	}

	return d, nil
}
