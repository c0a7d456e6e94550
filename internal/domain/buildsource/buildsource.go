package buildsource

import "fmt"

// Source selects where the build component of a version comes from.
type Source string

const (
	// SourceCommits uses the number of commits since the resolved tag.
	SourceCommits Source = "commits"
	// SourceTag uses the optional fourth component of the tag (v1.2.3.4).
	SourceTag Source = "tag"
	// SourceCounter uses an externally supplied build number, such as a CI run id.
	SourceCounter Source = "counter"
)

// Default returns the default build source (commits since tag).
func Default() Source {
	return SourceCommits
}

// Parse converts a string into a Source value. An empty string yields the default.
func Parse(value string) (Source, error) {
	switch Source(value) {
	case "":
		return Default(), nil
	case SourceCommits, SourceTag, SourceCounter:
		return Source(value), nil
	default:
		return "", fmt.Errorf("invalid build source %q", value)
	}
}

// String returns the textual representation. Defaults to "commits" for unknown values.
func (s Source) String() string {
	switch s {
	case SourceCommits, SourceTag, SourceCounter:
		return string(s)
	default:
		return string(SourceCommits)
	}
}
