// Package render turns a build descriptor into artifact text by substituting
// {{NAME}} placeholders drawn from a fixed set.
package render

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/launchbynttdata/metagen/internal/domain/descriptor"
)

// Placeholder names a value that templates may reference as {{NAME}}.
type Placeholder string

const (
	PlaceholderProjectName      Placeholder = "PROJECT_NAME"
	PlaceholderPrefix           Placeholder = "PREFIX"
	PlaceholderGuard            Placeholder = "GUARD"
	PlaceholderPackage          Placeholder = "PACKAGE"
	PlaceholderVersionStr       Placeholder = "VERSION_STR"
	PlaceholderVersionFullStr   Placeholder = "VERSION_FULL_STR"
	PlaceholderBuildDate        Placeholder = "BUILD_DATE"
	PlaceholderVersionMajor     Placeholder = "VERSION_MAJOR"
	PlaceholderVersionMinor     Placeholder = "VERSION_MINOR"
	PlaceholderVersionPatch     Placeholder = "VERSION_PATCH"
	PlaceholderVersionBuild     Placeholder = "VERSION_BUILD"
	PlaceholderBuildSnapshot    Placeholder = "BUILD_SNAPSHOT"
	PlaceholderBuildSnapshotInt Placeholder = "BUILD_SNAPSHOT_INT"
	PlaceholderBuildCommit      Placeholder = "BUILD_COMMIT"
)

// DefaultPackage is the Go package name used when none is configured.
const DefaultPackage = "meta"

const guardSuffix = "GENERATED_META_H"

var placeholders = []Placeholder{
	PlaceholderProjectName,
	PlaceholderPrefix,
	PlaceholderGuard,
	PlaceholderPackage,
	PlaceholderVersionStr,
	PlaceholderVersionFullStr,
	PlaceholderBuildDate,
	PlaceholderVersionMajor,
	PlaceholderVersionMinor,
	PlaceholderVersionPatch,
	PlaceholderVersionBuild,
	PlaceholderBuildSnapshot,
	PlaceholderBuildSnapshotInt,
	PlaceholderBuildCommit,
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// ErrTemplate indicates a template references a placeholder that has no value.
var ErrTemplate = errors.New("template error")

// TemplateError names the placeholder that could not be resolved.
type TemplateError struct {
	Placeholder string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: unknown placeholder {{%s}}", e.Placeholder)
}

func (e *TemplateError) Unwrap() error {
	return ErrTemplate
}

// Placeholders lists every recognized placeholder name.
func Placeholders() []Placeholder {
	return append([]Placeholder(nil), placeholders...)
}

// Options carries project-level values that are not part of the descriptor.
type Options struct {
	ProjectName string
	Package     string
}

// Fields maps every recognized placeholder to its value for the descriptor.
func Fields(d descriptor.Descriptor, opts Options) map[Placeholder]string {
	prefix := Prefix(opts.ProjectName)
	pkg := strings.TrimSpace(opts.Package)
	if pkg == "" {
		pkg = DefaultPackage
	}

	snapshotInt := "0"
	if d.Snapshot {
		snapshotInt = "1"
	}

	return map[Placeholder]string{
		PlaceholderProjectName:      strings.TrimSpace(opts.ProjectName),
		PlaceholderPrefix:           prefix,
		PlaceholderGuard:            prefix + guardSuffix,
		PlaceholderPackage:          pkg,
		PlaceholderVersionStr:       d.VersionString(),
		PlaceholderVersionFullStr:   d.FullVersionString(),
		PlaceholderBuildDate:        d.BuildDateString(),
		PlaceholderVersionMajor:     strconv.FormatUint(d.Version.Major, 10),
		PlaceholderVersionMinor:     strconv.FormatUint(d.Version.Minor, 10),
		PlaceholderVersionPatch:     strconv.FormatUint(d.Version.Patch, 10),
		PlaceholderVersionBuild:     strconv.FormatUint(d.Build, 10),
		PlaceholderBuildSnapshot:    strconv.FormatBool(d.Snapshot),
		PlaceholderBuildSnapshotInt: snapshotInt,
		PlaceholderBuildCommit:      d.Commit,
	}
}

// Prefix converts a project name into an upper-case identifier prefix ending
// with "_", e.g. "AppMeta" -> "APPMETA_". An empty name yields an empty prefix.
func Prefix(projectName string) string {
	name := strings.TrimSpace(projectName)
	if name == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range strings.ToUpper(name) {
		switch {
		case r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	b.WriteByte('_')
	return b.String()
}

// Render substitutes every {{NAME}} token in tmpl with its value from fields.
// The first token without a value fails the whole render with a *TemplateError.
func Render(fields map[Placeholder]string, tmpl string) (string, error) {
	var missing *TemplateError
	out := tokenPattern.ReplaceAllStringFunc(tmpl, func(token string) string {
		name := tokenPattern.FindStringSubmatch(token)[1]
		value, ok := fields[Placeholder(name)]
		if !ok {
			if missing == nil {
				missing = &TemplateError{Placeholder: name}
			}
			return token
		}
		return value
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}
