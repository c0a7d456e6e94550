package config

import (
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProjectFileNames are looked up, in order, inside the work directory.
// JSON is a subset of YAML, so metagen.json files decode as well.
var ProjectFileNames = []string{"metagen.yaml", "metagen.yml", "metagen.json"}

// DotEnvFilename is loaded from the work directory when present.
const DotEnvFilename = ".env"

// ProjectFile holds per-project generator settings. Every field is optional;
// flags and environment variables take precedence.
type ProjectFile struct {
	// ProjectName prefixes C constants (AppMeta -> APPMETA_VERSION_STR).
	ProjectName string `yaml:"project_name" validate:"omitempty,max=64"`
	// Package is the Go package name for the go layout.
	Package string `yaml:"package" validate:"omitempty,max=64,goident"`
	// Layout selects the built-in layout: c or go.
	Layout string `yaml:"layout" validate:"omitempty,oneof=c go"`
	// Template overrides the built-in layout with a template file.
	Template string `yaml:"template"`
	// Destination is the artifact path, relative to the work directory.
	Destination string `yaml:"destination"`
	// TagPatterns are glob patterns selecting version tags.
	TagPatterns []string `yaml:"tag_patterns" validate:"omitempty,dive,required"`
	// DefaultVersion is used when no tag matches.
	DefaultVersion string `yaml:"default_version"`
	// BuildSource selects the VERSION_BUILD policy: commits, tag or counter.
	BuildSource string `yaml:"build_source" validate:"omitempty,oneof=commits tag counter"`
	// Source selects the version-control backend: git or ado.
	Source string `yaml:"source" validate:"omitempty,oneof=git ado"`
	// UTC computes the build date in UTC instead of local time.
	UTC bool `yaml:"utc"`
}

// LoadProjectFile reads the project file at path. When path is empty the
// ProjectFileNames are searched in dir; finding none yields an empty ProjectFile.
// The returned string is the file that was read, if any.
func LoadProjectFile(dir, path string) (ProjectFile, string, error) {
	explicit := strings.TrimSpace(path) != ""
	candidates := []string{path}
	if !explicit {
		candidates = candidates[:0]
		for _, name := range ProjectFileNames {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}

	for _, candidate := range candidates {
		contents, err := os.ReadFile(filepath.Clean(candidate))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && !explicit {
				continue
			}
			return ProjectFile{}, "", fmt.Errorf("read project file: %w", err)
		}

		var file ProjectFile
		if err := yaml.Unmarshal(contents, &file); err != nil {
			return ProjectFile{}, "", fmt.Errorf("unmarshal project file %s: %w", candidate, err)
		}

		if err := ValidateProjectFile(file); err != nil {
			return ProjectFile{}, "", fmt.Errorf("project file %s: %w", candidate, err)
		}

		return file, candidate, nil
	}

	return ProjectFile{}, "", nil
}

// ValidateProjectFile checks field formats.
func ValidateProjectFile(file ProjectFile) error {
	validate := validator.New()
	if err := validate.RegisterValidation("goident", isGoIdentifier); err != nil {
		return fmt.Errorf("registering validators: %w", err)
	}
	if err := validate.Struct(file); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func isGoIdentifier(fl validator.FieldLevel) bool {
	return token.IsIdentifier(fl.Field().String())
}

// LoadDotEnv loads dir/.env into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(dir string) (bool, error) {
	path := filepath.Join(dir, DotEnvFilename)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("load %s: %w", path, err)
	}
	return true, nil
}
