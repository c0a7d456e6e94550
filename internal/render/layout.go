package render

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed layouts/*.tmpl
var layoutFS embed.FS

// Layout selects one of the built-in artifact layouts.
type Layout string

const (
	// LayoutC renders a C/C++ header of #define constants.
	LayoutC Layout = "c"
	// LayoutGo renders a Go source file with a const block.
	LayoutGo Layout = "go"
)

// ParseLayout converts a string into a Layout. An empty string selects LayoutC.
func ParseLayout(value string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(value))) {
	case "", LayoutC:
		return LayoutC, nil
	case LayoutGo:
		return LayoutGo, nil
	default:
		return "", fmt.Errorf("invalid layout %q", value)
	}
}

func (l Layout) file() string {
	if l == LayoutGo {
		return "layouts/go.tmpl"
	}
	return "layouts/c.h.tmpl"
}

// DefaultDestination returns the artifact path used when none is configured.
func (l Layout) DefaultDestination() string {
	if l == LayoutGo {
		return "meta.go"
	}
	return "meta.h"
}

// Template returns the built-in template text of the layout.
func (l Layout) Template() (string, error) {
	data, err := layoutFS.ReadFile(l.file())
	if err != nil {
		return "", fmt.Errorf("reading built-in %s layout: %w", l, err)
	}
	return string(data), nil
}

// LoadTemplate reads the template at path, or the layout's built-in template when path is empty.
func LoadTemplate(path string, layout Layout) (string, error) {
	if strings.TrimSpace(path) == "" {
		return layout.Template()
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("reading template %s: %w", path, err)
	}
	return string(data), nil
}
