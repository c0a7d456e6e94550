package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProjectFileYAML(t *testing.T) {
	dir := t.TempDir()
	contents := `project_name: AppMeta
layout: c
destination: include/AppMeta/meta.h
tag_patterns:
  - "v[0-9]*"
build_source: tag
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metagen.yaml"), []byte(contents), 0o600))

	file, path, err := LoadProjectFile(dir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "metagen.yaml"), path)
	assert.Equal(t, "AppMeta", file.ProjectName)
	assert.Equal(t, "include/AppMeta/meta.h", file.Destination)
	assert.Equal(t, []string{"v[0-9]*"}, file.TagPatterns)
	assert.Equal(t, "tag", file.BuildSource)
}

func TestLoadProjectFileJSON(t *testing.T) {
	dir := t.TempDir()
	contents := `{"project_name": "AppMeta", "layout": "go", "package": "buildinfo"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metagen.json"), []byte(contents), 0o600))

	file, _, err := LoadProjectFile(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "go", file.Layout)
	assert.Equal(t, "buildinfo", file.Package)
}

func TestLoadProjectFileMissingIsEmpty(t *testing.T) {
	file, path, err := LoadProjectFile(t.TempDir(), "")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, ProjectFile{}, file)
}

func TestLoadProjectFileExplicitPathMustExist(t *testing.T) {
	_, _, err := LoadProjectFile("", filepath.Join(t.TempDir(), "custom.yaml"))
	require.Error(t, err)
}

func TestLoadProjectFileRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metagen.yml"), []byte("layout: rust\n"), 0o600))

	_, _, err := LoadProjectFile(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Layout")
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("METAGEN_TEST_DOTENV_A=from-file\nMETAGEN_TEST_DOTENV_B=from-file\n"), 0o600))
	t.Setenv("METAGEN_TEST_DOTENV_A", "from-env")
	t.Setenv("METAGEN_TEST_DOTENV_B", "")
	require.NoError(t, os.Unsetenv("METAGEN_TEST_DOTENV_B"))

	loaded, err := LoadDotEnv(dir)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "from-env", os.Getenv("METAGEN_TEST_DOTENV_A"))
	assert.Equal(t, "from-file", os.Getenv("METAGEN_TEST_DOTENV_B"))

	loaded, err = LoadDotEnv(t.TempDir())
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestLoadProjectFileRejectsInvalidPackage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metagen.yaml"), []byte("layout: go\npackage: my-pkg\n"), 0o600))

	_, _, err := LoadProjectFile(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Package")
}
