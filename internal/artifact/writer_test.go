package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingFS struct {
	osFS
	failRename bool
	failWrite  bool
	temps      []string
}

type failingTemp struct {
	*os.File
	failWrite bool
}

func (f failingTemp) Write(p []byte) (int, error) {
	if f.failWrite {
		half := len(p) / 2
		n, _ := f.File.Write(p[:half])
		return n, errors.New("disk full")
	}
	return f.File.Write(p)
}

func (f *failingFS) CreateTemp(dir, pattern string) (tempFile, error) {
	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	f.temps = append(f.temps, file.Name())
	return failingTemp{File: file, failWrite: f.failWrite}, nil
}

func (f *failingFS) Rename(oldpath, newpath string) error {
	if f.failRename {
		return errors.New("rename refused")
	}
	return os.Rename(oldpath, newpath)
}

func TestWriteCreatesDestinationAndDirectories(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "include", "AppMeta", "meta.h")
	w := NewWriter(nil)

	res, err := w.Write([]byte("#define X 1\n"), dest)
	require.NoError(t, err)
	assert.False(t, res.Unchanged)
	assert.Equal(t, dest, res.Path)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "#define X 1\n", string(data))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, DefaultFileMode, info.Mode().Perm())

	assertNoTempFiles(t, filepath.Dir(dest))
}

func TestWriteReplacesExistingContent(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "meta.h")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o600))

	_, err := NewWriter(nil).Write([]byte("new"), dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestWriteSkipsIdenticalContent(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "meta.go")
	require.NoError(t, os.WriteFile(dest, []byte("same"), 0o600))
	before, err := os.Stat(dest)
	require.NoError(t, err)

	res, err := NewWriter(nil).Write([]byte("same"), dest)
	require.NoError(t, err)
	assert.True(t, res.Unchanged)

	after, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
	assert.Equal(t, before.Mode(), after.Mode())
}

func TestWriteFailureLeavesPreviousArtifact(t *testing.T) {
	t.Parallel()

	cases := map[string]*failingFS{
		"rename": {failRename: true},
		"write":  {failWrite: true},
	}

	for name, fs := range cases {
		dir := t.TempDir()
		dest := filepath.Join(dir, "meta.h")
		original := []byte("#define APPMETA_VERSION_STR \"1.0.0\"\n")
		require.NoError(t, os.WriteFile(dest, original, 0o600))

		w := Writer{fs: fs, mode: DefaultFileMode, logger: zap.NewNop()}

		_, err := w.Write([]byte("#define APPMETA_VERSION_STR \"2.0.0\"\n"), dest)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrIO), name)

		var ioErr *IOError
		require.True(t, errors.As(err, &ioErr), name)
		assert.NotEmpty(t, ioErr.Path, name)

		data, readErr := os.ReadFile(dest)
		require.NoError(t, readErr)
		assert.Equal(t, original, data, name)

		require.Len(t, fs.temps, 1, name)
		_, statErr := os.Stat(fs.temps[0])
		assert.True(t, errors.Is(statErr, os.ErrNotExist), "%s: temp file should be removed", name)
		assertNoTempFiles(t, dir)
	}
}

func TestWriteReportsDirectoryFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file, not dir"), 0o600))

	_, err := NewWriter(nil).Write([]byte("x"), filepath.Join(blocker, "meta.h"))
	require.Error(t, err)

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "mkdir", ioErr.Op)
	assert.Equal(t, blocker, ioErr.Path)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
