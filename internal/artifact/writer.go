// Package artifact writes generated files so that readers only ever observe a
// complete previous or complete new version of the destination.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DefaultFileMode is the permission applied to generated artifacts.
const DefaultFileMode os.FileMode = 0o644

const dirMode os.FileMode = 0o755

// ErrIO marks every filesystem failure raised while writing an artifact.
var ErrIO = errors.New("artifact i/o error")

// IOError reports the failed filesystem operation and the path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

// Result describes the outcome of a write.
type Result struct {
	Path string
	// Unchanged is set when the destination already held identical bytes and was left alone.
	Unchanged bool
}

type tempFile interface {
	io.Writer
	Name() string
	Sync() error
	Close() error
}

type fileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	ReadFile(name string) ([]byte, error)
	CreateTemp(dir, pattern string) (tempFile, error)
	Chmod(name string, mode os.FileMode) error
	Rename(oldpath, newpath string) error
	Remove(name string) error
}

type osFS struct{}

func (osFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (osFS) ReadFile(name string) ([]byte, error)         { return os.ReadFile(name) }
func (osFS) Chmod(name string, mode os.FileMode) error    { return os.Chmod(name, mode) }
func (osFS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (osFS) Remove(name string) error                     { return os.Remove(name) }

func (osFS) CreateTemp(dir, pattern string) (tempFile, error) {
	return os.CreateTemp(dir, pattern)
}

// Writer replaces artifacts atomically: content goes to a temporary file in the
// destination directory which is renamed over the destination only once it is
// fully written and synced.
type Writer struct {
	fs     fileSystem
	mode   os.FileMode
	logger *zap.Logger
}

// NewWriter creates a Writer producing files with DefaultFileMode.
func NewWriter(logger *zap.Logger) Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Writer{fs: osFS{}, mode: DefaultFileMode, logger: logger}
}

// Write stores data at dest. On any error the previous content of dest, if
// any, is left untouched and no temporary file remains.
func (w Writer) Write(data []byte, dest string) (Result, error) {
	path := filepath.Clean(dest)
	result := Result{Path: path}
	dir := filepath.Dir(path)

	if existing, readErr := w.fs.ReadFile(path); readErr == nil && bytes.Equal(existing, data) {
		w.logger.Debug("artifact unchanged", zap.String("path", path))
		result.Unchanged = true
		return result, nil
	}

	if err := w.fs.MkdirAll(dir, dirMode); err != nil {
		return Result{}, &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := w.fs.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return Result{}, &IOError{Op: "create temp", Path: dir, Err: err}
	}
	tmpName := tmp.Name()
	closed := false
	committed := false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		if !committed {
			if rmErr := w.fs.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				w.logger.Warn("removing temporary artifact", zap.String("path", tmpName), zap.Error(rmErr))
			}
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return Result{}, &IOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return Result{}, &IOError{Op: "sync", Path: tmpName, Err: err}
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return Result{}, &IOError{Op: "close", Path: tmpName, Err: err}
	}
	if err := w.fs.Chmod(tmpName, w.mode); err != nil {
		return Result{}, &IOError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := w.fs.Rename(tmpName, path); err != nil {
		return Result{}, &IOError{Op: "rename", Path: path, Err: err}
	}
	committed = true

	w.logger.Debug("artifact written", zap.String("path", path), zap.Int("bytes", len(data)))
	return result, nil
}
