// internal/storage/archive/localfs.go
package archive

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/helmtrade/helm/internal/core"
)

const (
	dirMode  = 0o755
	fileMode = 0o644
)

// LocalFS archives decision records under a directory on the local
// filesystem. Paths are stored with forward slashes regardless of OS.
type LocalFS struct {
	root string
}

// NewLocalFS creates the root directory if needed and returns a store
// rooted there.
func NewLocalFS(root string) (*LocalFS, error) {
	if err := os.MkdirAll(root, dirMode); err != nil {
		return nil, core.WrapError(core.ErrArchiveIO, err)
	}
	return &LocalFS{root: root}, nil
}

func (l *LocalFS) resolve(path string) string {
	return filepath.Join(l.root, filepath.FromSlash(path))
}

func (l *LocalFS) Write(ctx context.Context, path string, data []byte) error {
	target := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
		return core.WrapError(core.ErrArchiveIO, err)
	}
	return os.WriteFile(target, data, fileMode)
}

func (l *LocalFS) Read(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(l.resolve(path))
}

// List walks every file under prefix and returns slash-separated paths
// relative to the root. A prefix that was never written is not an error.
func (l *LocalFS) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(l.resolve(prefix), func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return paths, err
}

func (l *LocalFS) Delete(ctx context.Context, path string) error {
	return os.Remove(l.resolve(path))
}

func (l *LocalFS) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(l.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
