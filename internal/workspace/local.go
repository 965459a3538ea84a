// internal/workspace/local.go
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	lerrors "lvcs/internal/errors"
	"lvcs/internal/patch"
	"lvcs/internal/safe"

	"go.uber.org/zap"
)

// LocalWorkspace is the materialized projection of the current patch.
// Entries share storage with their objects, so they are read-only at rest
// and are made writable only right before removal.
type LocalWorkspace struct {
	Root   string
	Safe   *safe.Safe
	Logger *zap.Logger
}

func NewLocalWorkspace(root string, s *safe.Safe, logger *zap.Logger) *LocalWorkspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalWorkspace{
		Root:   root,
		Safe:   s,
		Logger: logger,
	}
}

// Path maps a manifest path to its location in the working tree.
func (w *LocalWorkspace) Path(rel string) string {
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

// Link materializes one entry.
func (w *LocalWorkspace) Link(e patch.Entry) error {
	if err := w.Safe.Materialize(e.Fingerprint, w.Path(e.Path)); err != nil {
		return fmt.Errorf("linking %s: %w", e.Path, err)
	}
	return nil
}

// Unlink removes one entry and prunes parent directories left empty.
// A missing entry is not an error so an interrupted switch can be rerun.
func (w *LocalWorkspace) Unlink(rel string) error {
	full := w.Path(rel)

	if err := os.Chmod(full, 0644); err != nil && !os.IsNotExist(err) {
		return lerrors.IO(full, err)
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return lerrors.IO(full, err)
	}

	w.prune(filepath.Dir(full))
	return nil
}

// prune removes empty directories from dir up to, not including, Root.
func (w *LocalWorkspace) prune(dir string) {
	root := filepath.Clean(w.Root)
	for dir != root && len(dir) > len(root) {
		if err := os.Remove(dir); err != nil {
			if !os.IsNotExist(err) {
				return
			}
		} else {
			w.Logger.Debug("pruned empty directory", zap.String("dir", dir))
		}
		dir = filepath.Dir(dir)
	}
}

// Teardown deletes the whole working tree, making entries writable first.
func (w *LocalWorkspace) Teardown() error {
	err := filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.Chmod(path, 0755)
		}
		if d.Type().IsRegular() {
			return os.Chmod(path, 0644)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return lerrors.IO(w.Root, err)
	}

	if err := os.RemoveAll(w.Root); err != nil {
		return lerrors.IO(w.Root, err)
	}
	return nil
}

// Scan returns the slash-separated paths of all regular files in the tree.
func (w *LocalWorkspace) Scan() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(w.Root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, lerrors.IO(w.Root, err)
	}
	sort.Strings(paths)
	return paths, nil
}
