// Package patch holds the snapshot model: a manifest maps each content
// fingerprint to the single relative path it occupies in a snapshot.
//
// Because the fingerprint is the key, byte-identical files inside one
// snapshot collapse into a single entry and only one of their paths is kept.
package patch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// Manifest maps fingerprint -> slash-separated relative path.
type Manifest map[string]string

// Entry is one file of a snapshot.
type Entry struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
}

// Build folds entries into a manifest in order; on a fingerprint collision
// the later entry wins.
func Build(entries []Entry) Manifest {
	m := make(Manifest, len(entries))
	for _, e := range entries {
		m[e.Fingerprint] = e.Path
	}
	return m
}

// Entries returns the manifest sorted by path.
func (m Manifest) Entries() []Entry {
	entries := make([]Entry, 0, len(m))
	for fp, path := range m {
		entries = append(entries, Entry{Path: path, Fingerprint: fp})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries
}

func (m Manifest) Fingerprints() []string {
	fps := make([]string, 0, len(m))
	for fp := range m {
		fps = append(fps, fp)
	}
	sort.Strings(fps)
	return fps
}

// ByPath inverts the manifest.
func (m Manifest) ByPath() map[string]string {
	paths := make(map[string]string, len(m))
	for fp, path := range m {
		paths[path] = fp
	}
	return paths
}

// ListFiles walks root and returns every regular file as an entry with
// only its relative path set. Directories, symlinks and other special
// files are skipped.
func ListFiles(root string) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		entries = append(entries, Entry{Path: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return entries, nil
}
