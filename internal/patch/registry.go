package patch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lerrors "lvcs/internal/errors"

	"github.com/google/uuid"
)

const ext = ".json"

// Registry stores manifests as <dir>/<tag>.json. Manifests are write-once.
type Registry struct {
	dir string
}

func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

func (r *Registry) path(tag string) string {
	return filepath.Join(r.dir, tag+ext)
}

func (r *Registry) Exists(tag string) (bool, error) {
	_, err := os.Stat(r.path(tag))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, lerrors.IO(r.path(tag), err)
}

// Create persists m under tag. It fails with PatchAlreadyExists if the tag
// is taken; the manifest file appears atomically or not at all.
func (r *Registry) Create(tag string, m Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding patch %s: %w", tag, err)
	}

	tmp := filepath.Join(r.dir, ".staging-"+uuid.New().String())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return lerrors.IO(tmp, err)
	}
	defer os.Remove(tmp)

	// A hardlink fails if the target exists, which gives create-exclusive
	// semantics without exposing a half-written file.
	if err := os.Link(tmp, r.path(tag)); err != nil {
		if os.IsExist(err) {
			return lerrors.PatchAlreadyExists(tag)
		}
		return lerrors.IO(r.path(tag), err)
	}
	return nil
}

func (r *Registry) Load(tag string) (Manifest, error) {
	data, err := os.ReadFile(r.path(tag))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lerrors.PatchNotFound(tag)
		}
		return nil, lerrors.IO(r.path(tag), err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding patch %s: %w", tag, err)
	}
	if m == nil {
		m = Manifest{}
	}
	return m, nil
}

func (r *Registry) Delete(tag string) error {
	if err := os.Remove(r.path(tag)); err != nil {
		if os.IsNotExist(err) {
			return lerrors.PatchNotFound(tag)
		}
		return lerrors.IO(r.path(tag), err)
	}
	return nil
}

// List returns all tags, sorted.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, lerrors.IO(r.dir, err)
	}

	tags := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		tags = append(tags, strings.TrimSuffix(name, ext))
	}
	sort.Strings(tags)
	return tags, nil
}

// Walk loads every manifest except skip and calls fn until it returns false.
func (r *Registry) Walk(skip string, fn func(tag string, m Manifest) bool) error {
	tags, err := r.List()
	if err != nil {
		return err
	}
	for _, tag := range tags {
		if tag == skip {
			continue
		}
		m, err := r.Load(tag)
		if err != nil {
			return err
		}
		if !fn(tag, m) {
			return nil
		}
	}
	return nil
}
