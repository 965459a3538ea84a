package patch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	lerrors "lvcs/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	t.Run("LastWriterWins", func(t *testing.T) {
		m := Build([]Entry{
			{Path: "a.bin", Fingerprint: "f1"},
			{Path: "b.bin", Fingerprint: "f2"},
			{Path: "copy-of-a.bin", Fingerprint: "f1"},
		})

		assert.Len(t, m, 2)
		assert.Equal(t, "copy-of-a.bin", m["f1"])
		assert.Equal(t, "b.bin", m["f2"])
	})

	t.Run("EntriesSortedByPath", func(t *testing.T) {
		m := Manifest{"f2": "z/b", "f1": "a", "f3": "m"}
		assert.Equal(t, []Entry{
			{Path: "a", Fingerprint: "f1"},
			{Path: "m", Fingerprint: "f3"},
			{Path: "z/b", Fingerprint: "f2"},
		}, m.Entries())
		assert.Equal(t, []string{"f1", "f2", "f3"}, m.Fingerprints())
		assert.Equal(t, "f2", m.ByPath()["z/b"])
	})
}

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.bin"), []byte("1"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "deep", "x.bin"), []byte("2"), 0644))
	require.NoError(t, os.Symlink("top.bin", filepath.Join(root, "link")))

	entries, err := ListFiles(root)
	require.NoError(t, err)

	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{"top.bin", "sub/deep/x.bin"}, paths)

	_, err = ListFiles(filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRegistry(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir)

	v1 := Manifest{"f1": "a.bin", "f2": "dir/b.bin"}

	t.Run("CreateLoad", func(t *testing.T) {
		require.NoError(t, reg.Create("v1", v1))

		got, err := reg.Load("v1")
		require.NoError(t, err)
		assert.Equal(t, v1, got)

		exists, err := reg.Exists("v1")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("OnDiskFormat", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, "v1.json"))
		require.NoError(t, err)

		var raw map[string]string
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.Equal(t, map[string]string(v1), raw)
	})

	t.Run("WriteOnce", func(t *testing.T) {
		err := reg.Create("v1", Manifest{"f9": "other"})
		assert.ErrorIs(t, err, lerrors.ErrPatchAlreadyExists)

		got, err := reg.Load("v1")
		require.NoError(t, err)
		assert.Equal(t, v1, got)

		// No staging files survive.
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("EmptyManifest", func(t *testing.T) {
		require.NoError(t, reg.Create("empty", Manifest{}))
		got, err := reg.Load("empty")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ListSorted", func(t *testing.T) {
		require.NoError(t, reg.Create("a-first", Manifest{"f3": "c"}))
		tags, err := reg.List()
		require.NoError(t, err)
		assert.Equal(t, []string{"a-first", "empty", "v1"}, tags)
	})

	t.Run("Walk", func(t *testing.T) {
		var seen []string
		err := reg.Walk("empty", func(tag string, m Manifest) bool {
			seen = append(seen, tag)
			return true
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a-first", "v1"}, seen)

		seen = nil
		err = reg.Walk("", func(tag string, m Manifest) bool {
			seen = append(seen, tag)
			return false
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a-first"}, seen)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := reg.Load("nope")
		assert.ErrorIs(t, err, lerrors.ErrPatchNotFound)
		assert.ErrorIs(t, reg.Delete("nope"), lerrors.ErrPatchNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, reg.Delete("a-first"))
		exists, err := reg.Exists("a-first")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
