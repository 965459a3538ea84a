package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"lvcs/internal/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestCommands(t *testing.T) {
	t.Setenv("LVCS_ENV", "cli-test")
	root := filepath.Join(t.TempDir(), "root")

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.bin"), []byte("alpha"), 0644))

	require.NoError(t, run(t, "--root", root, "init"))
	require.NoError(t, run(t, "--root", root, "add", src, "v1"))
	require.NoError(t, run(t, "--root", root, "restore", "v1"))

	data, err := os.ReadFile(filepath.Join(root, "current", "a.bin"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	require.NoError(t, run(t, "--root", root, "status"))
	require.NoError(t, run(t, "--root", root, "verify"))

	t.Run("WipeNeedsForce", func(t *testing.T) {
		assert.Error(t, run(t, "--root", root, "wipe"))
		assert.DirExists(t, root)
	})

	t.Run("WipeReleasesRepository", func(t *testing.T) {
		require.NoError(t, run(t, "--root", root, "wipe", "--force"))
		assert.NoDirExists(t, root)

		// The store was closed, so a fresh repository can open at the same root.
		r, err := repo.Init(root, nil)
		require.NoError(t, err)
		require.NoError(t, r.Wipe())
	})
}
