package content

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestHasher(t *testing.T) {
	dir := t.TempDir()

	t.Run("SHA256MatchesDigest", func(t *testing.T) {
		data := bytes.Repeat([]byte("large binary "), 20000)
		path := writeFile(t, dir, "big.bin", data)

		h, err := NewHasher(SHA256, 0)
		require.NoError(t, err)

		sum, err := h.HashFile(path)
		require.NoError(t, err)

		want := sha256.Sum256(data)
		assert.Equal(t, hex.EncodeToString(want[:]), sum)
		assert.True(t, ValidFingerprint(sum))
	})

	t.Run("BlockSizeDoesNotChangeResult", func(t *testing.T) {
		data := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 9999)
		path := writeFile(t, dir, "blocks.bin", data)

		small, err := NewHasher(SHA256, 7)
		require.NoError(t, err)
		large, err := NewHasher(SHA256, 1<<20)
		require.NoError(t, err)

		a, err := small.HashFile(path)
		require.NoError(t, err)
		b, err := large.HashFile(path)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		path := writeFile(t, dir, "empty", nil)
		h, err := NewHasher(SHA256, 0)
		require.NoError(t, err)

		sum, err := h.HashFile(path)
		require.NoError(t, err)
		assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", sum)
	})

	t.Run("BLAKE3", func(t *testing.T) {
		h, err := NewHasher(BLAKE3, 0)
		require.NoError(t, err)

		sum, err := h.HashReader(strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262", sum)
	})

	t.Run("MissingFile", func(t *testing.T) {
		h, err := NewHasher(SHA256, 0)
		require.NoError(t, err)

		_, err = h.HashFile(filepath.Join(dir, "nope"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("UnknownAlgorithm", func(t *testing.T) {
		_, err := NewHasher("md5", 0)
		assert.ErrorIs(t, err, ErrUnknownAlgorithm)
	})
}

func TestValidFingerprint(t *testing.T) {
	assert.False(t, ValidFingerprint(""))
	assert.False(t, ValidFingerprint("abc"))
	assert.False(t, ValidFingerprint(strings.Repeat("z", 64)))
	assert.True(t, ValidFingerprint(strings.Repeat("a", 64)))
}
