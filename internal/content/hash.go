// internal/content/hash.go
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// DefaultBlockSize is the size of each read from the file.
const DefaultBlockSize = 64 * 1024

// FingerprintLength is the hex length of every supported digest.
const FingerprintLength = 64

type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// Hasher turns file bytes into a content fingerprint.
type Hasher struct {
	algo      Algorithm
	blockSize int
}

func NewHasher(algo Algorithm, blockSize int) (*Hasher, error) {
	switch algo {
	case SHA256, BLAKE3:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Hasher{algo: algo, blockSize: blockSize}, nil
}

func (h *Hasher) Algorithm() Algorithm {
	return h.algo
}

func (h *Hasher) newDigest() hash.Hash {
	if h.algo == BLAKE3 {
		return blake3.New()
	}
	return sha256.New()
}

// HashFile reads the file at path block by block and returns its fingerprint.
func (h *Hasher) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file %s: %w", path, err)
	}
	defer f.Close()

	sum, err := h.HashReader(f)
	if err != nil {
		return "", fmt.Errorf("hash file %s: %w", path, err)
	}
	return sum, nil
}

func (h *Hasher) HashReader(r io.Reader) (string, error) {
	d := h.newDigest()
	buf := make([]byte, h.blockSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			d.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

// ValidFingerprint reports whether s has the shape of a fingerprint.
func ValidFingerprint(s string) bool {
	if len(s) != FingerprintLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
