// internal/safe/safe.go
package safe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lvcs/internal/content"
	lerrors "lvcs/internal/errors"
	"lvcs/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	ModeLink = "link"
	ModeCopy = "copy"

	stagingPrefix = ".staging-"

	sealedPerm   os.FileMode = 0444
	unsealedPerm os.FileMode = 0644
)

var ErrInvalidHash = errors.New("invalid content hash")

// ObjectMeta is the index record kept for every stored object.
type ObjectMeta struct {
	Fingerprint string    `json:"fingerprint"`
	Size        int64     `json:"size"`
	Codec       string    `json:"codec"`
	Sealed      bool      `json:"sealed"`
	CreatedAt   time.Time `json:"created_at"`
}

func (m *ObjectMeta) GetID() string { return m.Fingerprint }

// Safe is the content-addressed object store. Objects live flat under root
// named by fingerprint and are read-only once written.
type Safe struct {
	root  string
	meta  *storage.BadgerStore
	known *lru.Cache[string, struct{}]
	codec Codec
	mode  string
}

// Options configures Safe behavior
type Options struct {
	Root      string     // Root directory path
	DB        *badger.DB // Metadata database
	CacheSize int        // Number of known fingerprints to cache
	Codec     Codec      // nil stores raw bytes
	Mode      string     // ModeLink or ModeCopy
}

// New creates a new Safe instance
func New(opts Options) (*Safe, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if opts.DB == nil {
		return nil, fmt.Errorf("metadata database is required")
	}

	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	cache, err := lru.New[string, struct{}](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	if opts.Mode == "" {
		opts.Mode = ModeLink
	}
	if opts.Mode != ModeLink && opts.Mode != ModeCopy {
		return nil, fmt.Errorf("unknown materialize mode %q", opts.Mode)
	}

	return &Safe{
		root:  opts.Root,
		meta:  storage.NewBadgerStore(opts.DB, "object"),
		known: cache,
		codec: opts.Codec,
		mode:  opts.Mode,
	}, nil
}

func (s *Safe) Root() string {
	return s.root
}

func (s *Safe) objectPath(fingerprint string) string {
	return filepath.Join(s.root, fingerprint)
}

// Exists reports whether an object with this fingerprint is in the store.
func (s *Safe) Exists(fingerprint string) (bool, error) {
	if !content.ValidFingerprint(fingerprint) {
		return false, fmt.Errorf("%w: %q", ErrInvalidHash, fingerprint)
	}

	if s.known.Contains(fingerprint) {
		return true, nil
	}

	_, err := os.Lstat(s.objectPath(fingerprint))
	if err == nil {
		s.known.Add(fingerprint, struct{}{})
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, lerrors.IO(s.objectPath(fingerprint), err)
}

// Store copies src into the store under fingerprint unless an object with
// that fingerprint already exists. It reports whether bytes were written.
// The copy is staged under a temporary name and renamed into place only once
// complete and read-only, so an interrupted Store never leaves a partial
// object behind a fingerprint name.
func (s *Safe) Store(fingerprint, src string) (bool, error) {
	exists, err := s.Exists(fingerprint)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	staged := filepath.Join(s.root, stagingPrefix+uuid.New().String())
	size, err := s.writeStaged(src, staged)
	if err != nil {
		os.Remove(staged)
		return false, err
	}

	if err := os.Chmod(staged, sealedPerm); err != nil {
		os.Remove(staged)
		return false, lerrors.IO(staged, err)
	}

	dest := s.objectPath(fingerprint)
	if err := os.Rename(staged, dest); err != nil {
		os.Remove(staged)
		return false, lerrors.IO(dest, err)
	}

	meta := &ObjectMeta{
		Fingerprint: fingerprint,
		Size:        size,
		Codec:       codecName(s.codec),
		Sealed:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.meta.Put(meta); err != nil {
		// Every stored object has a metadata record.
		os.Chmod(dest, unsealedPerm)
		os.Remove(dest)
		return false, fmt.Errorf("storing metadata for %s: %w", fingerprint, err)
	}

	s.known.Add(fingerprint, struct{}{})
	return true, nil
}

func (s *Safe) writeStaged(src, staged string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, lerrors.IO(src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(staged, os.O_CREATE|os.O_EXCL|os.O_WRONLY, unsealedPerm)
	if err != nil {
		return 0, lerrors.IO(staged, err)
	}

	var w io.WriteCloser = out
	if s.codec != nil {
		w, err = s.codec.NewWriter(out)
		if err != nil {
			out.Close()
			return 0, err
		}
	}

	size, copyErr := io.Copy(w, in)
	if s.codec != nil {
		if err := w.Close(); err != nil && copyErr == nil {
			copyErr = err
		}
	}
	if copyErr == nil {
		copyErr = out.Sync()
	}
	closeErr := out.Close()

	if copyErr != nil {
		return 0, lerrors.IO(src, copyErr)
	}
	if closeErr != nil {
		return 0, lerrors.IO(staged, closeErr)
	}
	return size, nil
}

// Materialize exposes the object at dest, creating missing parent
// directories. Raw objects are hardlinked in ModeLink; encoded objects and
// ModeCopy produce an independent copy. Linking onto a path that already
// shares storage with the object is a no-op.
func (s *Safe) Materialize(fingerprint, dest string) error {
	exists, err := s.Exists(fingerprint)
	if err != nil {
		return err
	}
	if !exists {
		return lerrors.UnknownFingerprint(fingerprint)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return lerrors.IO(filepath.Dir(dest), err)
	}

	codec, err := s.objectCodec(fingerprint)
	if err != nil {
		return err
	}
	if codec != nil || s.mode == ModeCopy {
		return s.copyOut(fingerprint, dest, codec)
	}

	src := s.objectPath(fingerprint)
	err = os.Link(src, dest)
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		same, serr := sameFile(src, dest)
		if serr == nil && same {
			return nil
		}
	}
	return lerrors.IO(dest, err)
}

func (s *Safe) copyOut(fingerprint, dest string, codec Codec) error {
	r, err := s.open(fingerprint, codec)
	if err != nil {
		return err
	}
	defer r.Close()

	tmp := filepath.Join(filepath.Dir(dest), stagingPrefix+uuid.New().String())
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, unsealedPerm)
	if err != nil {
		return lerrors.IO(tmp, err)
	}

	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(tmp)
		return lerrors.IO(dest, copyErr)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return lerrors.IO(dest, err)
	}
	return nil
}

// Open returns the decoded bytes of a stored object.
func (s *Safe) Open(fingerprint string) (io.ReadCloser, error) {
	codec, err := s.objectCodec(fingerprint)
	if err != nil {
		return nil, err
	}
	return s.open(fingerprint, codec)
}

func (s *Safe) open(fingerprint string, codec Codec) (io.ReadCloser, error) {
	f, err := os.Open(s.objectPath(fingerprint))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lerrors.UnknownFingerprint(fingerprint)
		}
		return nil, lerrors.IO(s.objectPath(fingerprint), err)
	}
	if codec == nil {
		return f, nil
	}

	dec, err := codec.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &decodedFile{ReadCloser: dec, file: f}, nil
}

type decodedFile struct {
	io.ReadCloser
	file *os.File
}

func (d *decodedFile) Close() error {
	d.ReadCloser.Close()
	return d.file.Close()
}

// objectCodec looks up the codec the object was written with. Objects
// without a metadata record are treated as raw.
func (s *Safe) objectCodec(fingerprint string) (Codec, error) {
	meta, err := s.Meta(fingerprint)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if meta.Codec == codecName(s.codec) {
		return s.codec, nil
	}
	return NewCodec(meta.Codec)
}

func (s *Safe) Meta(fingerprint string) (*ObjectMeta, error) {
	var meta ObjectMeta
	if err := s.meta.Get(fingerprint, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Release permanently deletes an object. Callers must have proven that no
// manifest references it.
func (s *Safe) Release(fingerprint string) error {
	if !content.ValidFingerprint(fingerprint) {
		return fmt.Errorf("%w: %q", ErrInvalidHash, fingerprint)
	}

	path := s.objectPath(fingerprint)
	if err := os.Chmod(path, unsealedPerm); err != nil && !os.IsNotExist(err) {
		return lerrors.IO(path, err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return lerrors.IO(path, err)
	}

	s.known.Remove(fingerprint)
	if err := s.meta.Delete(fingerprint); err != nil {
		return fmt.Errorf("deleting metadata for %s: %w", fingerprint, err)
	}
	return nil
}

// Seal marks the object read-only.
func (s *Safe) Seal(fingerprint string) error {
	return s.setSealed(fingerprint, true)
}

// Unseal makes the object writable again.
func (s *Safe) Unseal(fingerprint string) error {
	return s.setSealed(fingerprint, false)
}

func (s *Safe) setSealed(fingerprint string, sealed bool) error {
	perm := unsealedPerm
	if sealed {
		perm = sealedPerm
	}

	path := s.objectPath(fingerprint)
	if err := os.Chmod(path, perm); err != nil {
		if os.IsNotExist(err) {
			return lerrors.UnknownFingerprint(fingerprint)
		}
		return lerrors.IO(path, err)
	}

	var meta ObjectMeta
	err := s.meta.Update(fingerprint, &meta, func() error {
		meta.Sealed = sealed
		return nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// SealAll re-marks every stored object read-only.
func (s *Safe) SealAll() error {
	return s.each(s.Seal)
}

func (s *Safe) UnsealAll() error {
	return s.each(s.Unseal)
}

func (s *Safe) each(fn func(string) error) error {
	fingerprints, err := s.List()
	if err != nil {
		return err
	}
	for _, fp := range fingerprints {
		if err := fn(fp); err != nil {
			return err
		}
	}
	return nil
}

// IsSealed reports the permission state of the object's own directory entry.
func (s *Safe) IsSealed(fingerprint string) (bool, error) {
	info, err := os.Stat(s.objectPath(fingerprint))
	if err != nil {
		if os.IsNotExist(err) {
			return false, lerrors.UnknownFingerprint(fingerprint)
		}
		return false, lerrors.IO(s.objectPath(fingerprint), err)
	}
	return info.Mode().Perm()&0222 == 0, nil
}

// List returns all stored fingerprints, sorted.
func (s *Safe) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, lerrors.IO(s.root, err)
	}

	fingerprints := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !content.ValidFingerprint(e.Name()) {
			continue
		}
		fingerprints = append(fingerprints, e.Name())
	}
	sort.Strings(fingerprints)
	return fingerprints, nil
}

// Indexed returns the fingerprints that have a metadata record.
func (s *Safe) Indexed() ([]string, error) {
	return s.meta.Keys()
}

// Sweep removes staging files left behind by interrupted stores.
func (s *Safe) Sweep() (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, lerrors.IO(s.root, err)
	}

	removed := 0
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		path := filepath.Join(s.root, e.Name())
		os.Chmod(path, unsealedPerm)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, lerrors.IO(path, err)
		}
		removed++
	}
	return removed, nil
}

func sameFile(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(ai, bi), nil
}
