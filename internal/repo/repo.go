// Package repo owns the on-disk repository state machine: the object store,
// the manifest registry, the current pointer and the working tree.
//
// Layout under Root:
//
//	<repo_name>/files/<fingerprint>   immutable objects, read-only
//	<repo_name>/patches/<tag>.json    {fingerprint: relative_path}
//	<repo_name>/current.json          JSON string, absent if none
//	<repo_name>/meta/                 object metadata index
//	<current_name>/...                working tree
//
// A repository assumes a single invoker at a time.
package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"lvcs/internal/config"
	"lvcs/internal/content"
	lerrors "lvcs/internal/errors"
	"lvcs/internal/logging"
	"lvcs/internal/patch"
	"lvcs/internal/pool"
	"lvcs/internal/progress"
	"lvcs/internal/safe"
	"lvcs/internal/storage"
	"lvcs/internal/workspace"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository struct {
	Root      string
	DB        *badger.DB
	Safe      *safe.Safe
	Patches   *patch.Registry
	Workspace *workspace.LocalWorkspace

	cfg      *config.Config
	hasher   *content.Hasher
	pool     *pool.Pool
	logger   *logging.Logger
	progress progress.Reporter
}

type Option func(*Repository)

func WithLogger(l *logging.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

func WithProgress(p progress.Reporter) Option {
	return func(r *Repository) { r.progress = p }
}

func repoDir(root string, cfg *config.Config) string {
	return filepath.Join(root, cfg.RepoName)
}

// Init creates an empty repository at root and opens it.
func Init(root string, cfg *config.Config, opts ...Option) (*Repository, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}

	dir := repoDir(abs, cfg)
	if _, err := os.Stat(dir); err == nil {
		return nil, lerrors.RepositoryAlreadyExists(abs)
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, lerrors.IO(abs, err)
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		if os.IsExist(err) {
			return nil, lerrors.RepositoryAlreadyExists(abs)
		}
		return nil, lerrors.IO(dir, err)
	}

	for _, sub := range []string{"files", "patches", "meta"} {
		if err := os.Mkdir(filepath.Join(dir, sub), 0755); err != nil {
			return nil, lerrors.IO(filepath.Join(dir, sub), err)
		}
	}

	return Open(abs, cfg, opts...)
}

// Open opens an existing repository.
func Open(root string, cfg *config.Config, opts ...Option) (*Repository, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}

	dir := repoDir(abs, cfg)
	if info, err := os.Stat(filepath.Join(dir, "files")); err != nil || !info.IsDir() {
		return nil, lerrors.RepositoryNotFound(abs)
	}

	r := &Repository{
		Root:     abs,
		cfg:      cfg,
		pool:     pool.New(cfg.Workers),
		logger:   logging.NewNop(),
		progress: progress.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.hasher, err = content.NewHasher(content.Algorithm(cfg.Hash), cfg.BlockSize)
	if err != nil {
		return nil, err
	}

	codec, err := safe.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	r.DB, err = storage.Open(filepath.Join(dir, "meta"))
	if err != nil {
		return nil, err
	}

	r.Safe, err = safe.New(safe.Options{
		Root:      filepath.Join(dir, "files"),
		DB:        r.DB,
		CacheSize: cfg.CacheSize,
		Codec:     codec,
		Mode:      cfg.Materialize,
	})
	if err != nil {
		r.DB.Close()
		return nil, fmt.Errorf("initializing object store: %w", err)
	}

	r.Patches = patch.NewRegistry(filepath.Join(dir, "patches"))
	r.Workspace = workspace.NewLocalWorkspace(filepath.Join(abs, cfg.CurrentName), r.Safe, r.logger.Logger)
	return r, nil
}

// OpenOrInit opens the repository at root, creating it first if missing.
func OpenOrInit(root string, cfg *config.Config, opts ...Option) (*Repository, error) {
	r, err := Open(root, cfg, opts...)
	if err == nil {
		return r, nil
	}
	if lerrors.TypeOf(err) != lerrors.ErrorTypeRepositoryNotFound {
		return nil, err
	}
	return Init(root, cfg, opts...)
}

func (r *Repository) Close() error {
	if r.DB == nil {
		return nil
	}
	err := r.DB.Close()
	r.DB = nil
	return err
}

func (r *Repository) repoPath(parts ...string) string {
	return filepath.Join(append([]string{repoDir(r.Root, r.cfg)}, parts...)...)
}

func (r *Repository) currentPath() string {
	return r.repoPath("current.json")
}

// Current returns the active tag, or "" when no patch is checked out.
func (r *Repository) Current() (string, error) {
	data, err := os.ReadFile(r.currentPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", lerrors.IO(r.currentPath(), err)
	}

	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return "", fmt.Errorf("decoding current pointer: %w", err)
	}
	return tag, nil
}

// setCurrent replaces current.json atomically.
func (r *Repository) setCurrent(tag string) error {
	data, err := json.Marshal(tag)
	if err != nil {
		return err
	}

	tmp := r.repoPath(".current-" + uuid.New().String())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return lerrors.IO(tmp, err)
	}
	if err := os.Rename(tmp, r.currentPath()); err != nil {
		os.Remove(tmp)
		return lerrors.IO(r.currentPath(), err)
	}
	return nil
}

func (r *Repository) clearCurrent() error {
	if err := os.Remove(r.currentPath()); err != nil && !os.IsNotExist(err) {
		return lerrors.IO(r.currentPath(), err)
	}
	return nil
}

// List returns all tags, sorted.
func (r *Repository) List() ([]string, error) {
	return r.Patches.List()
}

func (r *Repository) Config() *config.Config {
	return r.cfg
}

func (r *Repository) Logger() *zap.Logger {
	return r.logger.Logger
}
