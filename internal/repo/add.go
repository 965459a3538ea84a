package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lerrors "lvcs/internal/errors"
	"lvcs/internal/logging"
	"lvcs/internal/patch"
	"lvcs/internal/pool"
	"lvcs/internal/validation"

	"go.uber.org/zap"
)

// Add snapshots every regular file under target as patch tag. The current
// pointer is not touched. Nothing is committed unless every file was hashed
// and stored; objects written before a failure or cancellation stay in the
// store and are skipped by the next attempt.
func (r *Repository) Add(ctx context.Context, target, tag string) error {
	ctx, _ = logging.WithOperation(ctx)
	log := r.logger.WithOperationID(ctx).With(zap.String("op", "add"), zap.String("tag", tag))
	start := time.Now()

	if err := validation.ValidateTag(tag); err != nil {
		return err
	}
	exists, err := r.Patches.Exists(tag)
	if err != nil {
		return err
	}
	if exists {
		return lerrors.PatchAlreadyExists(tag)
	}

	info, err := os.Stat(target)
	if err != nil {
		return lerrors.IO(target, err)
	}
	if !info.IsDir() {
		return lerrors.IO(target, fmt.Errorf("not a directory"))
	}

	if n, err := r.Safe.Sweep(); err != nil {
		return err
	} else if n > 0 {
		log.Info("removed stale staging files", zap.Int("count", n))
	}

	r.progress.Step(1, 3, "Retrieving file listing...")
	files, err := patch.ListFiles(target)
	if err != nil {
		return lerrors.IO(target, err)
	}

	r.progress.Step(2, 3, "Hashing files...")
	log.Debug("hashing",
		zap.Int("files", len(files)),
		zap.String("hash", string(r.hasher.Algorithm())),
		zap.Int("workers", r.pool.Workers()),
	)
	hashed, err := pool.Map(ctx, r.pool, files, r.hashEntry(target), r.progress.Start(len(files)))
	if err != nil {
		log.Warn("hashing stopped", zap.Error(err))
		return err
	}

	manifest := patch.Build(hashed)

	var missing []patch.Entry
	for _, e := range manifest.Entries() {
		ok, err := r.Safe.Exists(e.Fingerprint)
		if err != nil {
			return err
		}
		if !ok {
			missing = append(missing, e)
		}
	}

	r.progress.Step(3, 3, "Adding files...")
	err = pool.Each(ctx, r.pool, missing, func(e patch.Entry) error {
		_, err := r.Safe.Store(e.Fingerprint, filepath.Join(target, filepath.FromSlash(e.Path)))
		return err
	}, r.progress.Start(len(missing)))
	if err != nil {
		log.Warn("storing stopped", zap.Error(err))
		return err
	}

	if err := ctx.Err(); err != nil {
		return lerrors.Cancelled(err)
	}

	if err := r.Patches.Create(tag, manifest); err != nil {
		return err
	}

	log.Info("patch added",
		zap.Int("files", len(files)),
		zap.Int("entries", len(manifest)),
		zap.Int("new_objects", len(missing)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// hashEntry returns the task fingerprinting one listed file under target.
func (r *Repository) hashEntry(target string) func(patch.Entry) (patch.Entry, error) {
	return func(e patch.Entry) (patch.Entry, error) {
		path := filepath.Join(target, filepath.FromSlash(e.Path))
		fp, err := r.hasher.HashFile(path)
		if err != nil {
			return e, lerrors.IO(path, err)
		}
		e.Fingerprint = fp
		return e, nil
	}
}
