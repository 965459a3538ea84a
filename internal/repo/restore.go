package repo

import (
	"context"
	"errors"
	"fmt"

	"lvcs/internal/diff"
	lerrors "lvcs/internal/errors"
	"lvcs/internal/logging"
	"lvcs/internal/patch"
	"lvcs/internal/pool"
	"lvcs/internal/validation"

	"go.uber.org/zap"
)

// Restore checks out tag into the working tree. Without clean it only
// touches entries that differ from the current patch; with clean it tears
// the tree down and materializes every entry. The current pointer moves to
// tag only after every entry is in place.
func (r *Repository) Restore(ctx context.Context, tag string, clean bool) error {
	ctx, _ = logging.WithOperation(ctx)
	log := r.logger.WithOperationID(ctx).With(zap.String("op", "restore"), zap.String("tag", tag))

	if err := validation.ValidateTag(tag); err != nil {
		return err
	}
	target, err := r.Patches.Load(tag)
	if err != nil {
		return err
	}
	current, err := r.Current()
	if err != nil {
		return err
	}

	if !clean && tag == current {
		r.progress.Message("Already on %s.", tag)
		return nil
	}

	var from patch.Manifest
	switch {
	case clean:
		// Tear down even without a current pointer: an interrupted first
		// checkout leaves entries behind that no manifest accounts for.
		r.progress.Message("Cleaning...")
		if err := r.resetTree(ctx, current); err != nil {
			return err
		}
	case current != "":
		from, err = r.Patches.Load(current)
		if err != nil {
			return fmt.Errorf("loading current patch: %w", err)
		}
	}

	plan := diff.Manifests(from, target)
	stats := plan.Stats()
	log.Debug("restore plan",
		zap.String("from", current),
		zap.Int("link", stats.Additions),
		zap.Int("unlink", stats.Deletions),
		zap.Int("keep", stats.Unchanged),
	)

	if plan.Empty() {
		if err := ctx.Err(); err != nil {
			return lerrors.Cancelled(err)
		}
		if err := r.setCurrent(tag); err != nil {
			return err
		}
		log.Info("patch restored without changes", zap.String("from", current))
		r.progress.Message("Restored patch %s!", tag)
		return nil
	}

	steps, step := 1, 1
	if len(plan.Unlink) > 0 {
		steps = 2
	}

	if len(plan.Unlink) > 0 {
		r.progress.Step(step, steps, "Unlinking old files...")
		step++
		err := pool.Each(ctx, r.pool, plan.Unlink, func(e patch.Entry) error {
			return r.Workspace.Unlink(e.Path)
		}, r.progress.Start(len(plan.Unlink)))

		// Removal made shared inodes writable. Seal them again whether or
		// not the phase finished.
		if sealErr := r.seal(plan.Unlinked()); err == nil {
			err = sealErr
		}
		if err != nil {
			return err
		}
	}

	r.progress.Step(step, steps, "Linking new files...")
	err = pool.Each(ctx, r.pool, plan.Link, r.Workspace.Link, r.progress.Start(len(plan.Link)))
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return lerrors.Cancelled(err)
	}
	if err := r.setCurrent(tag); err != nil {
		return err
	}

	log.Info("patch restored", zap.String("from", current), zap.Bool("clean", clean))
	r.progress.Message("Restored patch %s!", tag)
	return nil
}

// Clean removes the working tree, re-seals every object and clears the
// current pointer. It does nothing when no patch is checked out.
func (r *Repository) Clean(ctx context.Context) error {
	current, err := r.Current()
	if err != nil {
		return err
	}
	if current == "" {
		return nil
	}
	return r.resetTree(ctx, current)
}

// resetTree deletes the working tree and seals every object, also when the
// teardown fails partway. The current pointer is cleared once both succeed.
func (r *Repository) resetTree(ctx context.Context, current string) error {
	err := r.Workspace.Teardown()
	if sealErr := r.Safe.SealAll(); err == nil {
		err = sealErr
	}
	if err != nil {
		return err
	}

	if current != "" {
		if err := r.clearCurrent(); err != nil {
			return err
		}
	}

	r.logger.WithOperationID(ctx).Info("working tree cleaned", zap.String("was", current))
	return nil
}

// seal marks the given objects read-only. Fingerprints no longer in the
// store are skipped.
func (r *Repository) seal(fingerprints []string) error {
	for _, fp := range fingerprints {
		if err := r.Safe.Seal(fp); err != nil && !errors.Is(err, lerrors.ErrUnknownFingerprint) {
			return err
		}
	}
	return nil
}
