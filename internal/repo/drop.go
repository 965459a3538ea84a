package repo

import (
	"context"
	"os"

	lerrors "lvcs/internal/errors"
	"lvcs/internal/gc"
	"lvcs/internal/logging"
	"lvcs/internal/validation"

	"go.uber.org/zap"
)

// Drop removes the manifest for tag and deletes the objects no surviving
// manifest references. It returns those fingerprints. With dryRun nothing
// is removed.
func (r *Repository) Drop(ctx context.Context, tag string, dryRun bool) ([]string, error) {
	ctx, _ = logging.WithOperation(ctx)
	log := r.logger.WithOperationID(ctx).With(zap.String("op", "drop"), zap.String("tag", tag))

	if err := validation.ValidateTag(tag); err != nil {
		return nil, err
	}
	current, err := r.Current()
	if err != nil {
		return nil, err
	}
	if current == tag {
		return nil, lerrors.CannotDropCurrentPatch(tag)
	}

	dropped, err := r.Patches.Load(tag)
	if err != nil {
		return nil, err
	}

	// The unreferenced set is computed before anything is removed so a
	// failure here leaves the repository untouched.
	unreferenced, err := gc.Unreferenced(dropped, tag, r.Patches)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return unreferenced, nil
	}

	r.progress.Message("Dropping patch %s...", tag)
	if err := r.Patches.Delete(tag); err != nil {
		return nil, err
	}

	if len(unreferenced) > 0 {
		r.progress.Step(1, 1, "Removing files...")
		bar := r.progress.Start(len(unreferenced))
		for _, fp := range unreferenced {
			if err := r.Safe.Release(fp); err != nil {
				bar.Finish()
				return nil, err
			}
			bar.Increment()
		}
		bar.Finish()
	}

	log.Info("patch dropped", zap.Int("released", len(unreferenced)))
	r.progress.Message("Done!")
	return unreferenced, nil
}

// Wipe makes every object writable and deletes the whole repository root,
// working tree included. The repository is closed afterwards.
func (r *Repository) Wipe() error {
	if err := r.Workspace.Teardown(); err != nil {
		r.Safe.SealAll()
		return err
	}
	if err := r.Safe.UnsealAll(); err != nil {
		return err
	}
	if err := r.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(r.Root); err != nil {
		return lerrors.IO(r.Root, err)
	}
	return nil
}
