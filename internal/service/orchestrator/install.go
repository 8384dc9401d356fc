package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/companion-launcher/internal/domain/update"
	"github.com/oshokin/companion-launcher/internal/logger"
)

// Install downloads the latest release of an app that is not installed yet
// and renames it into place. It returns the installed tag.
func (o *Orchestrator) Install(ctx context.Context, app string) (string, error) {
	id := o.Identity(app)
	ctx = logger.WithFields(ctx, "app", app, "target", id.TargetPath)

	candidate, err := o.latest(ctx, app)
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Installing", "version", candidate.Tag)

	if err = o.stage(ctx, id, candidate); err != nil {
		return "", err
	}

	// Nothing runs from the target path yet, so a plain rename publishes it.
	if err = os.Rename(id.StagingPath, id.TargetPath); err != nil {
		o.discardStaging(ctx, id)

		return "", fmt.Errorf("%w: publish: %w", update.ErrReplace, err)
	}

	_ = o.cache.Set(ctx, app, candidate.Tag)

	logger.InfoKV(ctx, "Installed", "version", candidate.Tag)

	return candidate.Tag, nil
}

// EnsureReplacer installs the replacer if it is missing and upgrades it when
// the feed has a newer release. The replacer is never running while the
// launcher calls this, so it is updated in-process.
func (o *Orchestrator) EnsureReplacer(ctx context.Context) error {
	name := o.cfg.Replacer.Name
	id := o.Identity(name)
	ctx = logger.WithFields(ctx, "app", name, "target", id.TargetPath)

	var candidate *update.ReleaseDescriptor

	if replacerInstalled(id.TargetPath) {
		current := o.CurrentVersion(ctx, name)

		candidate = o.CheckForUpdate(ctx, name, current)
		if candidate == nil {
			return nil
		}
	} else {
		logger.Info(ctx, "Replacer is missing, downloading it")

		latest, err := o.latest(ctx, name)
		if err != nil {
			return fmt.Errorf("%w: %w", update.ErrReplacerMissing, err)
		}

		candidate = latest
	}

	if err := o.applyInProcess(ctx, id, candidate); err != nil {
		return err
	}

	_ = o.cache.Set(ctx, name, candidate.Tag)

	logger.InfoKV(ctx, "Replacer is ready", "version", candidate.Tag)

	return nil
}

// applyInProcess stages candidate and publishes it. A missing target is
// published with a plain rename; an existing one is swapped with go-update,
// which keeps a hidden backup and rolls back on a failed rename.
func (o *Orchestrator) applyInProcess(ctx context.Context, id update.AppIdentity, candidate *update.ReleaseDescriptor) error {
	if err := o.stage(ctx, id, candidate); err != nil {
		return err
	}

	defer o.discardStaging(ctx, id)

	if !replacerInstalled(id.TargetPath) {
		// The staged file is already verified; an empty leftover is replaced.
		if err := os.Rename(id.StagingPath, id.TargetPath); err != nil {
			return fmt.Errorf("%w: publish: %w", update.ErrReplace, err)
		}

		return nil
	}

	staged, err := os.Open(id.StagingPath)
	if err != nil {
		return fmt.Errorf("%w: open staged file: %w", update.ErrDownload, err)
	}

	defer func() {
		_ = staged.Close()
	}()

	options := goupdate.Options{
		TargetPath: id.TargetPath,
		TargetMode: stagedFileMode,
	}

	if candidate.HasChecksum() {
		options.Checksum = candidate.Checksum
		options.Hash = candidate.Hash
	}

	if err = goupdate.Apply(staged, options); err != nil {
		if rollbackErr := goupdate.RollbackError(err); rollbackErr != nil {
			return fmt.Errorf("%w: %w: %w", update.ErrReplace, update.ErrCorruptState, errors.Join(err, rollbackErr))
		}

		return fmt.Errorf("%w: %w", update.ErrReplace, err)
	}

	return nil
}

// replacerInstalled reports whether path holds a non-empty file.
func replacerInstalled(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// latest asks the feed for the newest release of app, which must be complete.
func (o *Orchestrator) latest(ctx context.Context, app string) (*update.ReleaseDescriptor, error) {
	candidate, err := o.resolver.Latest(ctx, app)
	if err != nil {
		return nil, err
	}

	if candidate == nil || candidate.Tag == "" || candidate.URL == "" {
		return nil, fmt.Errorf("%w: incomplete release for %s", update.ErrNotFound, app)
	}

	return candidate, nil
}
