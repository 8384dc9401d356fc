package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/domain/update"
	"github.com/oshokin/companion-launcher/internal/logger"
	"github.com/oshokin/companion-launcher/internal/service/replacer"
)

// selfUpdateExitCode is the status the launcher exits with after handing its
// own swap to the replacer.
const selfUpdateExitCode = 0

// apply walks tx from CHECKING through the swap.
func (o *Orchestrator) apply(ctx context.Context, tx *update.Transaction, candidate *update.ReleaseDescriptor) update.Result {
	id := o.Identity(tx.App)
	tx.To = candidate.Tag

	ctx = logger.WithFields(ctx,
		"app", tx.App,
		"from", tx.From,
		"to", tx.To,
		"transaction", tx.ID)

	if err := tx.Transition(update.StateDownloading); err != nil {
		return o.finish(ctx, tx)
	}

	if err := o.stage(ctx, id, candidate); err != nil {
		_ = tx.Fail(err)

		return o.finish(ctx, tx)
	}

	if !replacerInstalled(o.paths.Replacer) {
		o.discardStaging(ctx, id)
		_ = tx.Fail(fmt.Errorf("%w: %s", update.ErrReplacerMissing, o.paths.Replacer))

		return o.finish(ctx, tx)
	}

	_ = tx.Transition(update.StateSwapping)

	if o.isSelf(id) {
		return o.handOffSelf(ctx, tx, id)
	}

	code, err := o.runner.Run(ctx, o.paths.Replacer, o.replacerArgs(id))
	if err != nil {
		o.discardStaging(ctx, id)
		_ = tx.Fail(fmt.Errorf("%w: %w", update.ErrReplace, err))

		return o.finish(ctx, tx)
	}

	replaceErr := replacer.ErrorFromExitCode(code)

	switch {
	case replaceErr == nil, errors.Is(replaceErr, update.ErrRelaunchFailed):
		_ = tx.Transition(update.StateRelaunching)
		_ = tx.Transition(update.StateDone)
		tx.Err = replaceErr

		// Persistence failures are logged by the cache.
		_ = o.cache.Set(ctx, tx.App, tx.To)
	case errors.Is(replaceErr, update.ErrReplace) && code == replacer.ExitReplaceFailed:
		_ = tx.Fail(o.classifyReplaceFailure(ctx, id))
	default:
		o.discardStaging(ctx, id)
		_ = tx.Fail(replaceErr)
	}

	return o.finish(ctx, tx)
}

// classifyReplaceFailure tells a rollback from a corrupt target after the
// replacer reported a failed swap. Only a missing target with a backup left
// behind is corrupt, and a corrupt app is halted.
func (o *Orchestrator) classifyReplaceFailure(ctx context.Context, id update.AppIdentity) error {
	if fileExists(id.TargetPath) {
		o.discardStaging(ctx, id)

		return fmt.Errorf("%w: %w", update.ErrReplace, update.ErrRolledBack)
	}

	if !fileExists(id.BackupPath) {
		// A fresh install that failed to publish: nothing was there to lose.
		o.discardStaging(ctx, id)

		return fmt.Errorf("%w: %s was not installed", update.ErrReplace, id.TargetPath)
	}

	err := fmt.Errorf("%w: %w: %s is missing", update.ErrReplace, update.ErrCorruptState, id.TargetPath)

	// The staged and backup files are kept for manual recovery.
	_ = o.cache.Halt(ctx, id.Name, err.Error())

	return err
}

// handOffSelf starts the replacer detached and exits the process.
func (o *Orchestrator) handOffSelf(ctx context.Context, tx *update.Transaction, id update.AppIdentity) update.Result {
	if err := o.runner.Start(ctx, o.paths.Replacer, o.replacerArgs(id)); err != nil {
		o.discardStaging(ctx, id)
		_ = tx.Fail(fmt.Errorf("%w: start replacer: %w", update.ErrReplace, err))

		return o.finish(ctx, tx)
	}

	_ = tx.Transition(update.StateRelaunching)
	_ = tx.Transition(update.StateDone)

	result := o.finish(ctx, tx)

	logger.Info(ctx, "Replacer started, exiting to release the launcher executable")
	logger.Sync()

	o.exit(selfUpdateExitCode)

	return result
}

// stage downloads candidate into the staging path of id.
func (o *Orchestrator) stage(ctx context.Context, id update.AppIdentity, candidate *update.ReleaseDescriptor) error {
	if err := os.MkdirAll(filepath.Dir(id.TargetPath), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("%w: create target dir: %w", update.ErrDownload, err)
	}

	if err := checkPermissions(id.TargetPath); err != nil {
		return fmt.Errorf("%w: target dir is not writable: %w", update.ErrDownload, err)
	}

	if err := o.download(ctx, candidate, id.StagingPath); err != nil {
		return err
	}

	return nil
}

// checkPermissions verifies that files can be created next to target.
func checkPermissions(target string) error {
	options := goupdate.Options{
		TargetPath: target,
		TargetMode: stagedFileMode,
	}

	return options.CheckPermissions()
}

func (o *Orchestrator) replacerArgs(id update.AppIdentity) []string {
	return []string{
		"--lock-timeout", o.cfg.Replacer.LockTimeout.String(),
		"--poll-interval", o.cfg.Replacer.PollInterval.String(),
		"--",
		id.TargetPath,
		id.StagingPath,
	}
}

func (o *Orchestrator) isSelf(id update.AppIdentity) bool {
	return o.self != "" && samePath(id.TargetPath, o.self)
}

func (o *Orchestrator) discardStaging(ctx context.Context, id update.AppIdentity) {
	if err := os.Remove(id.StagingPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Failed to remove staged file", "path", id.StagingPath, "error", err)
	}
}

// finish logs the outcome of tx and returns its result.
func (o *Orchestrator) finish(ctx context.Context, tx *update.Transaction) update.Result {
	result := tx.Result()

	switch {
	case result.Status == update.StatusUpdated && result.Err != nil:
		logger.WarnKV(ctx, "Updated, but the application was not relaunched", "error", result.Err)
	case result.Status == update.StatusUpdated:
		logger.Info(ctx, "Update applied")
	case errors.Is(result.Err, update.ErrCorruptState):
		logger.ErrorKV(ctx, "Update left the application in a corrupt state, automatic updates halted",
			"state", tx.State,
			"error", result.Err)
	default:
		logger.WarnKV(ctx, "Update failed",
			"state", tx.State,
			"error", result.Err)
	}

	return result
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}

// samePath compares two paths after resolving symlinks where possible.
func samePath(a, b string) bool {
	resolve := func(path string) string {
		if absolute, err := filepath.Abs(path); err == nil {
			path = absolute
		}

		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			path = resolved
		}

		return filepath.Clean(path)
	}

	return resolve(a) == resolve(b)
}
