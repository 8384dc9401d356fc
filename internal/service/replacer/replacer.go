package replacer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oshokin/companion-launcher/internal/domain/update"
	"github.com/oshokin/companion-launcher/internal/logger"
	"github.com/oshokin/companion-launcher/internal/service/process"
)

// Options control one replacement.
type Options struct {
	// LockTimeout bounds the wait for the target to become writable.
	LockTimeout time.Duration
	// PollInterval is the delay between writability probes.
	PollInterval time.Duration
	// Relaunch starts the target after a successful publish.
	Relaunch bool
	// LogFile receives the relaunched target's output; empty discards it.
	LogFile string
}

// Validate rejects timings the lock wait cannot run with.
func (o Options) Validate() error {
	if o.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %s", update.ErrUsage, o.PollInterval)
	}

	if o.LockTimeout < 0 {
		return fmt.Errorf("%w: lock timeout must not be negative, got %s", update.ErrUsage, o.LockTimeout)
	}

	return nil
}

// Replacer performs the swap. The filesystem and process primitives are
// fields so that failures can be simulated.
type Replacer struct {
	opts Options

	probe   func(path string) error
	rename  func(oldPath, newPath string) error
	remove  func(path string) error
	start   func(path string, opts process.StartOptions) (int, error)
	lockers func(path string) ([]process.Info, error)
}

// Option customizes a Replacer.
type Option func(*Replacer)

// WithProbe replaces the writability probe.
func WithProbe(probe func(path string) error) Option {
	return func(r *Replacer) {
		r.probe = probe
	}
}

// WithRename replaces the rename primitive.
func WithRename(rename func(oldPath, newPath string) error) Option {
	return func(r *Replacer) {
		r.rename = rename
	}
}

// WithStarter replaces the detached process starter.
func WithStarter(start func(path string, opts process.StartOptions) (int, error)) Option {
	return func(r *Replacer) {
		r.start = start
	}
}

// New creates a Replacer.
func New(opts Options, options ...Option) *Replacer {
	replacer := &Replacer{
		opts:    opts,
		probe:   ProbeWritable,
		rename:  os.Rename,
		remove:  os.Remove,
		start:   process.StartDetached,
		lockers: process.FindByExecutable,
	}

	for _, option := range options {
		option(replacer)
	}

	return replacer
}

// Replace swaps staged into target and relaunches target.
//
// Only the lock wait observes ctx; once a backup exists the swap always runs
// to a published or rolled back target.
func (r *Replacer) Replace(ctx context.Context, target, staged string) error {
	ctx = logger.WithFields(ctx, "target", target, "staged", staged)

	if err := r.opts.Validate(); err != nil {
		return err
	}

	info, err := os.Stat(staged)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", update.ErrStagedFileMissing, staged)
	}

	logger.Info(ctx, "Waiting for the target to be released")

	if err = r.waitUnlocked(ctx, target); err != nil {
		return err
	}

	backup := update.BackupPathFor(target)

	hasBackup, err := r.backup(ctx, target, backup)
	if err != nil {
		return err
	}

	if err = r.publish(ctx, target, staged, backup, hasBackup); err != nil {
		return err
	}

	if hasBackup {
		if removeErr := r.remove(backup); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.WarnKV(ctx, "Failed to remove backup, leaving it behind",
				"backup", backup,
				"error", removeErr)
		}
	}

	logger.Info(ctx, "Target replaced")

	if !r.opts.Relaunch {
		return nil
	}

	pid, err := r.start(target, process.StartOptions{LogFile: r.opts.LogFile})
	if err != nil {
		return fmt.Errorf("%w: %w", update.ErrRelaunchFailed, err)
	}

	logger.InfoKV(ctx, "Target relaunched", "pid", pid)

	return nil
}

// waitUnlocked polls the target until it is writable, the timeout elapses or
// ctx is cancelled. A missing target counts as unlocked.
func (r *Replacer) waitUnlocked(ctx context.Context, target string) error {
	timeout := time.NewTimer(r.opts.LockTimeout)
	defer timeout.Stop()

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	reported := false

	for {
		probeErr := r.probe(target)
		if probeErr == nil {
			return nil
		}

		if !reported {
			reported = true

			r.reportLockers(ctx, target, probeErr)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", update.ErrLockTimeout, ctx.Err())
		case <-timeout.C:
			return fmt.Errorf("%w after %s: %w", update.ErrLockTimeout, r.opts.LockTimeout, probeErr)
		case <-ticker.C:
		}
	}
}

func (r *Replacer) reportLockers(ctx context.Context, target string, probeErr error) {
	logger.InfoKV(ctx, "Target is locked", "reason", probeErr)

	if r.lockers == nil {
		return
	}

	holders, err := r.lockers(target)
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)

		return
	}

	for _, holder := range holders {
		logger.InfoKV(ctx, "Target is still running", "pid", holder.PID, "executable", holder.Executable)
	}
}

// backup moves the target aside, replacing any stale backup. It reports
// whether a backup now exists. A missing target is a fresh install.
func (r *Replacer) backup(ctx context.Context, target, backup string) (bool, error) {
	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Target does not exist, installing without backup")

		return false, nil
	}

	if err := r.remove(backup); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%w: remove stale backup: %w", update.ErrReplace, err)
	}

	if err := r.rename(target, backup); err != nil {
		return false, fmt.Errorf("%w: back up target: %w", update.ErrReplace, err)
	}

	return true, nil
}

// publish renames staged over target, restoring the backup on failure.
func (r *Replacer) publish(ctx context.Context, target, staged, backup string, hasBackup bool) error {
	publishErr := r.rename(staged, target)
	if publishErr == nil {
		return nil
	}

	logger.ErrorKV(ctx, "Publish failed", "error", publishErr)

	if !hasBackup {
		return fmt.Errorf("%w: publish: %w", update.ErrReplace, publishErr)
	}

	if restoreErr := r.rename(backup, target); restoreErr != nil {
		logger.ErrorKV(ctx, "Rollback failed, manual intervention required",
			"backup", backup,
			"error", restoreErr)

		return fmt.Errorf("%w: %w: publish: %w, restore: %w",
			update.ErrReplace, update.ErrCorruptState, publishErr, restoreErr)
	}

	logger.Warn(ctx, "Original binary restored")

	return fmt.Errorf("%w: %w: %w", update.ErrReplace, update.ErrRolledBack, publishErr)
}

// ProbeWritable opens path for appending without creating it. It succeeds when
// nothing holds the file open exclusively, which on Windows includes a running
// executable. A missing path is writable.
func ProbeWritable(path string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return err
	}

	return file.Close()
}
