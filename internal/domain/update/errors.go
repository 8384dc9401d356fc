package update

import "errors"

// Error kinds of the update subsystem. Callers wrap them with context and
// test them with errors.Is.
var (
	// ErrNetwork means the release feed was unreachable or answered garbage.
	ErrNetwork = errors.New("release feed unavailable")
	// ErrNotFound means the latest release has no artifact for the app.
	ErrNotFound = errors.New("no matching release artifact")
	// ErrDownload means the artifact could not be fetched or verified.
	ErrDownload = errors.New("artifact download failed")
	// ErrReplacerMissing means the replacer executable is not installed.
	ErrReplacerMissing = errors.New("replacer is missing")
	// ErrStagedFileMissing means the staged artifact vanished before the swap.
	ErrStagedFileMissing = errors.New("staged file is missing")
	// ErrLockTimeout means the target stayed locked for the whole wait.
	ErrLockTimeout = errors.New("timed out waiting for target to unlock")
	// ErrReplace means the backup or publish rename failed.
	ErrReplace = errors.New("replace failed")
	// ErrRolledBack means the swap failed and the original binary is in place,
	// either restored from the backup or never moved.
	ErrRolledBack = errors.New("replace failed, original binary restored")
	// ErrCorruptState means publish failed and the original binary could not be restored.
	ErrCorruptState = errors.New("target left in corrupt state")
	// ErrRelaunchFailed means the binary was updated but could not be started.
	ErrRelaunchFailed = errors.New("relaunch failed")
	// ErrUsage means the replacer was invoked with wrong arguments.
	ErrUsage = errors.New("usage error")
	// ErrHalted means automatic updates are suspended for the app after a corrupt swap.
	ErrHalted = errors.New("automatic updates halted")
	// ErrIllegalTransition means a transaction was moved along an edge its state machine lacks.
	ErrIllegalTransition = errors.New("illegal transaction transition")
)

// Recoverable reports whether err leaves the target binary unchanged, so the
// next scheduled check may simply retry.
func Recoverable(err error) bool {
	if err == nil {
		return true
	}

	return !errors.Is(err, ErrCorruptState) && !errors.Is(err, ErrHalted)
}
