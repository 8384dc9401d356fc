package replacer

import (
	"errors"
	"fmt"

	"github.com/oshokin/companion-launcher/internal/domain/update"
)

// Exit codes of the replacer executable.
const (
	ExitOK             = 0
	ExitUsage          = 1
	ExitStagedMissing  = 2
	ExitLockTimeout    = 3
	ExitReplaceFailed  = 4
	ExitRelaunchFailed = 5
)

// ExitCode maps the result of Replace onto the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, update.ErrUsage):
		return ExitUsage
	case errors.Is(err, update.ErrStagedFileMissing):
		return ExitStagedMissing
	case errors.Is(err, update.ErrLockTimeout):
		return ExitLockTimeout
	case errors.Is(err, update.ErrRelaunchFailed):
		return ExitRelaunchFailed
	default:
		return ExitReplaceFailed
	}
}

// ErrorFromExitCode is the inverse of ExitCode as far as an exit status can
// tell. Exit 4 covers both a rollback and a corrupt target; callers inspect the
// target path to tell them apart.
func ErrorFromExitCode(code int) error {
	switch code {
	case ExitOK:
		return nil
	case ExitUsage:
		return update.ErrUsage
	case ExitStagedMissing:
		return update.ErrStagedFileMissing
	case ExitLockTimeout:
		return update.ErrLockTimeout
	case ExitReplaceFailed:
		return update.ErrReplace
	case ExitRelaunchFailed:
		return update.ErrRelaunchFailed
	default:
		return fmt.Errorf("%w: unexpected replacer exit status %d", update.ErrReplace, code)
	}
}
