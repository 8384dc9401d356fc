package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// StartOptions customize a detached start.
type StartOptions struct {
	// Args are passed to the executable.
	Args []string
	// Dir is the working directory; defaults to the executable's directory.
	Dir string
	// LogFile receives stdout and stderr in append mode; empty discards them.
	LogFile string
}

// ErrNotExecutable is returned when the path to start is missing or a directory.
var ErrNotExecutable = errors.New("not an executable file")

const logFilePermissions = 0o644

// StartDetached starts path in a new session, without a console and without
// inheriting stdin, and returns its PID. The process survives the caller's
// exit; the caller never waits on it.
func StartDetached(path string, opts StartOptions) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotExecutable, err)
	}

	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrNotExecutable, path)
	}

	//nolint:gosec // Starting configured companion executables is the whole point.
	cmd := exec.Command(path, opts.Args...)
	cmd.Dir = opts.Dir

	if cmd.Dir == "" {
		cmd.Dir = filepath.Dir(path)
	}

	cmd.SysProcAttr = detachedAttributes()

	var logFile *os.File

	if opts.LogFile != "" {
		if err = os.MkdirAll(filepath.Dir(opts.LogFile), 0o755); err != nil {
			return 0, fmt.Errorf("create log dir: %w", err)
		}

		logFile, err = os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions)
		if err != nil {
			return 0, fmt.Errorf("open log file: %w", err)
		}

		// The child keeps its own descriptor.
		defer func() {
			_ = logFile.Close()
		}()

		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	if err = cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", path, err)
	}

	pid := cmd.Process.Pid

	// Reap the child if it exits while we are still alive.
	go func() {
		_ = cmd.Wait()
	}()

	return pid, nil
}
