package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/logger"
	"github.com/oshokin/companion-launcher/internal/service/process"
)

// Runner runs the replacer executable.
type Runner interface {
	// Run starts the replacer, waits for it and returns its exit status. An
	// error means the replacer could not be run at all.
	Run(ctx context.Context, replacerPath string, args []string) (int, error)
	// Start starts the replacer detached, without waiting for it.
	Start(ctx context.Context, replacerPath string, args []string) error
}

// ExecRunner runs the replacer as a child process with its output appended to
// a log file.
type ExecRunner struct {
	logFile string
}

// NewExecRunner returns a Runner appending replacer output to logFile.
func NewExecRunner(logFile string) *ExecRunner {
	return &ExecRunner{logFile: logFile}
}

// Run implements Runner. The child is not tied to ctx: once started, a swap
// must reach a published or rolled back target.
func (r *ExecRunner) Run(ctx context.Context, replacerPath string, args []string) (int, error) {
	//nolint:gosec,noctx // The replacer path is derived from configuration.
	cmd := exec.Command(replacerPath, args...)
	cmd.Dir = filepath.Dir(replacerPath)

	if r.logFile != "" {
		if err := os.MkdirAll(filepath.Dir(r.logFile), config.DefaultDirPermissions); err != nil {
			return 0, fmt.Errorf("create log dir: %w", err)
		}

		logFile, err := os.OpenFile(r.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return 0, fmt.Errorf("open replacer log: %w", err)
		}

		defer func() {
			_ = logFile.Close()
		}()

		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	logger.DebugKV(ctx, "Running replacer", "path", replacerPath, "args", args)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode(), nil
	}

	return 0, fmt.Errorf("run replacer: %w", err)
}

// Start implements Runner.
func (r *ExecRunner) Start(ctx context.Context, replacerPath string, args []string) error {
	pid, err := process.StartDetached(replacerPath, process.StartOptions{
		Args:    args,
		LogFile: r.logFile,
	})
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Replacer started", "pid", pid, "log", r.logFile)

	return nil
}
