package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/domain/update"
	"github.com/oshokin/companion-launcher/internal/logger"
	"github.com/oshokin/companion-launcher/internal/service/replacer"
	"github.com/oshokin/companion-launcher/internal/version"
)

// options holds the flags of one invocation.
type options struct {
	replacer.Options

	// noRelaunch disables starting the target after the swap.
	noRelaunch bool
	// logLevel is the minimum level of log messages.
	logLevel string
}

// exactTargetAndStaged rejects anything but two positional arguments.
func exactTargetAndStaged(_ *cobra.Command, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: expected <target> <staged>, got %d argument(s)", update.ErrUsage, len(args))
	}

	return nil
}

// newRootCommand builds the replacer command. The command stores the replace
// error in result so that the caller can turn it into an exit status.
func newRootCommand(result *error) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "replacer <target> <staged>",
		Short: "Swap a binary in place and relaunch it",
		Long: `Replaces <target> with <staged> once <target> is no longer in use.

Waits until the target can be opened for writing, moves it to <target>.bak,
atomically renames the staged file onto the target path and starts the target
again. If the rename fails the backup is restored.

Exit codes: 0 success, 1 usage error, 2 staged file missing, 3 lock wait timed
out, 4 replace failed (rollback attempted), 5 relaunch failed.`,
		Args:          exactTargetAndStaged,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			level, ok := logger.ParseLogLevel(opts.logLevel)
			if !ok {
				return fmt.Errorf("%w: unknown log level %q", update.ErrUsage, opts.logLevel)
			}

			logger.SetLevel(level)

			if err := opts.Validate(); err != nil {
				return err
			}

			// Setup graceful shutdown handling; only the lock wait observes it.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			ctx = logger.WithName(ctx, "replacer")

			opts.Relaunch = !opts.noRelaunch

			err := replacer.New(opts.Options).Replace(ctx, args[0], args[1])
			*result = err

			if err != nil {
				logger.ErrorKV(ctx, "Replace failed",
					"exit_code", replacer.ExitCode(err),
					"error", err)
			}

			return err
		},
	}

	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().DurationVar(&opts.LockTimeout, "lock-timeout", config.DefaultLockTimeout, "how long to wait for the target to be released")
	rootCmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", config.DefaultPollInterval, "delay between checks whether the target is released")
	rootCmd.Flags().BoolVar(&opts.noRelaunch, "no-relaunch", false, "do not start the target after replacing it")
	rootCmd.Flags().StringVar(&opts.LogFile, "relaunch-log", "", "append the relaunched target's output to this file")
	rootCmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	version.AttachCobraVersionCommand(rootCmd)

	return rootCmd
}

// Run executes the replacer with args and returns the process exit status.
func Run(args []string) int {
	var replaceErr error

	rootCmd := newRootCommand(&replaceErr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	logger.Sync()

	switch {
	case err == nil:
		return replacer.ExitOK
	case replaceErr != nil:
		return replacer.ExitCode(replaceErr)
	default:
		// Wrong arguments, unknown flags or an unknown log level.
		_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)

		return replacer.ExitUsage
	}
}

// Execute runs the replacer CLI and exits with the status of the swap.
func Execute() {
	os.Exit(Run(os.Args[1:]))
}
