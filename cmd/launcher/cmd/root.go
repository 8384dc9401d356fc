package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/logger"
	"github.com/oshokin/companion-launcher/internal/service/launcher"
	"github.com/oshokin/companion-launcher/internal/version"
)

// errUnknownLogLevel is returned for an unsupported --log-level value.
var errUnknownLogLevel = errors.New("unknown log level")

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	// configPath is the path to the configuration YAML file.
	configPath string
	// logLevel is the minimum level of log messages.
	logLevel string
	// skipStartup disables the replacer and self-update checks.
	skipStartup bool
}

// newRootCommand builds the launcher command tree.
func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "launcher [app]",
		Short: "Install, update and start companion applications",
		Long: `Keeps companion applications installed and up to date, then starts them.

Without arguments the launcher updates itself and lists the configured apps.
With an app name or label it installs the app if needed, applies a newer
release through the replacer and starts it.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level, ok := logger.ParseLogLevel(opts.logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, opts.logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			env, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if !opts.skipStartup {
				env.launcher.Startup(cmd.Context())
			}

			if len(args) == 0 {
				return printApps(cmd, env)
			}

			return runApp(cmd, env, args[0])
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.Flags().BoolVar(&opts.skipStartup, "skip-startup", false, "do not check the replacer or the launcher itself for updates")

	rootCmd.AddCommand(
		newCheckCommand(opts),
		newServeCommand(opts),
		newStatusCommand(opts),
		newSettingsCommand(opts),
		newClearCommand(opts),
		newPackageCommand(),
	)

	version.AttachCobraVersionCommand(rootCmd)

	return rootCmd
}

// runApp runs one job through the worker and prints its outcome.
func runApp(cmd *cobra.Command, env *environment, request string) error {
	ctx := cmd.Context()
	worker := launcher.NewWorker(env.launcher)
	defer func() { _ = worker.Close() }()

	if err := worker.Submit(ctx, request); err != nil {
		return err
	}

	outcome, err := worker.Wait(ctx)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), outcome.Message)

	return outcome.Err
}

// printApps lists the configured apps with their known versions.
func printApps(cmd *cobra.Command, env *environment) error {
	out := cmd.OutOrStdout()

	for _, app := range env.cfg.Apps {
		current, ok := env.cache.Get(app.Name)
		if !ok {
			current = "unknown"
		}

		label := app.Label
		if label == "" {
			label = app.Name
		}

		line := fmt.Sprintf("%-20s %-30s %s", app.Name, label, current)
		if reason, halted := env.cache.Halted(app.Name); halted {
			line += " (updates halted: " + reason + ")"
		}

		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}

	return nil
}

// Run executes the launcher with args and returns the process exit status.
func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rootCmd := newRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)

	logger.Sync()

	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)

		return 1
	}

	return 0
}

// Execute runs the launcher CLI and exits with non-zero status on error.
func Execute() {
	os.Exit(Run(os.Args[1:]))
}
