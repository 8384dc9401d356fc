package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/companion-launcher/internal/logger"
	"github.com/oshokin/companion-launcher/internal/service/server"
)

// newServeCommand runs the scheduled update daemon.
func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		listenAddress string
		interval      time.Duration
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Check for updates on a schedule and serve gRPC health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			env, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if err = env.orchestrator.EnsureReplacer(cmd.Context()); err != nil {
				logger.WarnKV(cmd.Context(), "Replacer is unavailable, updates will be deferred", "error", err)
			}

			return server.Run(cmd.Context(), &server.Options{
				Config:        env.cfg,
				Checker:       env.orchestrator,
				ListenAddress: listenAddress,
				CheckInterval: interval,
			})
		},
	}

	serveCmd.Flags().StringVarP(&listenAddress, "listen", "l", "", "listen address override (default from configuration)")
	serveCmd.Flags().DurationVar(&interval, "interval", 0, "check interval override (default from configuration)")

	return serveCmd
}
