package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/companion-launcher/internal/service/common"
	"github.com/oshokin/companion-launcher/internal/service/server"
)

// newStatusCommand queries a running daemon.
func newStatusCommand(opts *globalOptions) *cobra.Command {
	var (
		address string
		timeout time.Duration
	)

	statusCmd := &cobra.Command{
		Use:   "status [app...]",
		Short: "Show the health reported by a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}

			if address == "" {
				address = cfg.HealthAddress
			}

			client, err := common.Dial(cmd.Context(), address, common.WithCallTimeout(timeout))
			if err != nil {
				return err
			}

			defer func() {
				_ = client.Close()
			}()

			apps := args
			if len(apps) == 0 {
				apps = server.Services(cfg)
			}

			for _, app := range apps {
				status, err := client.Check(cmd.Context(), app)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", app, status)
			}

			return nil
		},
	}

	statusCmd.Flags().StringVarP(&address, "address", "a", "", "daemon address override (default from configuration)")
	statusCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per-call timeout")

	return statusCmd
}
