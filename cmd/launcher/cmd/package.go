package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/service/packager"
)

// newPackageCommand writes the manifest of an update folder.
func newPackageCommand() *cobra.Command {
	var timeout time.Duration

	packageCmd := &cobra.Command{
		Use:   "package <dir> [update-folder]",
		Short: "Prepare the manifest of an update folder",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			options := &packager.Options{
				Dir:            args[0],
				VersionTimeout: timeout,
			}

			if len(args) == 2 {
				options.UpdateFolder = args[1]
			}

			_, err := packager.Run(cmd.Context(), options)

			return err
		},
	}

	packageCmd.Flags().DurationVar(&timeout, "version-timeout", config.DefaultVersionQueryTimeout, "timeout of each --version query")

	return packageCmd
}
