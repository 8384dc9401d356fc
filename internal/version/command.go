package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// shortTemplate renders `--version` as exactly one line with the bare version.
const shortTemplate = "{{.Version}}\n"

// AttachCobraVersionCommand wires both version surfaces into the root command:
// the `--version` flag prints Short() on a single line (the version query
// contract every managed binary honours), and the `version` subcommand
// prints Full() with build metadata.
func AttachCobraVersionCommand(root *cobra.Command) {
	root.Version = Short()
	root.SetVersionTemplate(shortTemplate)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Long:  "Print detailed version information including build metadata, commit hash, and build timestamp. This information is injected during the build process from Git tags and repository state.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Full())
		},
	})
}
