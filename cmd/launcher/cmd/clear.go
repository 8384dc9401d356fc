package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newClearCommand lifts the halt placed on an app after a corrupt swap.
func newClearCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <app>",
		Short: "Resume automatic updates after a manual repair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			env, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}

			name := args[0]
			if app, ok := env.cfg.App(name); ok {
				name = app.Name
			}

			if _, halted := env.orchestrator.Halted(name); !halted {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is not halted\n", name)

				return nil
			}

			if err = env.orchestrator.Clear(cmd.Context(), name); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: automatic updates resumed\n", name)

			return nil
		},
	}
}
