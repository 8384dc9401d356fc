package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/companion-launcher/internal/version"
)

// newCheckCommand reports available updates without applying them.
func newCheckCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [app...]",
		Short: "Report available updates without installing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			env, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}

			apps := args
			if len(apps) == 0 {
				apps = append(apps, env.cfg.Launcher.Name)
				for _, app := range env.cfg.Apps {
					apps = append(apps, app.Name)
				}
			}

			out := cmd.OutOrStdout()

			for _, request := range apps {
				name := request
				if app, ok := env.cfg.App(request); ok {
					name = app.Name
				}

				current := version.Short()
				if name != env.cfg.Launcher.Name {
					current = env.orchestrator.CurrentVersion(cmd.Context(), name)
				}

				_, _ = fmt.Fprintln(out, checkLine(cmd, env, name, current))
			}

			return nil
		},
	}
}

func checkLine(cmd *cobra.Command, env *environment, name, current string) string {
	if reason, halted := env.orchestrator.Halted(name); halted {
		return fmt.Sprintf("%s: updates halted (%s), run \"launcher clear %s\" after repairing", name, reason, name)
	}

	if current == "" {
		return name + ": version unknown"
	}

	candidate := env.orchestrator.CheckForUpdate(cmd.Context(), name, current)
	if candidate == nil {
		return fmt.Sprintf("%s: %s is up to date", name, current)
	}

	return fmt.Sprintf("%s: %s → %s available", name, current, candidate.Tag)
}
