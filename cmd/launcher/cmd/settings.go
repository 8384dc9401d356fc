package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/companion-launcher/internal/settings"
)

// errSettingNotSet is returned by "settings get" for a missing key.
var errSettingNotSet = errors.New("setting is not set")

// newSettingsCommand manages the persistent key/value settings.
func newSettingsCommand(opts *globalOptions) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage persistent settings passed to the launched apps",
	}

	withStore := func(run func(cmd *cobra.Command, store *settings.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			_, store, err := loadConfig(opts)
			if err != nil {
				return err
			}

			return run(cmd, store, args)
		}
	}

	settingsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored keys",
			Args:  cobra.NoArgs,
			RunE: withStore(func(cmd *cobra.Command, store *settings.Store, _ []string) error {
				keys, err := store.Keys()
				if err != nil {
					return err
				}

				for _, key := range keys {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), key)
				}

				return nil
			}),
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print a stored value",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(cmd *cobra.Command, store *settings.Store, args []string) error {
				value, ok, err := store.Get(args[0])
				if err != nil {
					return err
				}

				if !ok {
					return fmt.Errorf("%w: %s", errSettingNotSet, args[0])
				}

				_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)

				return nil
			}),
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Store a value",
			Args:  cobra.ExactArgs(2),
			RunE: withStore(func(_ *cobra.Command, store *settings.Store, args []string) error {
				return store.Set(args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "unset <key>",
			Short: "Remove a stored value",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(_ *cobra.Command, store *settings.Store, args []string) error {
				return store.Unset(args[0])
			}),
		},
	)

	return settingsCmd
}
