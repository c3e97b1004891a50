// Package cli wires the tallyd commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/tallyapp/tally/pkg/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command for the tallyd CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tallyd",
		Short: "tallyd - shared expense ledger server",
		Long:  "The cloud store for tally clients: sync endpoints, balance verification, and housekeeping commands.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewPurgeCommand(opts))
	cmd.AddCommand(NewMigrateStatusCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}
