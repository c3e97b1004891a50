package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tallyapp/tally/internal/config"
	"github.com/tallyapp/tally/internal/migration"
	"github.com/tallyapp/tally/internal/storage/sqlite"
)

// NewMigrateStatusCommand creates the migrate-status command, which prints
// the per-step progress of the identity migration recorded in a local
// database. Useful when diagnosing a migration that halted partway.
func NewMigrateStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "migrate-status",
		Short:         "Show identity migration progress",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return err
			}

			store, err := sqlite.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer store.Close()

			svc := migration.New(store, nil, nil)
			steps, err := svc.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read migration state: %w", err)
			}

			for _, step := range steps {
				marker := " "
				if step.Done {
					marker = "x"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", marker, step.Name)
			}
			return nil
		},
	}
}
