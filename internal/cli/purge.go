package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallyapp/tally/internal/config"
	"github.com/tallyapp/tally/internal/storage/sqlite"
)

// NewPurgeCommand creates the purge command, which physically removes
// tombstones older than the retention window. Run it periodically; devices
// offline longer than the window can miss deletions and must do a full pull.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:           "purge",
		Short:         "Remove tombstones past the retention window",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			if olderThan == 0 {
				olderThan = cfg.Retention.TombstoneTTL
			}

			store, err := sqlite.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer store.Close()

			cutoff := time.Now().Add(-olderThan)
			removed, err := store.PurgeTombstones(cmd.Context(), cutoff)
			if err != nil {
				return fmt.Errorf("purge failed: %w", err)
			}
			slog.Info("Purge complete", "removed", removed, "cutoff", cutoff.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "retention window override (default from config)")
	return cmd
}
