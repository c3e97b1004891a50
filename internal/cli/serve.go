package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tallyapp/tally/internal/auth"
	"github.com/tallyapp/tally/internal/config"
	"github.com/tallyapp/tally/internal/server"
	"github.com/tallyapp/tally/internal/storage/sqlite"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "serve",
		Short:         "Start the tallyd server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("jwt_secret is required (set TALLY_JWT_SECRET or the config file)")
			}

			store, err := sqlite.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer store.Close()
			slog.Info("Storage initialized", "database", cfg.DBPath)

			jwtManager := auth.NewManager(cfg.JWTSecret, 24*time.Hour)
			srv := server.New(store, jwtManager, cfg.AssetsDir)

			// h2c lets HTTP/2 clients connect without TLS termination here.
			handler := h2c.NewHandler(srv.Handler(), &http2.Server{})

			slog.Info("Server starting", "address", cfg.ListenAddr)
			if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		},
	}
}
