package cli

import (
	"github.com/spf13/cobra"

	"dynforms/internal/platform/httpserver"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, logCloser, err := setup()
			if err != nil {
				return err
			}
			defer logCloser.Close()

			ctx, stop := background(cmd)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				log.Error("failed to start", "error", err)
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Error("failed to release resources", "error", err)
				}
			}()

			if cfg.Auth.SeedAdmin {
				if err := a.SeedAdmin(ctx); err != nil {
					return err
				}
			}

			srv := httpserver.New(cfg.Server.Addr, a.Router())
			if err := httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log); err != nil {
				log.Error("http server stopped", "error", err)
				return err
			}
			log.Info("shutdown complete")
			return nil
		},
	}
	return cmd
}
