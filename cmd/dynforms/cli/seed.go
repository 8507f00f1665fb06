package cli

import (
	"github.com/spf13/cobra"
)

func NewSeedAdminCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the bootstrap admin if no user exists",
		Long: `Create the bootstrap admin user. Nothing happens when the user store
already holds any user. Without a database URL the in-memory store is seeded
and discarded on exit, which is only useful as a dry run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, logCloser, err := setup()
			if err != nil {
				return err
			}
			defer logCloser.Close()

			if email != "" {
				cfg.Auth.AdminEmail = email
			}
			if password != "" {
				cfg.Auth.AdminPassword = password
			}

			ctx, cancel := background(cmd)
			defer cancel()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.SeedAdmin(ctx)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email (default DYNFORMS_ADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "admin password (default DYNFORMS_ADMIN_PASSWORD)")
	return cmd
}
